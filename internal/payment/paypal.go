package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/daracheol/voxscribe/internal/config"
	"github.com/daracheol/voxscribe/internal/domain"
)

// PayPal REST API base URLs. The sandbox is used in development.
const (
	paypalLiveURL    = "https://api-m.paypal.com"
	paypalSandboxURL = "https://api-m.sandbox.paypal.com"

	paypalProductName = "VoxScribe Premium"
)

// PayPal webhook event types that drive subscription state.
const (
	PayPalEventSubscriptionCreated   = "BILLING.SUBSCRIPTION.CREATED"
	PayPalEventSubscriptionActivated = "BILLING.SUBSCRIPTION.ACTIVATED"
	PayPalEventSubscriptionCancelled = "BILLING.SUBSCRIPTION.CANCELLED"
	PayPalEventPaymentCompleted      = "PAYMENT.SALE.COMPLETED"
)

// PayPalProvider drives PayPal billing subscriptions.
type PayPalProvider struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	webhookID    string
	apiBase      string
	returnBase   string
	logger       *slog.Logger

	// planIDs caches the PayPal plan ID per billing plan so repeat
	// checkouts skip the catalog round trips. Checkout links are created
	// from concurrent webhook deliveries, so the cache is mutex-guarded.
	mu      sync.Mutex
	planIDs map[domain.BillingPlan]string
}

// NewPayPalProvider creates the PayPal integration. Development
// environments talk to the sandbox API.
func NewPayPalProvider(cfg config.PayPalConfig, server config.ServerConfig, logger *slog.Logger) *PayPalProvider {
	apiBase := paypalLiveURL
	if server.IsDevelopment() {
		apiBase = paypalSandboxURL
	}
	return &PayPalProvider{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		webhookID:    cfg.WebhookID,
		apiBase:      apiBase,
		returnBase:   server.BaseURL,
		logger:       logger.With("component", "paypal"),
		planIDs:      make(map[domain.BillingPlan]string),
	}
}

// SetAPIBase overrides the PayPal API base URL, used by tests.
func (p *PayPalProvider) SetAPIBase(base string) { p.apiBase = base }

// CreateSubscriptionLink creates a PayPal subscription for the plan and
// returns its approve URL. The product and billing plan are created on
// first use and reused afterwards.
func (p *PayPalProvider) CreateSubscriptionLink(ctx context.Context, userID string, plan domain.BillingPlan) (string, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return "", err
	}

	planID, err := p.ensurePlan(ctx, token, plan)
	if err != nil {
		return "", err
	}

	reqBody := map[string]interface{}{
		"plan_id":   planID,
		"custom_id": userID,
		"application_context": map[string]string{
			"return_url": p.returnBase + "/payment/success",
			"cancel_url": p.returnBase + "/payment/cancel",
		},
	}

	var sub struct {
		ID    string `json:"id"`
		Links []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := p.postJSON(ctx, token, "/v1/billing/subscriptions", reqBody, &sub); err != nil {
		return "", fmt.Errorf("failed to create subscription: %w", err)
	}

	for _, link := range sub.Links {
		if link.Rel == "approve" {
			p.logger.InfoContext(ctx, "created subscription", "subscription_id", sub.ID, "plan", plan)
			return link.Href, nil
		}
	}
	return "", fmt.Errorf("subscription %s has no approve link", sub.ID)
}

// paypalWebhookEvent is the subset of the webhook body we consume.
type paypalWebhookEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID       string `json:"id"`
		CustomID string `json:"custom_id"`
		Custom   string `json:"custom"`
	} `json:"resource"`
}

// ProcessWebhookEvent maps a verified webhook body to an Outcome. Returns
// (nil, nil) for event types we do not act on.
func (p *PayPalProvider) ProcessWebhookEvent(body []byte) (*Outcome, error) {
	var event paypalWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}

	switch event.EventType {
	case PayPalEventSubscriptionCreated:
		return &Outcome{
			Action:         ActionSubscriptionCreated,
			UserID:         event.Resource.CustomID,
			SubscriptionID: event.Resource.ID,
		}, nil
	case PayPalEventSubscriptionActivated:
		end := time.Now().UTC().Add(domain.PlanMonthly.Term())
		return &Outcome{
			Action:         ActionSubscriptionActivated,
			UserID:         event.Resource.CustomID,
			SubscriptionID: event.Resource.ID,
			End:            &end,
		}, nil
	case PayPalEventSubscriptionCancelled:
		return &Outcome{
			Action: ActionSubscriptionCancelled,
			UserID: event.Resource.CustomID,
		}, nil
	case PayPalEventPaymentCompleted:
		if event.Resource.Custom == "" {
			return nil, nil
		}
		end := time.Now().UTC().Add(domain.PlanMonthly.Term())
		return &Outcome{
			Action: ActionPaymentCompleted,
			UserID: event.Resource.Custom,
			End:    &end,
		}, nil
	default:
		return nil, nil
	}
}

// VerifyWebhook asks PayPal to verify the webhook transmission signature.
func (p *PayPalProvider) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (bool, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return false, err
	}

	reqBody := map[string]interface{}{
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"webhook_id":        p.webhookID,
		"webhook_event":     json.RawMessage(body),
	}

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := p.postJSON(ctx, token, "/v1/notifications/verify-webhook-signature", reqBody, &result); err != nil {
		return false, fmt.Errorf("webhook verification request failed: %w", err)
	}
	return result.VerificationStatus == "SUCCESS", nil
}

// accessToken fetches an OAuth token via the client-credentials grant.
func (p *PayPalProvider) accessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.apiBase+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	return tok.AccessToken, nil
}

// ensurePlan returns the PayPal plan ID for the billing plan, creating the
// product and plan on first use.
func (p *PayPalProvider) ensurePlan(ctx context.Context, token string, plan domain.BillingPlan) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.planIDs[plan]; ok {
		return id, nil
	}

	productID, err := p.ensureProduct(ctx, token)
	if err != nil {
		return "", err
	}

	intervalUnit := "MONTH"
	if plan == domain.PlanYearly {
		intervalUnit = "YEAR"
	}

	reqBody := map[string]interface{}{
		"product_id": productID,
		"name":       "Premium " + titleCase(string(plan)),
		"billing_cycles": []map[string]interface{}{{
			"frequency": map[string]interface{}{
				"interval_unit":  intervalUnit,
				"interval_count": 1,
			},
			"tenure_type":  "REGULAR",
			"sequence":     1,
			"total_cycles": 0,
			"pricing_scheme": map[string]interface{}{
				"fixed_price": map[string]string{
					"value":         plan.Price(),
					"currency_code": "USD",
				},
			},
		}},
		"payment_preferences": map[string]interface{}{
			"auto_bill_outstanding":     true,
			"setup_fee_failure_action":  "CONTINUE",
			"payment_failure_threshold": 3,
		},
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := p.postJSON(ctx, token, "/v1/billing/plans", reqBody, &created); err != nil {
		return "", fmt.Errorf("failed to create billing plan: %w", err)
	}

	p.planIDs[plan] = created.ID
	return created.ID, nil
}

// ensureProduct creates the catalog product, or finds the existing one
// when creation conflicts.
func (p *PayPalProvider) ensureProduct(ctx context.Context, token string) (string, error) {
	reqBody := map[string]string{
		"name":        paypalProductName,
		"description": "Unlimited audio transcriptions",
		"type":        "SERVICE",
		"category":    "SOFTWARE",
	}

	var created struct {
		ID string `json:"id"`
	}
	err := p.postJSON(ctx, token, "/v1/catalogs/products", reqBody, &created)
	if err == nil {
		return created.ID, nil
	}

	var listing struct {
		Products []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"products"`
	}
	if listErr := p.getJSON(ctx, token, "/v1/catalogs/products", &listing); listErr != nil {
		return "", fmt.Errorf("failed to create product: %w", err)
	}
	for _, product := range listing.Products {
		if product.Name == paypalProductName {
			return product.ID, nil
		}
	}
	return "", fmt.Errorf("failed to create product: %w", err)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (p *PayPalProvider) postJSON(ctx context.Context, token, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	return p.doJSON(req, token, out)
}

func (p *PayPalProvider) getJSON(ctx context.Context, token, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return err
	}
	return p.doJSON(req, token, out)
}

func (p *PayPalProvider) doJSON(req *http.Request, token string, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("paypal returned status %d: %s", resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
