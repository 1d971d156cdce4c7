package payment

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daracheol/voxscribe/internal/config"
	"github.com/daracheol/voxscribe/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serverConfig() config.ServerConfig {
	return config.ServerConfig{
		Environment: "development",
		BaseURL:     "https://bot.example.com",
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("selects paypal", func(t *testing.T) {
		t.Parallel()
		p, err := New(config.PaymentConfig{Method: "paypal"}, serverConfig(), discardLogger())
		require.NoError(t, err)
		assert.NotNil(t, p.PayPal)
		assert.Same(t, p.PayPal, p.Active)
		assert.Nil(t, p.TwoCheckout)
	})

	t.Run("selects 2checkout", func(t *testing.T) {
		t.Parallel()
		p, err := New(config.PaymentConfig{Method: "2checkout"}, serverConfig(), discardLogger())
		require.NoError(t, err)
		assert.NotNil(t, p.TwoCheckout)
	})

	t.Run("selects coinpayments for crypto", func(t *testing.T) {
		t.Parallel()
		p, err := New(config.PaymentConfig{Method: "crypto"}, serverConfig(), discardLogger())
		require.NoError(t, err)
		assert.NotNil(t, p.CoinPayments)
	})

	t.Run("rejects unknown methods", func(t *testing.T) {
		t.Parallel()
		_, err := New(config.PaymentConfig{Method: "stripe"}, serverConfig(), discardLogger())
		assert.Error(t, err)
	})
}

func TestPayPalCreateSubscriptionLink(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
	})
	mux.HandleFunc("/v1/catalogs/products", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "PROD-1"})
	})
	mux.HandleFunc("/v1/billing/plans", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "PROD-1", body["product_id"])
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "PLAN-1"})
	})
	mux.HandleFunc("/v1/billing/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "PLAN-1", body["plan_id"])
		assert.Equal(t, "psid-1", body["custom_id"])
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "SUB-1",
			"links": []map[string]string{
				{"rel": "self", "href": "https://paypal.test/self"},
				{"rel": "approve", "href": "https://paypal.test/approve"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewPayPalProvider(config.PayPalConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		WebhookID:    "WH-1",
	}, serverConfig(), discardLogger())
	p.SetAPIBase(srv.URL)

	link, err := p.CreateSubscriptionLink(context.Background(), "psid-1", domain.PlanMonthly)
	require.NoError(t, err)
	assert.Equal(t, "https://paypal.test/approve", link)

	// Second checkout reuses the cached plan.
	link, err = p.CreateSubscriptionLink(context.Background(), "psid-2", domain.PlanMonthly)
	require.NoError(t, err)
	assert.Equal(t, "https://paypal.test/approve", link)
}

func TestPayPalConcurrentCheckouts(t *testing.T) {
	t.Parallel()

	var planCreations atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
	})
	mux.HandleFunc("/v1/catalogs/products", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "PROD-1"})
	})
	mux.HandleFunc("/v1/billing/plans", func(w http.ResponseWriter, _ *http.Request) {
		planCreations.Add(1)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "PLAN-1"})
	})
	mux.HandleFunc("/v1/billing/subscriptions", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "SUB-1",
			"links": []map[string]string{
				{"rel": "approve", "href": "https://paypal.test/approve"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewPayPalProvider(config.PayPalConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}, serverConfig(), discardLogger())
	p.SetAPIBase(srv.URL)

	// Webhook deliveries are served concurrently, so checkout links for
	// the same plan must be safe to create in parallel.
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.CreateSubscriptionLink(context.Background(), "psid-1", domain.PlanMonthly)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), planCreations.Load(), "concurrent checkouts share one cached plan")
}

func TestPayPalProcessWebhookEvent(t *testing.T) {
	t.Parallel()

	p := NewPayPalProvider(config.PayPalConfig{}, serverConfig(), discardLogger())

	t.Run("activation grants premium", func(t *testing.T) {
		t.Parallel()
		body := []byte(`{"event_type":"BILLING.SUBSCRIPTION.ACTIVATED","resource":{"id":"SUB-1","custom_id":"psid-1"}}`)
		outcome, err := p.ProcessWebhookEvent(body)
		require.NoError(t, err)
		require.NotNil(t, outcome)
		assert.Equal(t, ActionSubscriptionActivated, outcome.Action)
		assert.Equal(t, "psid-1", outcome.UserID)
		assert.Equal(t, "SUB-1", outcome.SubscriptionID)
		require.NotNil(t, outcome.End)
		assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), *outcome.End, time.Minute)
	})

	t.Run("cancellation drops to free", func(t *testing.T) {
		t.Parallel()
		body := []byte(`{"event_type":"BILLING.SUBSCRIPTION.CANCELLED","resource":{"custom_id":"psid-1"}}`)
		outcome, err := p.ProcessWebhookEvent(body)
		require.NoError(t, err)
		require.NotNil(t, outcome)
		assert.Equal(t, ActionSubscriptionCancelled, outcome.Action)
		assert.Nil(t, outcome.End)
	})

	t.Run("sale completion extends premium", func(t *testing.T) {
		t.Parallel()
		body := []byte(`{"event_type":"PAYMENT.SALE.COMPLETED","resource":{"custom":"psid-1"}}`)
		outcome, err := p.ProcessWebhookEvent(body)
		require.NoError(t, err)
		require.NotNil(t, outcome)
		assert.Equal(t, ActionPaymentCompleted, outcome.Action)
	})

	t.Run("ignores unrelated events", func(t *testing.T) {
		t.Parallel()
		body := []byte(`{"event_type":"CUSTOMER.DISPUTE.CREATED","resource":{}}`)
		outcome, err := p.ProcessWebhookEvent(body)
		require.NoError(t, err)
		assert.Nil(t, outcome)
	})

	t.Run("rejects malformed bodies", func(t *testing.T) {
		t.Parallel()
		_, err := p.ProcessWebhookEvent([]byte("{not json"))
		assert.Error(t, err)
	})
}

func TestTwoCheckout(t *testing.T) {
	t.Parallel()

	provider := NewTwoCheckoutProvider(config.TwoCheckoutConfig{
		MerchantCode: "vendor-1",
		SecretKey:    "secret-1",
	}, "https://bot.example.com")

	t.Run("buy link is signed", func(t *testing.T) {
		t.Parallel()
		link, err := provider.CreateSubscriptionLink(context.Background(), "psid-1", domain.PlanYearly)
		require.NoError(t, err)

		u, err := url.Parse(link)
		require.NoError(t, err)
		q := u.Query()
		assert.Equal(t, "vendor-1", q.Get("merchant"))
		assert.Equal(t, "49.99", q.Get("price"))
		assert.Equal(t, "psid-1", q.Get("custom"))

		sum := md5.Sum([]byte("vendor-1" + twoCheckoutProductName + "49.99" + "secret-1"))
		assert.Equal(t, hex.EncodeToString(sum[:]), q.Get("signature"))
	})

	t.Run("accepts a correctly keyed IPN", func(t *testing.T) {
		t.Parallel()
		form := url.Values{}
		form.Set("order_number", "ORD-9")
		form.Set("total", "4.99")
		form.Set("credit_card_processed", "Y")
		form.Set("custom", "psid-1")
		form.Set("key", provider.IPNSignature("ORD-9", "4.99"))

		outcome, err := provider.ProcessIPN(form)
		require.NoError(t, err)
		require.NotNil(t, outcome)
		assert.Equal(t, ActionPaymentCompleted, outcome.Action)
		assert.Equal(t, "psid-1", outcome.UserID)
		require.NotNil(t, outcome.End)
	})

	t.Run("rejects a tampered IPN", func(t *testing.T) {
		t.Parallel()
		form := url.Values{}
		form.Set("order_number", "ORD-9")
		form.Set("total", "999.99")
		form.Set("credit_card_processed", "Y")
		form.Set("custom", "psid-1")
		form.Set("key", provider.IPNSignature("ORD-9", "4.99"))

		_, err := provider.ProcessIPN(form)
		assert.Error(t, err)
	})

	t.Run("ignores unprocessed payments", func(t *testing.T) {
		t.Parallel()
		form := url.Values{}
		form.Set("order_number", "ORD-9")
		form.Set("total", "4.99")
		form.Set("credit_card_processed", "N")
		form.Set("key", provider.IPNSignature("ORD-9", "4.99"))

		outcome, err := provider.ProcessIPN(form)
		require.NoError(t, err)
		assert.Nil(t, outcome)
	})

	t.Run("ipn signature matches the documented scheme", func(t *testing.T) {
		t.Parallel()
		sum := md5.Sum([]byte("secret-1" + "vendor-1" + "ORD-9" + "4.99"))
		expected := strings.ToUpper(hex.EncodeToString(sum[:]))
		assert.Equal(t, expected, provider.IPNSignature("ORD-9", "4.99"))
	})
}

func TestCoinPayments(t *testing.T) {
	t.Parallel()

	provider := NewCoinPaymentsProvider(config.CoinPaymentsConfig{
		MerchantID: "merchant-1",
		IPNSecret:  "ipn-secret",
	}, "https://bot.example.com")

	t.Run("payment link carries the plan", func(t *testing.T) {
		t.Parallel()
		link, err := provider.CreateSubscriptionLink(context.Background(), "psid-1", domain.PlanMonthly)
		require.NoError(t, err)

		u, err := url.Parse(link)
		require.NoError(t, err)
		assert.Equal(t, "/payment/crypto", u.Path)
		assert.Equal(t, "monthly", u.Query().Get("plan"))
	})

	t.Run("checkout form carries the plan price, not client input", func(t *testing.T) {
		t.Parallel()
		fields := provider.CheckoutForm("psid-1", domain.PlanYearly)

		assert.Equal(t, "_pay_simple", fields.Get("cmd"))
		assert.Equal(t, "merchant-1", fields.Get("merchant"))
		assert.Equal(t, "yearly", fields.Get("item_number"))
		assert.Equal(t, "49.99", fields.Get("amountf"))
		assert.Equal(t, "psid-1", fields.Get("custom"))
		assert.Equal(t, "https://bot.example.com/payment/success", fields.Get("success_url"))
	})

	t.Run("verifies the IPN HMAC", func(t *testing.T) {
		t.Parallel()
		body := []byte("merchant=merchant-1&status=100&custom=psid-1")
		mac := hmac.New(sha512.New, []byte("ipn-secret"))
		mac.Write(body)
		sig := hex.EncodeToString(mac.Sum(nil))

		assert.True(t, provider.VerifyIPN(body, sig))
		assert.False(t, provider.VerifyIPN(body, "bad-signature"))
		assert.False(t, provider.VerifyIPN([]byte("tampered"), sig))
	})

	t.Run("completed payment grants premium for the plan term", func(t *testing.T) {
		t.Parallel()
		form := url.Values{}
		form.Set("merchant", "merchant-1")
		form.Set("status", "100")
		form.Set("custom", "psid-1")
		form.Set("item_number", "yearly")

		outcome, err := provider.ProcessIPN(form)
		require.NoError(t, err)
		require.NotNil(t, outcome)
		assert.Equal(t, ActionPaymentCompleted, outcome.Action)
		require.NotNil(t, outcome.End)
		assert.WithinDuration(t, time.Now().UTC().Add(365*24*time.Hour), *outcome.End, time.Minute)
	})

	t.Run("pending payments produce no outcome", func(t *testing.T) {
		t.Parallel()
		form := url.Values{}
		form.Set("merchant", "merchant-1")
		form.Set("status", "1")
		form.Set("custom", "psid-1")

		outcome, err := provider.ProcessIPN(form)
		require.NoError(t, err)
		assert.Nil(t, outcome)
	})

	t.Run("rejects merchant mismatch", func(t *testing.T) {
		t.Parallel()
		form := url.Values{}
		form.Set("merchant", "other")
		form.Set("status", "100")
		form.Set("custom", "psid-1")

		_, err := provider.ProcessIPN(form)
		assert.Error(t, err)
	})
}
