package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/daracheol/voxscribe/internal/config"
	"github.com/daracheol/voxscribe/internal/domain"
)

// coinPaymentsStatusComplete is the lowest status value CoinPayments
// reports for a finished, irreversible payment.
const coinPaymentsStatusComplete = 100

// CoinPaymentsCheckoutURL is the hosted payment page the checkout form
// posts to.
const CoinPaymentsCheckoutURL = "https://www.coinpayments.net/index.php"

// CoinPaymentsProvider handles crypto payments via CoinPayments hosted
// checkout and its HMAC-signed IPN callbacks.
type CoinPaymentsProvider struct {
	merchantID string
	ipnSecret  string
	returnBase string
}

// NewCoinPaymentsProvider creates the CoinPayments integration.
func NewCoinPaymentsProvider(cfg config.CoinPaymentsConfig, baseURL string) *CoinPaymentsProvider {
	return &CoinPaymentsProvider{
		merchantID: cfg.MerchantID,
		ipnSecret:  cfg.IPNSecret,
		returnBase: baseURL,
	}
}

// CreateSubscriptionLink returns the hosted crypto checkout URL for the
// plan.
func (c *CoinPaymentsProvider) CreateSubscriptionLink(_ context.Context, userID string, plan domain.BillingPlan) (string, error) {
	params := url.Values{}
	params.Set("user_id", userID)
	params.Set("plan", string(plan))
	return c.returnBase + "/payment/crypto?" + params.Encode(), nil
}

// CheckoutForm returns the hidden fields of the hosted checkout form for
// the plan. The price comes from the plan, never from client input.
func (c *CoinPaymentsProvider) CheckoutForm(userID string, plan domain.BillingPlan) url.Values {
	v := url.Values{}
	v.Set("cmd", "_pay_simple")
	v.Set("reset", "1")
	v.Set("merchant", c.merchantID)
	v.Set("item_name", "VoxScribe Premium")
	v.Set("item_number", string(plan))
	v.Set("currency", "USD")
	v.Set("amountf", plan.Price())
	v.Set("want_shipping", "0")
	v.Set("custom", userID)
	v.Set("success_url", c.returnBase+"/payment/success")
	v.Set("cancel_url", c.returnBase+"/payment/cancel")
	return v
}

// VerifyIPN checks the HMAC header CoinPayments sends against the raw
// request body.
func (c *CoinPaymentsProvider) VerifyIPN(body []byte, hmacHeader string) bool {
	mac := hmac.New(sha512.New, []byte(c.ipnSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(hmacHeader))
}

// ProcessIPN maps a verified IPN form to an Outcome. Returns (nil, nil)
// when the payment has not completed yet.
func (c *CoinPaymentsProvider) ProcessIPN(form url.Values) (*Outcome, error) {
	if got := form.Get("merchant"); got != "" && got != c.merchantID {
		return nil, fmt.Errorf("IPN merchant mismatch")
	}

	status, err := strconv.Atoi(form.Get("status"))
	if err != nil {
		return nil, fmt.Errorf("IPN has unparseable status %q", form.Get("status"))
	}
	if status < coinPaymentsStatusComplete {
		return nil, nil
	}

	userID := form.Get("custom")
	if userID == "" {
		return nil, fmt.Errorf("IPN missing custom field")
	}

	plan := domain.PlanMonthly
	if domain.BillingPlan(form.Get("item_number")) == domain.PlanYearly {
		plan = domain.PlanYearly
	}

	end := time.Now().UTC().Add(plan.Term())
	return &Outcome{
		Action: ActionPaymentCompleted,
		UserID: userID,
		End:    &end,
	}, nil
}
