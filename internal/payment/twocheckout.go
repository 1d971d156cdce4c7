package payment

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/daracheol/voxscribe/internal/config"
	"github.com/daracheol/voxscribe/internal/domain"
)

const (
	twoCheckoutBuyURL      = "https://www.2checkout.com/checkout/purchase"
	twoCheckoutProductName = "VoxScribe Premium"
)

// TwoCheckoutProvider builds signed 2Checkout buy links and validates its
// instant payment notifications.
type TwoCheckoutProvider struct {
	merchantCode string
	secretKey    string
	returnBase   string
}

// NewTwoCheckoutProvider creates the 2Checkout integration.
func NewTwoCheckoutProvider(cfg config.TwoCheckoutConfig, baseURL string) *TwoCheckoutProvider {
	return &TwoCheckoutProvider{
		merchantCode: cfg.MerchantCode,
		secretKey:    cfg.SecretKey,
		returnBase:   baseURL,
	}
}

// CreateSubscriptionLink returns a signed hosted-checkout URL. The user ID
// travels in the custom field and comes back on the IPN.
func (t *TwoCheckoutProvider) CreateSubscriptionLink(_ context.Context, userID string, plan domain.BillingPlan) (string, error) {
	price := plan.Price()

	params := url.Values{}
	params.Set("merchant", t.merchantCode)
	params.Set("prod", twoCheckoutProductName)
	params.Set("price", price)
	params.Set("qty", "1")
	params.Set("type", "digital")
	params.Set("tangible", "N")
	params.Set("src", "messenger_bot")
	params.Set("return_url", t.returnBase+"/payment/success")
	params.Set("x_receipt_link_url", t.returnBase+"/payment/ipn/2checkout")
	params.Set("custom", userID)
	params.Set("signature", t.buyLinkSignature(price))

	return twoCheckoutBuyURL + "?" + params.Encode(), nil
}

// buyLinkSignature signs merchant+product+price with the secret key.
func (t *TwoCheckoutProvider) buyLinkSignature(price string) string {
	sum := md5.Sum([]byte(t.merchantCode + twoCheckoutProductName + price + t.secretKey))
	return hex.EncodeToString(sum[:])
}

// IPNSignature computes the expected value of the IPN key field:
// MD5(secret + vendor + order number + total), uppercase hex.
func (t *TwoCheckoutProvider) IPNSignature(orderNumber, total string) string {
	sum := md5.Sum([]byte(t.secretKey + t.merchantCode + orderNumber + total))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// ProcessIPN validates the IPN form and maps a processed payment to an
// Outcome. Returns an error on signature mismatch and (nil, nil) for
// notifications that are valid but not payments.
func (t *TwoCheckoutProvider) ProcessIPN(form url.Values) (*Outcome, error) {
	expected := t.IPNSignature(form.Get("order_number"), form.Get("total"))
	provided := strings.ToUpper(form.Get("key"))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
		return nil, fmt.Errorf("invalid IPN signature")
	}

	if form.Get("credit_card_processed") != "Y" {
		return nil, nil
	}

	userID := form.Get("custom")
	if userID == "" {
		return nil, fmt.Errorf("IPN missing custom field")
	}

	end := time.Now().UTC().Add(domain.PlanMonthly.Term())
	return &Outcome{
		Action: ActionPaymentCompleted,
		UserID: userID,
		End:    &end,
	}, nil
}
