// Package payment integrates the subscription payment providers. Exactly
// one provider is active per deployment, selected by configuration; the
// bot service asks it for checkout links and the web process feeds its
// callbacks back through the provider for verification.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/daracheol/voxscribe/internal/config"
	"github.com/daracheol/voxscribe/internal/domain"
)

// Action identifies what a verified provider callback asks us to do.
type Action string

// Callback actions.
const (
	// ActionSubscriptionCreated means a subscription exists but has not
	// been paid yet. No state change.
	ActionSubscriptionCreated Action = "subscription_created"

	// ActionSubscriptionActivated means the first payment cleared and
	// premium should be granted.
	ActionSubscriptionActivated Action = "subscription_activated"

	// ActionSubscriptionCancelled means the user should drop back to the
	// free plan.
	ActionSubscriptionCancelled Action = "subscription_cancelled"

	// ActionPaymentCompleted means a one-off or renewal payment cleared
	// and premium should be granted or extended.
	ActionPaymentCompleted Action = "payment_completed"
)

// Outcome is the normalized result of a verified provider callback.
type Outcome struct {
	Action         Action
	UserID         string
	SubscriptionID string

	// End is the new subscription end date, set for activations and
	// completed payments.
	End *time.Time
}

// LinkCreator produces checkout links. It is the only part of a provider
// the bot service needs.
type LinkCreator interface {
	// CreateSubscriptionLink returns a URL the user opens to pay for the
	// given plan. The user ID rides along so the provider callback can be
	// attributed.
	CreateSubscriptionLink(ctx context.Context, userID string, plan domain.BillingPlan) (string, error)
}

// Providers bundles the configured payment integrations. Only the active
// one is non-nil.
type Providers struct {
	Active LinkCreator

	PayPal       *PayPalProvider
	TwoCheckout  *TwoCheckoutProvider
	CoinPayments *CoinPaymentsProvider
}

// New constructs the provider selected by cfg.Method.
func New(cfg config.PaymentConfig, server config.ServerConfig, logger *slog.Logger) (*Providers, error) {
	p := &Providers{}
	switch cfg.Method {
	case "paypal":
		p.PayPal = NewPayPalProvider(cfg.PayPal, server, logger)
		p.Active = p.PayPal
	case "2checkout":
		p.TwoCheckout = NewTwoCheckoutProvider(cfg.TwoCheckout, server.BaseURL)
		p.Active = p.TwoCheckout
	case "crypto":
		p.CoinPayments = NewCoinPaymentsProvider(cfg.CoinPayments, server.BaseURL)
		p.Active = p.CoinPayments
	default:
		return nil, fmt.Errorf("unsupported payment method: %s", cfg.Method)
	}
	return p, nil
}
