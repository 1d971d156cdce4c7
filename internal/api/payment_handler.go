package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/daracheol/voxscribe/internal/api/shared"
	"github.com/daracheol/voxscribe/internal/domain"
	"github.com/daracheol/voxscribe/internal/payment"
	"github.com/daracheol/voxscribe/internal/store"
)

// maxCallbackBody bounds payment callback bodies.
const maxCallbackBody = 1 << 20

const paymentSuccessPage = `<!DOCTYPE html>
<html>
<head>
  <title>Payment Successful</title>
  <meta charset="utf-8">
  <style>
    body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }
    .success { color: #4CAF50; font-size: 24px; }
    .message { margin-top: 20px; font-size: 18px; }
  </style>
</head>
<body>
  <div class="success">✅ Payment Successful!</div>
  <div class="message">
    Your premium subscription is now active.<br>
    Return to Messenger to enjoy unlimited transcriptions!
  </div>
</body>
</html>`

const paymentCancelPage = `<!DOCTYPE html>
<html>
<head>
  <title>Payment Cancelled</title>
  <meta charset="utf-8">
  <style>
    body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }
    .cancel { color: #f44336; font-size: 24px; }
    .message { margin-top: 20px; font-size: 18px; }
  </style>
</head>
<body>
  <div class="cancel">❌ Payment Cancelled</div>
  <div class="message">
    Your payment was cancelled.<br>
    Return to Messenger to try again or continue with the free plan.
  </div>
</body>
</html>`

const cryptoCheckoutPage = `<!DOCTYPE html>
<html>
<head>
  <title>Pay with Crypto</title>
  <meta charset="utf-8">
  <style>
    body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }
    .title { font-size: 24px; }
    .message { margin-top: 20px; font-size: 18px; }
    button { margin-top: 30px; font-size: 18px; padding: 10px 30px; }
  </style>
</head>
<body>
  <div class="title">💰 Pay with Cryptocurrency</div>
  <form action="%s" method="post">
%s    <div class="message">You will be redirected to CoinPayments to complete a $%s payment.</div>
    <button type="submit">Continue to CoinPayments</button>
  </form>
</body>
</html>`

// PaymentHandler serves checkout return pages and provider callbacks.
type PaymentHandler struct {
	providers *payment.Providers
	users     store.UserStore
	logger    *slog.Logger
}

// NewPaymentHandler creates the payment handler.
func NewPaymentHandler(providers *payment.Providers, users store.UserStore, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		providers: providers,
		users:     users,
		logger:    logger.With("component", "payment_handler"),
	}
}

// Success renders the post-checkout success page.
func (h *PaymentHandler) Success(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(paymentSuccessPage))
}

// Cancel renders the checkout cancellation page.
func (h *PaymentHandler) Cancel(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(paymentCancelPage))
}

// CryptoCheckout renders a handoff page whose form posts the user to the
// CoinPayments hosted checkout. The price always comes from the plan in
// the query, never from a client-supplied amount.
func (h *PaymentHandler) CryptoCheckout(w http.ResponseWriter, r *http.Request) {
	if h.providers.CoinPayments == nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "Crypto payments are not enabled")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}

	plan := domain.PlanMonthly
	if domain.BillingPlan(r.URL.Query().Get("plan")) == domain.PlanYearly {
		plan = domain.PlanYearly
	}

	fields := h.providers.CoinPayments.CheckoutForm(userID, plan)
	var inputs strings.Builder
	for key, values := range fields {
		for _, value := range values {
			inputs.WriteString(fmt.Sprintf(
				`    <input type="hidden" name=%q value=%q>`+"\n",
				key, value))
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, cryptoCheckoutPage,
		payment.CoinPaymentsCheckoutURL, inputs.String(), plan.Price())
}

// PayPalWebhook handles PayPal subscription lifecycle events. The
// transmission signature is verified against the PayPal API before any
// state changes.
func (h *PaymentHandler) PayPalWebhook(w http.ResponseWriter, r *http.Request) {
	if h.providers.PayPal == nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "PayPal is not the active payment method")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	ok, err := h.providers.PayPal.VerifyWebhook(r.Context(), r.Header, body)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Webhook verification failed", err)
		return
	}
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid webhook signature")
		return
	}

	outcome, err := h.providers.PayPal.ProcessWebhookEvent(body)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid webhook event", err)
		return
	}

	h.applyOutcome(w, r, outcome)
}

// TwoCheckoutIPN handles 2Checkout instant payment notifications.
func (h *PaymentHandler) TwoCheckoutIPN(w http.ResponseWriter, r *http.Request) {
	if h.providers.TwoCheckout == nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "2Checkout is not the active payment method")
		return
	}

	if err := r.ParseForm(); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid form body", err)
		return
	}

	outcome, err := h.providers.TwoCheckout.ProcessIPN(r.PostForm)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid IPN", err)
		return
	}

	h.applyOutcome(w, r, outcome)
}

// CoinPaymentsIPN handles CoinPayments notifications. The HMAC header is
// checked against the raw body before the form is parsed.
func (h *PaymentHandler) CoinPaymentsIPN(w http.ResponseWriter, r *http.Request) {
	if h.providers.CoinPayments == nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "CoinPayments is not the active payment method")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	if !h.providers.CoinPayments.VerifyIPN(body, r.Header.Get("Hmac")) {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid IPN signature")
		return
	}

	form, err := parseFormBody(body)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid form body", err)
		return
	}

	outcome, err := h.providers.CoinPayments.ProcessIPN(form)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid IPN", err)
		return
	}

	h.applyOutcome(w, r, outcome)
}

func parseFormBody(body []byte) (url.Values, error) {
	return url.ParseQuery(string(body))
}

// applyOutcome updates subscription state for a verified callback and
// acknowledges it. A nil outcome is a valid no-op.
func (h *PaymentHandler) applyOutcome(w http.ResponseWriter, r *http.Request, outcome *payment.Outcome) {
	if outcome != nil {
		var err error
		switch outcome.Action {
		case payment.ActionSubscriptionActivated, payment.ActionPaymentCompleted:
			err = h.users.UpdateSubscription(r.Context(), outcome.UserID, domain.SubscriptionPremium, outcome.End)
		case payment.ActionSubscriptionCancelled:
			err = h.users.UpdateSubscription(r.Context(), outcome.UserID, domain.SubscriptionFree, nil)
		}
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to update subscription", err)
			return
		}
		h.logger.InfoContext(r.Context(), "applied payment outcome",
			"action", outcome.Action,
			"user_id", outcome.UserID)
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
