package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/daracheol/voxscribe/internal/api/shared"
	"github.com/daracheol/voxscribe/internal/messenger"
)

// webhookProcessor routes a decoded webhook delivery. Implemented by the
// bot service.
type webhookProcessor interface {
	HandleWebhook(ctx context.Context, payload *messenger.WebhookPayload)
}

// WebhookHandler serves the messenger webhook endpoint: subscription
// verification on GET, event ingestion on POST.
type WebhookHandler struct {
	verifyToken string
	processor   webhookProcessor
	logger      *slog.Logger
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(verifyToken string, processor webhookProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		processor:   processor,
		logger:      logger.With("component", "webhook_handler"),
	}
}

// Verify handles the platform's GET verification handshake: when the
// token matches, the challenge is echoed back verbatim.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		h.logger.WarnContext(r.Context(), "webhook verification failed",
			"mode", mode,
			"trace_id", shared.GetTraceID(r.Context()))
		shared.RespondWithError(w, r, http.StatusForbidden, "Verification failed")
		return
	}

	h.logger.InfoContext(r.Context(), "webhook verified")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// Receive handles a POST delivery. The body has already passed signature
// verification. Deliveries always get a 200 so the platform does not
// re-deliver; processing failures are handled internally.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var payload messenger.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.processor.HandleWebhook(r.Context(), &payload)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
