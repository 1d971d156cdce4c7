package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/daracheol/voxscribe/internal/api/shared"
	"github.com/daracheol/voxscribe/internal/messenger"
)

// maxWebhookBody bounds webhook delivery bodies. Deliveries carry event
// metadata and CDN URLs, never media.
const maxWebhookBody = 1 << 20

// SignatureMiddleware enforces the X-Hub-Signature-256 header the
// messaging platform signs every delivery with.
type SignatureMiddleware struct {
	appSecret string
}

// NewSignatureMiddleware creates the middleware around the app secret.
func NewSignatureMiddleware(appSecret string) *SignatureMiddleware {
	return &SignatureMiddleware{appSecret: appSecret}
}

// Verify checks the delivery signature against the raw body and rejects
// mismatches. The body is restored for the next handler.
func (m *SignatureMiddleware) Verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Failed to read request body")
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		header := r.Header.Get("X-Hub-Signature-256")
		if !messenger.VerifySignature(m.appSecret, body, header) {
			slog.Warn("rejected webhook with bad signature",
				"trace_id", shared.GetTraceID(r.Context()),
				"remote_addr", r.RemoteAddr)
			shared.RespondWithError(w, r, http.StatusForbidden, "Invalid signature")
			return
		}

		next.ServeHTTP(w, r)
	})
}
