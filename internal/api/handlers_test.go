package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daracheol/voxscribe/internal/config"
	"github.com/daracheol/voxscribe/internal/domain"
	"github.com/daracheol/voxscribe/internal/messenger"
	"github.com/daracheol/voxscribe/internal/payment"
	"github.com/daracheol/voxscribe/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type capturingProcessor struct {
	payloads []*messenger.WebhookPayload
}

func (c *capturingProcessor) HandleWebhook(_ context.Context, payload *messenger.WebhookPayload) {
	c.payloads = append(c.payloads, payload)
}

func TestWebhookVerify(t *testing.T) {
	t.Parallel()

	h := NewWebhookHandler("verify-token", &capturingProcessor{}, discardLogger())

	t.Run("echoes the challenge on a valid handshake", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet,
			"/webhook?hub.mode=subscribe&hub.verify_token=verify-token&hub.challenge=12345", nil)
		rec := httptest.NewRecorder()
		h.Verify(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "12345", rec.Body.String())
	})

	t.Run("rejects a wrong token", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet,
			"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
		rec := httptest.NewRecorder()
		h.Verify(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.NotContains(t, rec.Body.String(), "12345")
	})

	t.Run("rejects a wrong mode", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet,
			"/webhook?hub.mode=unsubscribe&hub.verify_token=verify-token&hub.challenge=12345", nil)
		rec := httptest.NewRecorder()
		h.Verify(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestWebhookReceive(t *testing.T) {
	t.Parallel()

	t.Run("forwards decoded deliveries and returns 200", func(t *testing.T) {
		t.Parallel()
		proc := &capturingProcessor{}
		h := NewWebhookHandler("verify-token", proc, discardLogger())

		body := `{"object":"page","entry":[{"messaging":[{"sender":{"id":"psid-1"},"message":{"mid":"m1","text":"hi"}}]}]}`
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Receive(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, proc.payloads, 1)
		assert.Equal(t, "page", proc.payloads[0].Object)
	})

	t.Run("rejects malformed bodies", func(t *testing.T) {
		t.Parallel()
		proc := &capturingProcessor{}
		h := NewWebhookHandler("verify-token", proc, discardLogger())

		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		h.Receive(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, proc.payloads)
	})
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	t.Run("healthy when all dependencies respond", func(t *testing.T) {
		t.Parallel()
		h := NewHealthHandler(map[string]Pinger{
			"mongodb": PingerFunc(func(context.Context) error { return nil }),
			"redis":   PingerFunc(func(context.Context) error { return nil }),
		}, discardLogger())

		rec := httptest.NewRecorder()
		h.Check(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp["status"])
	})

	t.Run("degraded when a dependency is down", func(t *testing.T) {
		t.Parallel()
		h := NewHealthHandler(map[string]Pinger{
			"mongodb": PingerFunc(func(context.Context) error { return nil }),
			"redis":   PingerFunc(func(context.Context) error { return errors.New("connection refused") }),
		}, discardLogger())

		rec := httptest.NewRecorder()
		h.Check(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var resp struct {
			Status       string            `json:"status"`
			Dependencies map[string]string `json:"dependencies"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "unreachable", resp.Dependencies["redis"])
		assert.Equal(t, "ok", resp.Dependencies["mongodb"])
	})
}

type subscriptionRecord struct {
	userID string
	subT   domain.SubscriptionType
	end    *time.Time
}

type fakeUserStore struct {
	store.UserStore

	updates   []subscriptionRecord
	deleted   []string
	deleteErr error
}

func (f *fakeUserStore) UpdateSubscription(_ context.Context, id string, t domain.SubscriptionType, end *time.Time) error {
	f.updates = append(f.updates, subscriptionRecord{userID: id, subT: t, end: end})
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func twoCheckoutProviders(t *testing.T) (*payment.Providers, *payment.TwoCheckoutProvider) {
	t.Helper()
	providers, err := payment.New(config.PaymentConfig{
		Method: "2checkout",
		TwoCheckout: config.TwoCheckoutConfig{
			MerchantCode: "vendor-1",
			SecretKey:    "secret-1",
		},
	}, config.ServerConfig{Environment: "development", BaseURL: "https://bot.example.com"}, discardLogger())
	require.NoError(t, err)
	return providers, providers.TwoCheckout
}

func cryptoProviders(t *testing.T) *payment.Providers {
	t.Helper()
	providers, err := payment.New(config.PaymentConfig{
		Method: "crypto",
		CoinPayments: config.CoinPaymentsConfig{
			MerchantID: "merchant-1",
			IPNSecret:  "ipn-secret",
		},
	}, config.ServerConfig{Environment: "development", BaseURL: "https://bot.example.com"}, discardLogger())
	require.NoError(t, err)
	return providers
}

func TestCryptoCheckout(t *testing.T) {
	t.Parallel()

	t.Run("renders the hosted checkout form", func(t *testing.T) {
		t.Parallel()
		h := NewPaymentHandler(cryptoProviders(t), &fakeUserStore{}, discardLogger())

		rec := httptest.NewRecorder()
		h.CryptoCheckout(rec, httptest.NewRequest(http.MethodGet,
			"/payment/crypto?user_id=psid-1&plan=yearly", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, payment.CoinPaymentsCheckoutURL)
		assert.Contains(t, body, `value="merchant-1"`)
		assert.Contains(t, body, `value="49.99"`)
		assert.Contains(t, body, `value="psid-1"`)
	})

	t.Run("missing user_id is rejected", func(t *testing.T) {
		t.Parallel()
		h := NewPaymentHandler(cryptoProviders(t), &fakeUserStore{}, discardLogger())

		rec := httptest.NewRecorder()
		h.CryptoCheckout(rec, httptest.NewRequest(http.MethodGet, "/payment/crypto", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("inactive provider is 404", func(t *testing.T) {
		t.Parallel()
		providers, _ := twoCheckoutProviders(t)
		h := NewPaymentHandler(providers, &fakeUserStore{}, discardLogger())

		rec := httptest.NewRecorder()
		h.CryptoCheckout(rec, httptest.NewRequest(http.MethodGet,
			"/payment/crypto?user_id=psid-1", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPaymentPages(t *testing.T) {
	t.Parallel()

	providers, _ := twoCheckoutProviders(t)
	h := NewPaymentHandler(providers, &fakeUserStore{}, discardLogger())

	rec := httptest.NewRecorder()
	h.Success(rec, httptest.NewRequest(http.MethodGet, "/payment/success", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Payment Successful")

	rec = httptest.NewRecorder()
	h.Cancel(rec, httptest.NewRequest(http.MethodGet, "/payment/cancel", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Payment Cancelled")
}

func TestTwoCheckoutIPNHandler(t *testing.T) {
	t.Parallel()

	t.Run("valid IPN grants premium", func(t *testing.T) {
		t.Parallel()
		providers, tco := twoCheckoutProviders(t)
		users := &fakeUserStore{}
		h := NewPaymentHandler(providers, users, discardLogger())

		form := url.Values{}
		form.Set("order_number", "ORD-1")
		form.Set("total", "4.99")
		form.Set("credit_card_processed", "Y")
		form.Set("custom", "psid-1")
		form.Set("key", tco.IPNSignature("ORD-1", "4.99"))

		req := httptest.NewRequest(http.MethodPost, "/payment/ipn/2checkout", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.TwoCheckoutIPN(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, users.updates, 1)
		assert.Equal(t, "psid-1", users.updates[0].userID)
		assert.Equal(t, domain.SubscriptionPremium, users.updates[0].subT)
		require.NotNil(t, users.updates[0].end)
	})

	t.Run("tampered IPN is rejected without state change", func(t *testing.T) {
		t.Parallel()
		providers, tco := twoCheckoutProviders(t)
		users := &fakeUserStore{}
		h := NewPaymentHandler(providers, users, discardLogger())

		form := url.Values{}
		form.Set("order_number", "ORD-1")
		form.Set("total", "999.99")
		form.Set("credit_card_processed", "Y")
		form.Set("custom", "psid-1")
		form.Set("key", tco.IPNSignature("ORD-1", "4.99"))

		req := httptest.NewRequest(http.MethodPost, "/payment/ipn/2checkout", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.TwoCheckoutIPN(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, users.updates)
	})

	t.Run("inactive provider returns 404", func(t *testing.T) {
		t.Parallel()
		providers, _ := twoCheckoutProviders(t)
		h := NewPaymentHandler(providers, &fakeUserStore{}, discardLogger())

		req := httptest.NewRequest(http.MethodPost, "/payment/webhook/paypal", strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		h.PayPalWebhook(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

type fakeTranscriptionStore struct {
	store.TranscriptionStore
	transcriptions []*domain.Transcription
	listErr        error
	deletedFor     []string
}

func (f *fakeTranscriptionStore) ListByUser(_ context.Context, _ string, _ int64) ([]*domain.Transcription, error) {
	return f.transcriptions, f.listErr
}

func (f *fakeTranscriptionStore) DeleteByUser(_ context.Context, userID string) error {
	f.deletedFor = append(f.deletedFor, userID)
	return nil
}

type fakePurger struct {
	deleted []string
	err     error
}

func (f *fakePurger) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.err
}

type fakeStatsStore struct {
	stats *store.Stats
	err   error
}

func (f *fakeStatsStore) Stats(_ context.Context) (*store.Stats, error) {
	return f.stats, f.err
}

type fakeExportStore struct {
	export *store.UserExport
	err    error
}

func (f *fakeExportStore) Export(_ context.Context, _ string) (*store.UserExport, error) {
	return f.export, f.err
}

func adminRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	parts := strings.Split(strings.Trim(path, "/"), "/")
	rctx := chi.NewRouteContext()
	if len(parts) >= 3 {
		rctx.URLParams.Add("id", parts[2])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestAdminHandler(t *testing.T) {
	t.Parallel()

	t.Run("stats returns the aggregates", func(t *testing.T) {
		t.Parallel()
		h := NewAdminHandler(
			&fakeStatsStore{stats: &store.Stats{TotalUsers: 42, PremiumUsers: 7, TotalTranscriptions: 1000}},
			&fakeExportStore{}, &fakeUserStore{}, &fakeTranscriptionStore{}, nil, discardLogger())

		rec := httptest.NewRecorder()
		h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var stats store.Stats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.Equal(t, int64(42), stats.TotalUsers)
		assert.Equal(t, int64(7), stats.PremiumUsers)
	})

	t.Run("export returns the user's records", func(t *testing.T) {
		t.Parallel()
		user, _ := domain.NewUser("psid-1")
		h := NewAdminHandler(&fakeStatsStore{},
			&fakeExportStore{export: &store.UserExport{User: user}},
			&fakeUserStore{}, &fakeTranscriptionStore{}, nil, discardLogger())

		rec := httptest.NewRecorder()
		h.ExportUser(rec, adminRequest(http.MethodGet, "/api/users/psid-1/export"))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "psid-1")
	})

	t.Run("export of an unknown user is 404", func(t *testing.T) {
		t.Parallel()
		h := NewAdminHandler(&fakeStatsStore{},
			&fakeExportStore{err: store.ErrUserNotFound},
			&fakeUserStore{}, &fakeTranscriptionStore{}, nil, discardLogger())

		rec := httptest.NewRecorder()
		h.ExportUser(rec, adminRequest(http.MethodGet, "/api/users/missing/export"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete erases the user and their records", func(t *testing.T) {
		t.Parallel()
		users := &fakeUserStore{}
		transcriptions := &fakeTranscriptionStore{}
		h := NewAdminHandler(&fakeStatsStore{}, &fakeExportStore{}, users, transcriptions, nil, discardLogger())

		rec := httptest.NewRecorder()
		h.DeleteUser(rec, adminRequest(http.MethodDelete, "/api/users/psid-1"))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []string{"psid-1"}, users.deleted)
		assert.Equal(t, []string{"psid-1"}, transcriptions.deletedFor)
	})

	t.Run("delete purges archived media", func(t *testing.T) {
		t.Parallel()
		tr1, err := domain.NewTranscription("psid-1", "first", "en")
		require.NoError(t, err)
		tr1.ObjectKey = "media/psid-1/a.mp4"
		tr2, err := domain.NewTranscription("psid-1", "second", "en")
		require.NoError(t, err)

		transcriptions := &fakeTranscriptionStore{transcriptions: []*domain.Transcription{tr1, tr2}}
		purger := &fakePurger{}
		h := NewAdminHandler(&fakeStatsStore{}, &fakeExportStore{}, &fakeUserStore{}, transcriptions, purger, discardLogger())

		rec := httptest.NewRecorder()
		h.DeleteUser(rec, adminRequest(http.MethodDelete, "/api/users/psid-1"))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []string{"media/psid-1/a.mp4"}, purger.deleted, "only keyed records are purged")
	})

	t.Run("delete of an unknown user is 404", func(t *testing.T) {
		t.Parallel()
		users := &fakeUserStore{deleteErr: store.ErrUserNotFound}
		h := NewAdminHandler(&fakeStatsStore{}, &fakeExportStore{}, users, &fakeTranscriptionStore{}, nil, discardLogger())

		rec := httptest.NewRecorder()
		h.DeleteUser(rec, adminRequest(http.MethodDelete, "/api/users/missing"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
