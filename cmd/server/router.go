package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/daracheol/voxscribe/internal/api"
	apimiddleware "github.com/daracheol/voxscribe/internal/api/middleware"
)

// requestTimeout bounds request handling. Webhook handling only enqueues,
// so the generous ceiling is for payment provider round trips.
const requestTimeout = 120 * time.Second

// setupRouter configures all routes and middleware of the web process.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))
	r.Use(apimiddleware.TraceMiddleware)

	webhookHandler := api.NewWebhookHandler(app.config.Messenger.VerifyToken, app.botService, app.logger)
	paymentHandler := api.NewPaymentHandler(app.providers, app.userStore, app.logger)
	var archive api.MediaPurger
	if app.objClient != nil {
		archive = app.objClient
	}
	adminHandler := api.NewAdminHandler(app.statsStore, app.statsStore, app.userStore,
		app.transcriptionStore, archive, app.logger)
	healthHandler := api.NewHealthHandler(map[string]api.Pinger{
		"mongodb": api.PingerFunc(func(ctx context.Context) error {
			return app.mongoClient.Ping(ctx, readpref.Primary())
		}),
		"redis": api.PingerFunc(func(ctx context.Context) error {
			return app.redisClient.Ping(ctx).Err()
		}),
	}, app.logger)

	signatureMiddleware := apimiddleware.NewSignatureMiddleware(app.config.Messenger.AppSecret)

	// Messenger webhook. GET is the platform's verification handshake,
	// POST deliveries must carry a valid payload signature.
	r.Get("/webhook", webhookHandler.Verify)
	r.Group(func(r chi.Router) {
		r.Use(signatureMiddleware.Verify)
		r.Post("/webhook", webhookHandler.Receive)
	})

	// Payment return pages and provider callbacks.
	r.Route("/payment", func(r chi.Router) {
		r.Get("/success", paymentHandler.Success)
		r.Get("/cancel", paymentHandler.Cancel)
		r.Get("/crypto", paymentHandler.CryptoCheckout)
		r.Post("/webhook/paypal", paymentHandler.PayPalWebhook)
		r.Post("/ipn/2checkout", paymentHandler.TwoCheckoutIPN)
		r.Post("/ipn/coinpayments", paymentHandler.CoinPaymentsIPN)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Check)

		// Operator API, only reachable when an admin secret is set.
		if app.tokenService != nil {
			authMiddleware := apimiddleware.NewAuthMiddleware(app.tokenService)
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.Authenticate)
				r.Get("/stats", adminHandler.Stats)
				r.Get("/users/{id}/export", adminHandler.ExportUser)
				r.Delete("/users/{id}", adminHandler.DeleteUser)
			})
		} else {
			app.logger.Info("admin API disabled, no admin secret configured")
		}
	})

	return r
}
