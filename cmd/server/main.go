// Package main implements the web process: webhook ingestion, payment
// callbacks, the health endpoint, and the operator API. Transcription
// itself happens in the worker process; this process only enqueues.
package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/daracheol/voxscribe/internal/config"
	"github.com/daracheol/voxscribe/internal/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if _, err := logger.Setup(cfg.Server); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"environment", cfg.Server.Environment,
		"log_level", cfg.Server.LogLevel,
		"payment_method", cfg.Payment.Method)

	ctx := context.Background()
	app, err := newApplication(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
