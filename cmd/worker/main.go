// Package main implements the worker process: it consumes transcription
// tasks from the queue and runs the download, conversion, transcription,
// and delivery pipeline. Exactly one task runs at a time because the
// Whisper step saturates a single instance.
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

	slog.Info("Worker configuration loaded",
		"environment", cfg.Server.Environment,
		"log_level", cfg.Server.LogLevel,
		"whisper_model", cfg.Transcription.WhisperModel,
		"storage_enabled", cfg.Storage.Enabled())

	ctx := context.Background()
	app, err := newWorkerApplication(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize worker: %v", err)
	}

	if err := app.run(); err != nil {
		log.Fatalf("Worker exited with error: %v", err)
	}
}
