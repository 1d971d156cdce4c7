// Package transcription wraps the hosted Whisper API and the language
// identification logic applied to its output.
package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/daracheol/voxscribe/internal/config"
)

// Result is a completed transcription.
type Result struct {
	Text            string
	Language        string
	DurationSeconds float64
}

// audioAPI is the slice of the OpenAI client the transcriber uses,
// extracted for testing.
type audioAPI interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// Transcriber transcribes audio files through the Whisper API.
type Transcriber struct {
	api       audioAPI
	modelTier string
	logger    *slog.Logger
}

// NewTranscriber creates a transcriber from the application configuration.
func NewTranscriber(cfg config.TranscriptionConfig, logger *slog.Logger) *Transcriber {
	client := openai.NewClient(cfg.OpenAIAPIKey)
	return newTranscriber(client, cfg.WhisperModel, logger)
}

func newTranscriber(api audioAPI, modelTier string, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcriber{
		api:       api,
		modelTier: modelTier,
		logger:    logger.With(slog.String("component", "transcriber")),
	}
}

// Transcribe runs one transcription request. language forces the decode
// language; pass "" for auto-detection.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, language string) (*Result, error) {
	req := openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}
	if language != "" && language != "auto" {
		req.Language = language
	}

	t.logger.Debug("starting transcription",
		slog.String("model_tier", t.modelTier),
		slog.String("language", language))

	resp, err := t.api.CreateTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}

	return &Result{
		Text:            strings.TrimSpace(resp.Text),
		Language:        resp.Language,
		DurationSeconds: resp.Duration,
	}, nil
}

// TranscribeWithFallback tries the user's preferred language first and
// falls back to auto-detection when the forced decode fails or produces
// nothing.
func (t *Transcriber) TranscribeWithFallback(
	ctx context.Context,
	audioPath, preferredLanguage string,
) (*Result, error) {
	if preferredLanguage != "" && preferredLanguage != "auto" {
		result, err := t.Transcribe(ctx, audioPath, preferredLanguage)
		if err == nil && result.Text != "" {
			if result.Language == "" {
				result.Language = preferredLanguage
			}
			return result, nil
		}
		t.logger.Warn("forced-language transcription failed, retrying with auto-detection",
			slog.String("language", preferredLanguage))
	}

	return t.Transcribe(ctx, audioPath, "")
}
