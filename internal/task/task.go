// Package task defines the background task types exchanged between the web
// and worker processes over the Redis queue, the enqueuer that submits
// them, and the worker-side handler that executes them.
package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeTranscriptionProcess is the queue task type for transcribing one
// media attachment.
const TypeTranscriptionProcess = "transcription:process"

// Task submission policy shared by the enqueuer and the worker.
const (
	// WorkerConcurrency is the number of task slots the worker runs.
	// Transcription saturates a single instance, so this is one in every
	// environment. The deployment checker enforces it.
	WorkerConcurrency = 1


	// MaxRetry is how many times a failed transcription is retried before
	// the user gets an apology.
	MaxRetry = 2

	// RetryDelay is the fixed delay between retries.
	RetryDelay = 60 * time.Second

	// TaskTimeout bounds a single transcription attempt.
	TaskTimeout = 10 * time.Minute
)

// ProcessMediaPayload is the payload of a TypeTranscriptionProcess task.
type ProcessMediaPayload struct {
	// SenderID is the messenger sender the result is delivered to.
	SenderID string `json:"sender_id"`

	// MediaURL is the CDN URL of the attachment.
	MediaURL string `json:"media_url"`

	// MediaType is the attachment type reported by the platform, "audio"
	// or "video".
	MediaType string `json:"media_type"`

	// PreferredLanguage optionally forces the decode language.
	PreferredLanguage string `json:"preferred_language,omitempty"`

	// TargetLanguage is the translation target when AutoTranslate is set.
	TargetLanguage string `json:"target_language,omitempty"`

	// AutoTranslate requests translation of the transcribed text.
	AutoTranslate bool `json:"auto_translate,omitempty"`
}

// Validate checks the payload carries enough to run the task.
func (p *ProcessMediaPayload) Validate() error {
	if p.SenderID == "" {
		return fmt.Errorf("sender_id is required")
	}
	if p.MediaURL == "" {
		return fmt.Errorf("media_url is required")
	}
	return nil
}

// NewProcessMediaTask builds the asynq task for a media attachment.
func NewProcessMediaTask(payload ProcessMediaPayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	return asynq.NewTask(TypeTranscriptionProcess, data,
		asynq.MaxRetry(MaxRetry),
		asynq.Timeout(TaskTimeout),
	), nil
}
