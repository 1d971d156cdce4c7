package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/daracheol/voxscribe/internal/domain"
	"github.com/daracheol/voxscribe/internal/media"
	"github.com/daracheol/voxscribe/internal/store"
	"github.com/daracheol/voxscribe/internal/transcription"
)

// replySender delivers worker results back to the user. Worker replies use
// the POST_PURCHASE_UPDATE message tag because they can arrive outside the
// 24-hour standard messaging window.
type replySender interface {
	SendTaggedText(ctx context.Context, recipientID, text string) error
}

// MediaArchiver stores source media in object storage. May be nil when
// archival is disabled.
type MediaArchiver interface {
	Upload(ctx context.Context, key string, body io.Reader) error
}

// Processor executes transcription tasks on the worker. It implements
// asynq.Handler for TypeTranscriptionProcess.
type Processor struct {
	downloader     *media.Downloader
	pipeline       *media.Processor
	archive        MediaArchiver
	users          store.UserStore
	transcriptions store.TranscriptionStore
	sender         replySender
	logger         *slog.Logger
}

// NewProcessor wires the worker-side task handler. archive may be nil.
func NewProcessor(
	downloader *media.Downloader,
	pipeline *media.Processor,
	archive MediaArchiver,
	users store.UserStore,
	transcriptions store.TranscriptionStore,
	sender replySender,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		downloader:     downloader,
		pipeline:       pipeline,
		archive:        archive,
		users:          users,
		transcriptions: transcriptions,
		sender:         sender,
		logger:         logger.With("component", "task_processor"),
	}
}

// ProcessTask handles one TypeTranscriptionProcess task. Permanent
// failures (oversized files, clips over the plan limit, empty decodes) are
// reported to the user and wrapped in asynq.SkipRetry; transient failures
// are returned for retry, with an apology sent once retries are exhausted.
func (p *Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ProcessMediaPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to decode task payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("invalid task payload: %v: %w", err, asynq.SkipRetry)
	}

	log := p.logger.With("sender_id", payload.SenderID, "media_type", payload.MediaType)

	err := p.process(ctx, payload, log)
	if err == nil {
		return nil
	}

	if permanent, userMsg := classifyFailure(err); permanent {
		log.InfoContext(ctx, "transcription rejected", "reason", err)
		p.reply(ctx, payload.SenderID, userMsg, log)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	retried, retriedOK := asynq.GetRetryCount(ctx)
	maxRetry, maxOK := asynq.GetMaxRetry(ctx)
	if retriedOK && maxOK && retried >= maxRetry {
		log.ErrorContext(ctx, "transcription failed permanently", "error", err, "retries", retried)
		p.reply(ctx, payload.SenderID,
			"Sorry, something went wrong while transcribing your message. Please try sending it again.", log)
	} else {
		log.WarnContext(ctx, "transcription attempt failed, will retry", "error", err, "attempt", retried+1)
	}
	return err
}

func (p *Processor) process(ctx context.Context, payload ProcessMediaPayload, log *slog.Logger) error {
	user, _, err := p.users.GetOrCreate(ctx, payload.SenderID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	mediaPath, err := p.downloader.Download(ctx, payload.MediaURL)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(mediaPath) }()

	objectKey := p.archiveMedia(ctx, payload.SenderID, mediaPath, log)

	prefs := media.Preferences{
		PreferredLanguage: payload.PreferredLanguage,
		TargetLanguage:    payload.TargetLanguage,
		AutoTranslate:     payload.AutoTranslate,
		MaxDuration:       user.MaxAudioDuration(time.Now().UTC()),
	}
	result, err := p.pipeline.Process(ctx, mediaPath, prefs)
	if err != nil {
		return err
	}

	tr, err := domain.NewTranscription(payload.SenderID, result.Text, result.Language)
	if err != nil {
		return err
	}
	tr.Translation = result.Translation
	tr.TargetLanguage = result.TargetLanguage
	tr.DurationSeconds = result.DurationSeconds
	tr.ObjectKey = objectKey

	if err := p.transcriptions.Create(ctx, tr); err != nil {
		// The user still gets their result; persistence is recoverable.
		log.ErrorContext(ctx, "failed to persist transcription", "error", err)
	}
	if err := p.users.IncrementUsage(ctx, payload.SenderID); err != nil {
		log.ErrorContext(ctx, "failed to record usage", "error", err)
	}

	if err := p.sender.SendTaggedText(ctx, payload.SenderID, formatResult(result)); err != nil {
		return fmt.Errorf("failed to deliver transcription: %w", err)
	}

	log.InfoContext(ctx, "transcription delivered",
		"language", result.Language,
		"duration_seconds", result.DurationSeconds,
		"translated", result.Translation != "")
	return nil
}

// archiveMedia uploads the source media to object storage. Failures are
// logged and swallowed so archival never blocks delivery.
func (p *Processor) archiveMedia(ctx context.Context, senderID, mediaPath string, log *slog.Logger) string {
	if p.archive == nil {
		return ""
	}

	f, err := os.Open(mediaPath)
	if err != nil {
		log.WarnContext(ctx, "failed to open media for archival", "error", err)
		return ""
	}
	defer func() { _ = f.Close() }()

	key := fmt.Sprintf("media/%s/%s%s", senderID, uuid.NewString(), filepath.Ext(mediaPath))
	if err := p.archive.Upload(ctx, key, f); err != nil {
		log.WarnContext(ctx, "media archival failed", "error", err)
		return ""
	}
	return key
}

func (p *Processor) reply(ctx context.Context, senderID, text string, log *slog.Logger) {
	if err := p.sender.SendTaggedText(ctx, senderID, text); err != nil {
		log.ErrorContext(ctx, "failed to send reply", "error", err)
	}
}

// classifyFailure reports whether the error is permanent (no retry will
// help) and the message the user should see.
func classifyFailure(err error) (bool, string) {
	switch {
	case errors.Is(err, domain.ErrFileTooLarge):
		return true, fmt.Sprintf("This file is too large to process. The maximum size is %dMB.",
			domain.MaxMediaFileSize/(1024*1024))
	case errors.Is(err, domain.ErrAudioTooLong):
		return true, "This recording is longer than your plan allows. Upgrade to premium for recordings up to 60 minutes, or send a shorter clip."
	case errors.Is(err, domain.ErrEmptyTranscriptionText):
		return true, "I couldn't detect any speech in that recording. Please try again with a clearer clip."
	default:
		return false, ""
	}
}

// formatResult renders the user-facing reply.
func formatResult(r *media.Result) string {
	var b strings.Builder
	if r.LanguageName != "" {
		fmt.Fprintf(&b, "🎤 Transcription (%s):\n\n", r.LanguageName)
	} else {
		b.WriteString("🎤 Transcription:\n\n")
	}
	b.WriteString(r.Text)

	if r.Translation != "" {
		fmt.Fprintf(&b, "\n\n🌐 Translation (%s):\n\n%s", transcription.LanguageName(r.TargetLanguage), r.Translation)
	}
	return b.String()
}
