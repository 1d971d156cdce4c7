package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/daracheol/voxscribe/internal/domain"
	"github.com/daracheol/voxscribe/internal/transcription"
)

// AudioToolchain abstracts the ffmpeg-backed normalization steps so the
// pipeline can be exercised without the binaries installed.
type AudioToolchain interface {
	PrepareAudio(ctx context.Context, mediaPath string) (string, bool, error)
	Duration(ctx context.Context, mediaPath string) (time.Duration, error)
}

// SpeechTranscriber is the slice of the transcription client the pipeline
// needs.
type SpeechTranscriber interface {
	TranscribeWithFallback(ctx context.Context, audioPath, preferredLanguage string) (*transcription.Result, error)
}

// Translator renders transcribed text into the user's target language.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage, sourceLanguage string) (string, error)
}

// ScriptCorrector rewrites romanized Khmer transcriptions into native
// script.
type ScriptCorrector interface {
	CorrectKhmerTransliteration(ctx context.Context, text string) (string, error)
}

// Preferences carries the per-user knobs the pipeline honors.
type Preferences struct {
	PreferredLanguage string
	TargetLanguage    string
	AutoTranslate     bool
	MaxDuration       time.Duration
}

// Result is the fully processed outcome for one media file.
type Result struct {
	Text            string
	Language        string
	LanguageName    string
	Translation     string
	TargetLanguage  string
	DurationSeconds float64
}

// Processor runs one media file through normalization, duration gating,
// transcription, language refinement, and optional translation.
type Processor struct {
	audio       AudioToolchain
	transcriber SpeechTranscriber
	translator  Translator
	corrector   ScriptCorrector
	logger      *slog.Logger
}

// NewProcessor wires the pipeline. translator and corrector may be nil
// when not configured.
func NewProcessor(audio AudioToolchain, transcriber SpeechTranscriber, translator Translator, corrector ScriptCorrector, logger *slog.Logger) *Processor {
	return &Processor{
		audio:       audio,
		transcriber: transcriber,
		translator:  translator,
		corrector:   corrector,
		logger:      logger.With("component", "media_processor"),
	}
}

// Process transcribes the media at mediaPath. Returns domain.ErrAudioTooLong
// when the clip exceeds prefs.MaxDuration.
func (p *Processor) Process(ctx context.Context, mediaPath string, prefs Preferences) (*Result, error) {
	audioPath, created, err := p.audio.PrepareAudio(ctx, mediaPath)
	if err != nil {
		return nil, err
	}
	if created {
		defer func() { _ = os.Remove(audioPath) }()
	}

	duration, err := p.audio.Duration(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	if prefs.MaxDuration > 0 && duration > prefs.MaxDuration {
		p.logger.InfoContext(ctx, "rejecting clip over duration limit",
			"duration_seconds", duration.Seconds(),
			"limit_seconds", prefs.MaxDuration.Seconds())
		return nil, domain.ErrAudioTooLong
	}

	tr, err := p.transcriber.TranscribeWithFallback(ctx, audioPath, prefs.PreferredLanguage)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	if tr.Text == "" {
		return nil, domain.ErrEmptyTranscriptionText
	}

	language := tr.Language
	if prefs.PreferredLanguage == "" {
		detected, confidence := transcription.DetectByText(tr.Text)
		language = transcription.ChooseBestLanguage(language, detected, confidence)
	}
	language = transcription.RefineLanguage(tr.Text, language)

	text := tr.Text
	if language == "km" && p.corrector != nil && transcription.NeedsKhmerCorrection(text) {
		corrected, err := p.corrector.CorrectKhmerTransliteration(ctx, text)
		if err != nil {
			// Correction is best effort, same as translation.
			p.logger.WarnContext(ctx, "khmer script correction failed, keeping raw transcription", "error", err)
		} else {
			text = corrected
		}
	}

	result := &Result{
		Text:            text,
		Language:        language,
		LanguageName:    transcription.LanguageName(language),
		DurationSeconds: tr.DurationSeconds,
	}
	if result.DurationSeconds == 0 {
		result.DurationSeconds = duration.Seconds()
	}

	if prefs.AutoTranslate && p.translator != nil && prefs.TargetLanguage != "" && prefs.TargetLanguage != language {
		translated, err := p.translator.Translate(ctx, text, prefs.TargetLanguage, language)
		if err != nil {
			// Translation is best effort. The transcription itself is
			// still worth delivering.
			p.logger.WarnContext(ctx, "translation failed, delivering transcription only", "error", err)
		} else {
			result.Translation = translated
			result.TargetLanguage = prefs.TargetLanguage
		}
	}

	return result, nil
}
