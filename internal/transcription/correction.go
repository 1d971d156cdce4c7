package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	openai "github.com/sashabaranov/go-openai"
)

// khmerScript is the Unicode block for Khmer letters.
var khmerScript = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x1780, Hi: 0x17FF, Stride: 1}},
}

// correctionSystemPrompt instructs the model to transliterate, not
// translate. Whisper sometimes writes Khmer speech in Latin letters; the
// correction restores the native script.
const correctionSystemPrompt = "You are an expert linguist specializing in Khmer. " +
	"Your task is to convert Romanized (Latin) Khmer transliterations into the standard native Khmer script. " +
	"Do not translate. Only transliterate. Preserve the meaning and structure. " +
	"If the input is already in Khmer script or is nonsensical, return it as is."

// chatAPI is the slice of the OpenAI client the corrector uses, extracted
// for testing.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Corrector rewrites romanized Khmer transcriptions into native script.
type Corrector struct {
	api    chatAPI
	model  string
	logger *slog.Logger
}

// NewCorrector creates a corrector sharing the transcription API key.
func NewCorrector(apiKey string, logger *slog.Logger) *Corrector {
	return newCorrector(openai.NewClient(apiKey), logger)
}

func newCorrector(api chatAPI, logger *slog.Logger) *Corrector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Corrector{
		api:    api,
		model:  openai.GPT3Dot5Turbo,
		logger: logger.With(slog.String("component", "corrector")),
	}
}

// CorrectKhmerTransliteration converts a romanized Khmer text into native
// script. Empty input passes through unchanged.
func (c *Corrector) CorrectKhmerTransliteration(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: correctionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.1,
		MaxTokens:   1000,
	})
	if err != nil {
		return "", fmt.Errorf("correction request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("correction returned no choices")
	}

	corrected := strings.TrimSpace(resp.Choices[0].Message.Content)
	if corrected == "" {
		return text, nil
	}

	c.logger.DebugContext(ctx, "corrected romanized khmer",
		slog.Int("input_len", len(text)),
		slog.Int("output_len", len(corrected)))
	return corrected, nil
}

// NeedsKhmerCorrection reports whether a text labeled as Khmer is still
// written in Latin letters. Mostly-native text is left alone.
func NeedsKhmerCorrection(text string) bool {
	var khmer, latin, letters int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.Is(khmerScript, r):
			khmer++
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			latin++
		}
	}
	if letters == 0 || latin == 0 {
		return false
	}
	return float64(khmer)/float64(letters) < 0.5
}
