// Package translation renders transcribed text into a user's target
// language via chat completions.
package translation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/daracheol/voxscribe/internal/transcription"
)

// chatAPI is the slice of the OpenAI client the translator uses.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Translator translates text between languages.
type Translator struct {
	api    chatAPI
	model  string
	logger *slog.Logger
}

// New creates a Translator backed by the OpenAI API.
func New(apiKey string, logger *slog.Logger) *Translator {
	return newTranslator(openai.NewClient(apiKey), logger)
}

func newTranslator(api chatAPI, logger *slog.Logger) *Translator {
	return &Translator{
		api:    api,
		model:  openai.GPT4oMini,
		logger: logger.With("component", "translator"),
	}
}

// Translate translates text into targetLanguage. sourceLanguage may be
// empty, in which case the model infers it. Empty input passes through
// unchanged.
func (t *Translator) Translate(ctx context.Context, text, targetLanguage, sourceLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if targetLanguage == "" {
		return "", fmt.Errorf("target language is required")
	}

	targetName := transcription.EnglishLanguageName(targetLanguage)
	system := fmt.Sprintf("You are a translator. Translate the user's message into %s. Reply with the translation only, no commentary.", targetName)
	if sourceLanguage != "" && sourceLanguage != targetLanguage {
		system = fmt.Sprintf("You are a translator. Translate the user's message from %s into %s. Reply with the translation only, no commentary.",
			transcription.EnglishLanguageName(sourceLanguage), targetName)
	}

	resp, err := t.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("translation returned no choices")
	}

	translated := strings.TrimSpace(resp.Choices[0].Message.Content)
	t.logger.DebugContext(ctx, "translated text",
		"source_language", sourceLanguage,
		"target_language", targetLanguage,
		"input_chars", len(text),
		"output_chars", len(translated))

	return translated, nil
}
