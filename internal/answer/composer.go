// Package answer turns user content into a completion request: it picks
// the system prompt for the chat's response language and calls the
// completion service.
package answer

import (
	"context"
	"strings"

	"github.com/hatemua/telegBot/internal/prefs"
	"github.com/hatemua/telegBot/llm"
)

type Composer struct {
	Client      llm.Client
	Model       string
	Temperature float64
	MaxTokens   int
	Templates   Templates
}

// Complete answers userContent in the target language. detectedCode is an
// advisory hint from transcription (the input may need translating first);
// it never changes the response language — the stored preference wins.
func (c *Composer) Complete(ctx context.Context, userContent string, target prefs.Language, detectedCode string) (string, error) {
	system, err := c.Templates.Render(target, detectedCode)
	if err != nil {
		return "", err
	}

	res, err := c.Client.Chat(ctx, llm.Request{
		Model: c.Model,
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: userContent},
		},
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	// Empty text on success stays empty; the delivery layer renders it
	// as a placeholder rather than masking it as a failure.
	return strings.TrimSpace(res.Text), nil
}
