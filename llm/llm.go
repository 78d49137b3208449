package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned per call when the completion credential was
// never configured. The bot keeps running; the affected chat gets a notice.
var ErrMissingAPIKey = errors.New("llm: missing api key")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}

// CompletionError reports a non-success response from the completion
// service. An empty answer with a success status is not an error.
type CompletionError struct {
	Status  int
	Message string
}

func (e *CompletionError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if e.Status > 0 {
		if msg != "" {
			return fmt.Sprintf("completion http %d: %s", e.Status, msg)
		}
		return fmt.Sprintf("completion http %d", e.Status)
	}
	if msg != "" {
		return "completion: " + msg
	}
	return "completion request failed"
}
