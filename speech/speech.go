// Package speech defines the transcription boundary: audio bytes in,
// text plus an optional detected language out.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingAPIKey is returned per call when the transcription
	// credential was never configured.
	ErrMissingAPIKey = errors.New("speech: missing api key")

	// ErrPollTimeout is returned when a transcript job did not reach a
	// terminal status before the poll deadline.
	ErrPollTimeout = errors.New("speech: transcription timed out")
)

// Transcript is the result of one transcription. LanguageCode and
// LanguageConfidence are zero values when the service did not detect
// a language.
type Transcript struct {
	Text               string
	LanguageCode       string
	LanguageConfidence float64
}

type Client interface {
	// Transcribe uploads the audio file at path and blocks until the
	// service reports a terminal status or the poll deadline passes.
	Transcribe(ctx context.Context, path string) (Transcript, error)
}

// TranscriptionError wraps every failure mode of a transcription attempt:
// a service-reported error status, a poll timeout, or a transport failure.
type TranscriptionError struct {
	Stage   string // upload | create | poll
	Message string // service-reported error text, if any
	Err     error
}

func (e *TranscriptionError) Error() string {
	msg := strings.TrimSpace(e.Message)
	switch {
	case msg != "" && e.Stage != "":
		return fmt.Sprintf("transcription %s: %s", e.Stage, msg)
	case msg != "":
		return "transcription: " + msg
	case e.Err != nil && e.Stage != "":
		return fmt.Sprintf("transcription %s: %v", e.Stage, e.Err)
	case e.Err != nil:
		return "transcription: " + e.Err.Error()
	default:
		return "transcription failed"
	}
}

func (e *TranscriptionError) Unwrap() error { return e.Err }
