// Package assemblyai implements the speech boundary against the
// AssemblyAI HTTP API: upload the media, create a transcript job with
// language detection, then poll the job until it terminates.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hatemua/telegBot/speech"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultPollTimeout  = 5 * time.Minute
)

type Client struct {
	BaseURL      string
	APIKey       string
	HTTP         *http.Client
	PollInterval time.Duration
	PollTimeout  time.Duration

	// Sleep and Now are overridable for deterministic tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.assemblyai.com"
	}
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		HTTP:         &http.Client{Timeout: 60 * time.Second},
		PollInterval: defaultPollInterval,
		PollTimeout:  defaultPollTimeout,
		Sleep:        sleepCtx,
		Now:          time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type createTranscriptRequest struct {
	AudioURL          string `json:"audio_url"`
	LanguageDetection bool   `json:"language_detection"`
}

type transcriptResponse struct {
	ID                 string   `json:"id"`
	Status             string   `json:"status"` // queued | processing | completed | error
	Text               string   `json:"text"`
	LanguageCode       string   `json:"language_code"`
	LanguageConfidence *float64 `json:"language_confidence"`
	Error              string   `json:"error"`
}

func (c *Client) Transcribe(ctx context.Context, path string) (speech.Transcript, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return speech.Transcript{}, speech.ErrMissingAPIKey
	}

	audio, err := os.ReadFile(path)
	if err != nil {
		return speech.Transcript{}, &speech.TranscriptionError{Stage: "upload", Err: err}
	}

	audioURL, err := c.upload(ctx, audio)
	if err != nil {
		return speech.Transcript{}, err
	}

	jobID, err := c.createTranscript(ctx, audioURL)
	if err != nil {
		return speech.Transcript{}, err
	}

	return c.pollTranscript(ctx, jobID)
}

func (c *Client) upload(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v2/upload", bytes.NewReader(audio))
	if err != nil {
		return "", &speech.TranscriptionError{Stage: "upload", Err: err}
	}
	req.Header.Set("Authorization", c.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var out uploadResponse
	if err := c.do(req, "upload", &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.UploadURL) == "" {
		return "", &speech.TranscriptionError{Stage: "upload", Message: "missing upload_url"}
	}
	return out.UploadURL, nil
}

func (c *Client) createTranscript(ctx context.Context, audioURL string) (string, error) {
	b, err := json.Marshal(createTranscriptRequest{
		AudioURL:          audioURL,
		LanguageDetection: true,
	})
	if err != nil {
		return "", &speech.TranscriptionError{Stage: "create", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v2/transcript", bytes.NewReader(b))
	if err != nil {
		return "", &speech.TranscriptionError{Stage: "create", Err: err}
	}
	req.Header.Set("Authorization", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var out transcriptResponse
	if err := c.do(req, "create", &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", &speech.TranscriptionError{Stage: "create", Message: "missing transcript id"}
	}
	return out.ID, nil
}

// pollTranscript checks the job at a fixed interval until it reports
// completed or error, or the deadline passes. Exactly one of the three
// outcomes terminates the loop.
func (c *Client) pollTranscript(ctx context.Context, jobID string) (speech.Transcript, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := c.PollTimeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	now := c.Now
	if now == nil {
		now = time.Now
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	deadline := now().Add(timeout)

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v2/transcript/"+jobID, nil)
		if err != nil {
			return speech.Transcript{}, &speech.TranscriptionError{Stage: "poll", Err: err}
		}
		req.Header.Set("Authorization", c.APIKey)

		var out transcriptResponse
		if err := c.do(req, "poll", &out); err != nil {
			return speech.Transcript{}, err
		}

		switch out.Status {
		case "completed":
			tr := speech.Transcript{
				Text:         out.Text,
				LanguageCode: strings.TrimSpace(out.LanguageCode),
			}
			if out.LanguageConfidence != nil {
				tr.LanguageConfidence = *out.LanguageConfidence
			}
			return tr, nil
		case "error":
			msg := strings.TrimSpace(out.Error)
			if msg == "" {
				msg = "transcript reported error status"
			}
			return speech.Transcript{}, &speech.TranscriptionError{Stage: "poll", Message: msg}
		}

		if !now().Add(interval).Before(deadline) {
			return speech.Transcript{}, &speech.TranscriptionError{Stage: "poll", Err: speech.ErrPollTimeout}
		}
		if err := sleep(ctx, interval); err != nil {
			return speech.Transcript{}, &speech.TranscriptionError{Stage: "poll", Err: err}
		}
	}
}

func (c *Client) do(req *http.Request, stage string, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &speech.TranscriptionError{Stage: stage, Err: err}
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &speech.TranscriptionError{
			Stage:   stage,
			Message: fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &speech.TranscriptionError{Stage: stage, Err: err}
	}
	return nil
}
