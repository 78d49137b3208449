package assemblyai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hatemua/telegBot/speech"
)

func writeAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.oga")
	if err := os.WriteFile(path, []byte("OggS fake audio"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeServer scripts the poll statuses returned after upload and create.
func fakeServer(t *testing.T, pollStatuses []transcriptResponse) (*httptest.Server, *int) {
	t.Helper()
	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") == "" {
			t.Error("upload request missing Authorization header")
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/octet-stream" {
			t.Errorf("upload Content-Type = %q", ct)
		}
		_ = json.NewEncoder(w).Encode(uploadResponse{UploadURL: "https://cdn.example/upload/abc"})
	})
	mux.HandleFunc("/v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req createTranscriptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode create request: %v", err)
		}
		if req.AudioURL != "https://cdn.example/upload/abc" {
			t.Errorf("create audio_url = %q", req.AudioURL)
		}
		if !req.LanguageDetection {
			t.Error("create request did not enable language_detection")
		}
		_ = json.NewEncoder(w).Encode(transcriptResponse{ID: "job-1", Status: "queued"})
	})
	mux.HandleFunc("/v2/transcript/job-1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		resp := pollStatuses[len(pollStatuses)-1]
		if polls < len(pollStatuses) {
			resp = pollStatuses[polls]
		}
		polls++
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &polls
}

func newTestClient(srv *httptest.Server) *Client {
	c := New(srv.URL, "test-key")
	c.Sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestTranscribeCompleted(t *testing.T) {
	t.Parallel()
	conf := 0.87
	srv, polls := fakeServer(t, []transcriptResponse{
		{ID: "job-1", Status: "processing"},
		{ID: "job-1", Status: "processing"},
		{ID: "job-1", Status: "completed", Text: "Hello", LanguageCode: "en", LanguageConfidence: &conf},
	})
	c := newTestClient(srv)

	got, err := c.Transcribe(context.Background(), writeAudioFile(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "Hello" {
		t.Fatalf("Text = %q, want %q", got.Text, "Hello")
	}
	if got.LanguageCode != "en" {
		t.Fatalf("LanguageCode = %q, want en", got.LanguageCode)
	}
	if got.LanguageConfidence != conf {
		t.Fatalf("LanguageConfidence = %v, want %v", got.LanguageConfidence, conf)
	}
	// Two non-terminal polls, then the terminal one.
	if *polls != 3 {
		t.Fatalf("poll count = %d, want 3", *polls)
	}
}

func TestTranscribeErrorStatus(t *testing.T) {
	t.Parallel()
	srv, _ := fakeServer(t, []transcriptResponse{
		{ID: "job-1", Status: "error", Error: "audio duration too short"},
	})
	c := newTestClient(srv)

	_, err := c.Transcribe(context.Background(), writeAudioFile(t))
	var terr *speech.TranscriptionError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, want *speech.TranscriptionError", err)
	}
	if terr.Stage != "poll" {
		t.Fatalf("Stage = %q, want poll", terr.Stage)
	}
	if terr.Message != "audio duration too short" {
		t.Fatalf("Message = %q", terr.Message)
	}
}

func TestTranscribePollTimeout(t *testing.T) {
	t.Parallel()
	srv, _ := fakeServer(t, []transcriptResponse{
		{ID: "job-1", Status: "processing"},
	})
	c := newTestClient(srv)
	c.PollInterval = time.Second
	c.PollTimeout = 2 * time.Second
	base := time.Now()
	elapsed := time.Duration(0)
	c.Now = func() time.Time { return base.Add(elapsed) }
	c.Sleep = func(_ context.Context, d time.Duration) error {
		elapsed += d
		return nil
	}

	_, err := c.Transcribe(context.Background(), writeAudioFile(t))
	if !errors.Is(err, speech.ErrPollTimeout) {
		t.Fatalf("error = %v, want ErrPollTimeout", err)
	}
}

func TestTranscribeMissingAPIKey(t *testing.T) {
	t.Parallel()
	c := New("http://unused.invalid", "")
	_, err := c.Transcribe(context.Background(), "/nonexistent")
	if !errors.Is(err, speech.ErrMissingAPIKey) {
		t.Fatalf("error = %v, want ErrMissingAPIKey", err)
	}
}

func TestTranscribeUnreadableFile(t *testing.T) {
	t.Parallel()
	c := New("http://unused.invalid", "key")
	_, err := c.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.oga"))
	var terr *speech.TranscriptionError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, want *speech.TranscriptionError", err)
	}
	if terr.Stage != "upload" {
		t.Fatalf("Stage = %q, want upload", terr.Stage)
	}
}

func TestTranscribeUploadHTTPError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(srv)

	_, err := c.Transcribe(context.Background(), writeAudioFile(t))
	var terr *speech.TranscriptionError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, want *speech.TranscriptionError", err)
	}
	if terr.Stage != "upload" {
		t.Fatalf("Stage = %q, want upload", terr.Stage)
	}
}
