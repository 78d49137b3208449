package telegram

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hatemua/telegBot/internal/answer"
	"github.com/hatemua/telegBot/internal/prefs"
	"github.com/hatemua/telegBot/speech"
)

const defaultBaseURL = "https://api.telegram.org"

// Options configures the long-poll runtime. Zero values pick safe
// defaults in normalize.
type Options struct {
	BotToken       string
	BaseURL        string
	AllowedChatIDs []int64

	PollTimeout    time.Duration
	TaskTimeout    time.Duration
	MaxConcurrency int

	CacheDir           string
	CacheMaxAge        time.Duration
	CacheMaxFiles      int
	CacheMaxTotalBytes int64
	MaxDownloadBytes   int64

	HTTPClient *http.Client
}

// Dependencies are the collaborators the runtime dispatches into.
type Dependencies struct {
	Logger      *slog.Logger
	Transcriber speech.Client
	Completer   *answer.Composer
	Prefs       *prefs.Store
}

func normalizeOptions(opts Options) Options {
	opts.BotToken = strings.TrimSpace(opts.BotToken)
	opts.BaseURL = strings.TrimSpace(opts.BaseURL)
	opts.CacheDir = strings.TrimSpace(opts.CacheDir)
	opts.AllowedChatIDs = normalizeAllowedChatIDs(opts.AllowedChatIDs)

	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 10 * time.Minute
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 3
	}
	if opts.CacheDir == "" {
		opts.CacheDir = "~/.cache/telegbot/media"
	}
	if opts.CacheMaxAge <= 0 {
		opts.CacheMaxAge = 24 * time.Hour
	}
	if opts.CacheMaxFiles <= 0 {
		opts.CacheMaxFiles = 500
	}
	if opts.CacheMaxTotalBytes <= 0 {
		opts.CacheMaxTotalBytes = int64(256 * 1024 * 1024)
	}
	if opts.MaxDownloadBytes <= 0 {
		opts.MaxDownloadBytes = 20 * 1024 * 1024
	}
	return opts
}

func normalizeAllowedChatIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func chatAllowed(allowed []int64, chatID int64) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, id := range allowed {
		if id == chatID {
			return true
		}
	}
	return false
}
