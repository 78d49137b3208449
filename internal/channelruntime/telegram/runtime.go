// Package telegram runs the long-poll channel runtime: it drains
// getUpdates, classifies each update into a dispatch event, and hands
// it to a per-chat worker so one chat's messages stay ordered while
// independent chats run concurrently.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hatemua/telegBot/internal/channelruntime/worker"
	"github.com/hatemua/telegBot/internal/dispatch"
	"github.com/hatemua/telegBot/internal/mediacache"
)

type job struct {
	taskID string
	event  dispatch.Event
}

type chatWorker struct {
	jobs chan job
}

type runtime struct {
	opts       Options
	logger     *slog.Logger
	api        *telegramAPI
	dispatcher *dispatch.Dispatcher
	pool       *worker.Pool[job]

	mu      sync.Mutex
	workers map[int64]*chatWorker
}

// Run blocks, polling for updates until ctx is cancelled.
func Run(ctx context.Context, opts Options, deps Dependencies) error {
	opts = normalizeOptions(opts)
	if opts.BotToken == "" {
		return fmt.Errorf("missing telegram bot token")
	}
	if deps.Transcriber == nil || deps.Completer == nil || deps.Prefs == nil {
		return fmt.Errorf("missing runtime dependencies")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cacheDir, err := expandHome(opts.CacheDir)
	if err != nil {
		return err
	}
	if err := mediacache.Ensure(cacheDir); err != nil {
		return fmt.Errorf("media cache: %w", err)
	}
	if err := mediacache.Cleanup(cacheDir, mediacache.CleanupPolicy{
		MaxAge:        opts.CacheMaxAge,
		MaxFiles:      opts.CacheMaxFiles,
		MaxTotalBytes: opts.CacheMaxTotalBytes,
	}); err != nil {
		logger.Warn("media_cache_cleanup_error", "error", err.Error())
	}

	api := newTelegramAPI(opts.HTTPClient, opts.BaseURL, opts.BotToken)

	me, err := getMeWithRetry(ctx, api, logger)
	if err != nil {
		return err
	}
	logger.Info("telegram_runtime_started",
		"bot_id", me.ID,
		"bot_username", me.Username,
		"poll_timeout", opts.PollTimeout.String(),
		"max_concurrency", opts.MaxConcurrency,
		"allowed_chats", len(opts.AllowedChatIDs),
	)

	chat := &chatAdapter{
		api:              api,
		cacheDir:         cacheDir,
		maxDownloadBytes: opts.MaxDownloadBytes,
	}
	rt := &runtime{
		opts:   opts,
		logger: logger,
		api:    api,
		dispatcher: &dispatch.Dispatcher{
			Chat:        chat,
			Transcriber: deps.Transcriber,
			Completer:   deps.Completer,
			Prefs:       deps.Prefs,
			Logger:      logger,
		},
		pool:    worker.NewPool[job](ctx, opts.MaxConcurrency),
		workers: make(map[int64]*chatWorker),
	}

	return rt.pollLoop(ctx)
}

func getMeWithRetry(ctx context.Context, api *telegramAPI, logger *slog.Logger) (*telegramUser, error) {
	for {
		me, err := api.getMe(ctx)
		if err == nil {
			return me, nil
		}
		logger.Warn("telegram_get_me_error", "error", err.Error())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (rt *runtime) pollLoop(ctx context.Context) error {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			rt.logger.Info("telegram_runtime_stopped")
			return nil
		default:
		}

		updates, next, err := rt.api.getUpdates(ctx, offset, rt.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				rt.logger.Info("telegram_runtime_stopped")
				return nil
			}
			// An empty long poll surfaces as a timeout; that is routine.
			if isTelegramPollTimeoutError(err) {
				rt.logger.Debug("telegram_get_updates_timeout", "error", err.Error())
			} else {
				rt.logger.Warn("telegram_get_updates_error", "error", err.Error())
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(1 * time.Second):
			}
			continue
		}
		offset = next

		for _, u := range updates {
			rt.handleUpdate(ctx, u)
		}
	}
}

func (rt *runtime) handleUpdate(ctx context.Context, u telegramUpdate) {
	ev, ok := eventFromUpdate(u)
	if !ok {
		return
	}
	if !chatAllowed(rt.opts.AllowedChatIDs, ev.ChatID) {
		rt.logger.Info("telegram_chat_not_allowed", "chat_id", ev.ChatID)
		return
	}

	j := job{taskID: uuid.NewString(), event: ev}
	w := rt.getOrStartWorker(ev.ChatID)
	if err := rt.pool.Enqueue(ctx, w.jobs, j); err != nil {
		rt.logger.Warn("telegram_task_enqueue_error",
			"chat_id", ev.ChatID, "task_id", j.taskID, "error", err.Error())
		return
	}
	rt.logger.Info("telegram_task_enqueued",
		"chat_id", ev.ChatID, "task_id", j.taskID, "kind", ev.Kind.String())
}

func (rt *runtime) getOrStartWorker(chatID int64) *chatWorker {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if w, ok := rt.workers[chatID]; ok {
		return w
	}
	w := &chatWorker{jobs: make(chan job, 16)}
	rt.workers[chatID] = w
	rt.pool.Spawn(w.jobs, rt.handleJob)
	return w
}

func (rt *runtime) handleJob(ctx context.Context, j job) {
	taskCtx, cancel := context.WithTimeout(ctx, rt.opts.TaskTimeout)
	defer cancel()

	started := time.Now()
	rt.logger.Info("telegram_task_started",
		"chat_id", j.event.ChatID, "task_id", j.taskID, "kind", j.event.Kind.String())

	// Callbacks are near-instant; the typing indicator would only flicker.
	var stopTyping func()
	if j.event.Kind != dispatch.KindCallback {
		stopTyping = startTypingTicker(taskCtx, rt.api, j.event.ChatID, 4*time.Second)
	}

	rt.dispatcher.Dispatch(taskCtx, j.event)

	if stopTyping != nil {
		stopTyping()
	}
	rt.logger.Info("telegram_task_finished",
		"chat_id", j.event.ChatID, "task_id", j.taskID, "elapsed", time.Since(started).String())
}

// eventFromUpdate classifies one update. Edited messages carry no
// message field and are skipped; photos, documents, and other media the
// relay cannot transcribe map to the unsupported kind so the user gets
// a notice instead of silence.
func eventFromUpdate(u telegramUpdate) (dispatch.Event, bool) {
	if cq := u.CallbackQuery; cq != nil {
		ev := dispatch.Event{
			Kind:         dispatch.KindCallback,
			CallbackID:   cq.ID,
			CallbackData: cq.Data,
		}
		if cq.Message != nil {
			ev.CallbackMessageID = cq.Message.MessageID
			if cq.Message.Chat != nil {
				ev.ChatID = cq.Message.Chat.ID
			}
		}
		if ev.ChatID == 0 || ev.CallbackID == "" {
			return dispatch.Event{}, false
		}
		return ev, true
	}

	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return dispatch.Event{}, false
	}
	if msg.From != nil && msg.From.IsBot {
		return dispatch.Event{}, false
	}

	ev := dispatch.Event{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
	}
	switch {
	case msg.Voice != nil:
		ev.Kind = dispatch.KindVoice
		ev.FileID = msg.Voice.FileID
		ev.Duration = msg.Voice.Duration
	case msg.Audio != nil:
		ev.Kind = dispatch.KindAudio
		ev.FileID = msg.Audio.FileID
		ev.Duration = msg.Audio.Duration
		ev.Title = msg.Audio.Title
	case strings.TrimSpace(msg.Text) != "":
		ev.Kind = dispatch.KindText
		ev.Text = msg.Text
	default:
		ev.Kind = dispatch.KindUnsupported
	}
	return ev, true
}

func expandHome(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
	}
	return p, nil
}
