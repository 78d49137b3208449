package retryutil

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultDelay   = 2 * time.Second
	defaultTimeout = 12 * time.Second
)

// Once schedules a single asynchronous retry of fn after delay, bounded by
// timeout. Used for best-effort side calls (clearing a keyboard, sending a
// late notice) where the main pipeline should not block on a flaky call.
func Once(logger *slog.Logger, name string, delay, timeout time.Duration, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	if delay <= 0 {
		delay = defaultDelay
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger != nil {
		logger.Info(name+"_retry_scheduled", "delay", delay.String(), "timeout", timeout.String())
	}
	go func() {
		timer := time.NewTimer(delay)
		<-timer.C
		timer.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			if logger != nil {
				logger.Warn(name+"_retry_failed", "error", err.Error())
			}
			return
		}
		if logger != nil {
			logger.Info(name + "_retry_ok")
		}
	}()
}
