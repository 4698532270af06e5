package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/movie-catalog/internal/queue"
)

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev queue.MovieEvent) error

func (f NotifierFunc) Notify(ctx context.Context, ev queue.MovieEvent) error { return f(ctx, ev) }

// AsyncNotifier hands events to Next on a separate goroutine.  Each
// delivery gets its own timeout and outlives the request context.
type AsyncNotifier struct {
	Next    Notifier
	Timeout time.Duration
	Log     zerolog.Logger

	wg sync.WaitGroup
}

// NewAsyncNotifier wraps next.
func NewAsyncNotifier(next Notifier, timeout time.Duration, log zerolog.Logger) *AsyncNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AsyncNotifier{Next: next, Timeout: timeout, Log: log}
}

// Notify always returns nil; delivery errors are logged.
func (a *AsyncNotifier) Notify(ctx context.Context, ev queue.MovieEvent) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Timeout)
		defer cancel()
		if err := a.Next.Notify(dctx, ev); err != nil {
			a.Log.Warn().Err(err).Str("action", ev.Action).Int64("movie_id", ev.MovieID).Msg("async notification failed")
		}
	}()
	return nil
}

// Wait blocks until in-flight deliveries finish.  Call it on shutdown.
func (a *AsyncNotifier) Wait() { a.wg.Wait() }
