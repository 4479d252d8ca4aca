// Package retry implements capped exponential backoff for operations that
// may fail transiently, such as websocket reconnects.
package retry

import (
	"context"
	"errors"
	"fmt"

	"time"

	"github.com/jonboulle/clockwork"
)

type Policy struct {
	MaxAttempts    int           // 0 retries until the context is cancelled
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	OnRetry        func(attempt int, err error, backoff time.Duration)
}

type Operation[T any] func() (T, error)
type VoidOperation func() error

// Do runs op until it succeeds, returns a PermanentError, exhausts
// MaxAttempts, or the context is cancelled. Backoff doubles per attempt up
// to MaxBackoff. The clock is injectable for tests.
func Do[T any](ctx context.Context, clock clockwork.Clock, p Policy, op Operation[T]) (T, error) {
	backoff := p.InitialBackoff

	for attempt := 1; ; attempt++ {
		val, err := op()
		if err == nil {
			return val, nil
		}

		var permanent *PermanentError
		if errors.As(err, &permanent) {
			var zero T
			return zero, err
		}

		if p.MaxAttempts > 0 && attempt == p.MaxAttempts {
			var zero T
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}

		timer := clock.NewTimer(backoff)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}

		backoff *= 2
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
}

// DoVoid is Do for operations without a result.
func DoVoid(ctx context.Context, clock clockwork.Clock, p Policy, op VoidOperation) error {
	_, err := Do(ctx, clock, p, func() (struct{}, error) { return struct{}{}, op() })
	return err
}

// PermanentError marks an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
