// Package retry runs remote calls with a fixed exponential backoff schedule.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var DefaultBackoffs = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. WithBackoff returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// WithBackoff executes fn up to maxRetries times, sleeping backoffs[i] after
// the i-th failure. A nil backoffs uses DefaultBackoffs.
func WithBackoff(ctx context.Context, fn func() error, maxRetries int, backoffs []time.Duration) error {
	if backoffs == nil {
		backoffs = DefaultBackoffs
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		lastErr = err
		if i == maxRetries-1 || i >= len(backoffs) {
			continue
		}
		timer := time.NewTimer(backoffs[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted after %d attempts: %w", i+1, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
