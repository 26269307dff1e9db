package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultBackoff is the delay before the first retry. It doubles on every
// further retry.
const DefaultBackoff = 500 * time.Millisecond

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that Retry stops immediately.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// Retry calls attempt once plus up to retries more times, with exponential
// backoff starting at backoff. It stops at the first success, at a
// PermanentError, or when ctx is done.
func Retry(ctx context.Context, retries int, backoff time.Duration, attempt func(ctx context.Context) error) error {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	var lastErr error
	// attempts = 1 initial + retries
	attempts := 1 + retries

	for i := range attempts {
		if i == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("not attempted: %w", err)
			}
		} else {
			// Exponential backoff before retries
			timer := time.NewTimer(time.Duration(1<<uint(i-1)) * backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("interrupted during backoff: %w (last error: %w)", ctx.Err(), lastErr)
			case <-timer.C:
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}

		var permanent *PermanentError
		if errors.As(lastErr, &permanent) {
			return fmt.Errorf("non-retriable error: %w", permanent.Err)
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
