package util

import (
	"context"
	"time"
)

// maxBackoff caps the exponential backoff delay between retry attempts.
const maxBackoff = 30 * time.Second

// Retry calls fn up to maxAttempts times with exponential backoff starting at
// baseDelay (capped at 30s). It returns nil on the first successful call, or
// the last error if all attempts fail. The function respects context
// cancellation between retries.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = fn()
		if err == nil {
			return nil
		}

		// Don't sleep after the last failed attempt.
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxBackoff {
				delay = maxBackoff
			}
		}
	}

	return err
}
