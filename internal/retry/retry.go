// Package retry runs an operation a bounded number of times with
// exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	// Permanent marks errors that must not be retried. Nil retries everything.
	Permanent func(err error) bool
	OnRetry   func(attempt int, err error, backoff time.Duration)
}

// NoRetry runs the operation exactly once.
var NoRetry = Policy{MaxAttempts: 1}

func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	backoff := p.InitialBackoff

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.Permanent != nil && p.Permanent(err) {
			return err
		}
		if attempt >= attempts {
			if attempts == 1 {
				return err
			}
			return fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
			backoff *= 2
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context cancelled during retry: %w", err)
		}
	}
}
