// Package retry runs a call under an explicit retry policy: a bounded number
// of attempts, a fixed delay between them, and a predicate deciding which
// errors are worth another attempt.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes how a failing call is retried.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first one.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// Delay is the fixed wait between two attempts.
	Delay time.Duration
	// Retryable reports whether err deserves another attempt.
	// A nil Retryable retries nothing.
	Retryable func(err error) bool
	// OnRetry is called before each wait with the attempt that just failed
	// (1-based) and its error.
	OnRetry func(attempt int, err error)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) retryable(err error) bool {
	return p.Retryable != nil && p.Retryable(err)
}

// Do calls fn until it succeeds, fails with an error the policy does not
// retry, or the attempts run out. Errors that are not retryable are returned
// as-is. When the attempts run out the last error is wrapped, so errors.Is
// still matches it.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	limit := p.attempts()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !p.retryable(err) {
			return zero, err
		}
		if attempt >= limit {
			if limit == 1 {
				return zero, err
			}
			return zero, fmt.Errorf("giving up after %d attempts: %w", limit, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if err := wait(ctx, p.Delay); err != nil {
			return zero, err
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
