// Package retry provides a reusable retryable-call abstraction shared by
// every service-calling pipeline stage.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
)

// DefaultMaxAttempts bounds retries when a policy does not set one.
const DefaultMaxAttempts = 3

// BackoffFunc returns how long to wait before the next attempt.
// attempt is zero-based: the delay after the first failure is Backoff(0, err).
type BackoffFunc func(attempt int, err error) time.Duration

// Policy configures retry behaviour for one class of calls.
type Policy struct {
	// MaxAttempts is the total number of attempts (first call included).
	MaxAttempts int

	// IsRetryable decides whether an error is worth another attempt.
	// Nil means DefaultRetryable.
	IsRetryable func(error) bool

	// Backoff computes the delay between attempts.
	// Nil means DefaultBackoff.
	Backoff BackoffFunc

	// Sleep overrides time.Sleep, for tests. Nil uses a context-aware wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryable retries rate limits and transient server errors.
func DefaultRetryable(err error) bool {
	return errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrServerError)
}

// Exponential doubles the delay each attempt: base, 2*base, 4*base, ...
func Exponential(base time.Duration) BackoffFunc {
	return func(attempt int, _ error) time.Duration {
		return base << attempt
	}
}

// Fixed waits the same delay every attempt.
func Fixed(d time.Duration) BackoffFunc {
	return func(int, error) time.Duration {
		return d
	}
}

// DefaultBackoff backs off exponentially on rate limits and a fixed
// interval on transient server errors.
func DefaultBackoff(exponentialBase, fixed time.Duration) BackoffFunc {
	exp := Exponential(exponentialBase)
	fix := Fixed(fixed)
	return func(attempt int, err error) time.Duration {
		if errors.Is(err, domain.ErrRateLimited) {
			return exp(attempt, err)
		}
		return fix(attempt, err)
	}
}

// Do invokes fn until it succeeds, the error is not retryable, the
// attempt budget is exhausted, or the context is cancelled. The last
// error is returned wrapped with the attempt count once the budget runs
// out.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	isRetryable := policy.IsRetryable
	if isRetryable == nil {
		isRetryable = DefaultRetryable
	}
	backoff := policy.Backoff
	if backoff == nil {
		backoff = DefaultBackoff(time.Second, time.Second)
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = wait
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}

		if err := sleep(ctx, backoff(attempt, lastErr)); err != nil {
			return err
		}
	}

	return fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

// wait blocks for d or until the context is cancelled.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
