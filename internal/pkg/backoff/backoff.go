// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package backoff provides exponential backoff with jitter for retrying operations.
package backoff

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// DefaultPolicy is the Policy used for rate limited HTTP APIs.
var DefaultPolicy = Policy{
	MaxAttempts:  5,
	InitialDelay: time.Second,
	MaxDelay:     30 * time.Second,
}

// Policy configures Retry.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration
	// MaxDelay caps the doubling delay.
	MaxDelay time.Duration
}

// Delay returns the delay before the attempt after the given zero-based attempt,
// before jitter is applied.
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.InitialDelay
	for range attempt {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return min(delay, p.MaxDelay)
}

// Retry calls f until it succeeds, returns an error that isRetryable rejects, or
// the policy runs out of attempts. Between attempts, it waits with exponential
// backoff and jitter.
func Retry[T any](
	ctx context.Context,
	policy Policy,
	isRetryable func(error) bool,
	f func(ctx context.Context, attempt int) (T, error),
) (T, error) {
	var zero T
	maxAttempts := max(policy.MaxAttempts, 1)
	for attempt := range maxAttempts {
		result, err := f(ctx, attempt)
		if err == nil {
			return result, nil
		}
		if !isRetryable(err) {
			return zero, err
		}
		if attempt == maxAttempts-1 {
			return zero, fmt.Errorf("failed after %d attempts: %w", maxAttempts, err)
		}
		// Jitter: random duration between delay/2 and delay.
		delay := policy.Delay(attempt)
		jitteredDelay := delay/2 + time.Duration(rand.Int64N(int64(delay/2+1)))
		timer := time.NewTimer(jitteredDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, fmt.Errorf("failed after %d attempts", maxAttempts)
}
