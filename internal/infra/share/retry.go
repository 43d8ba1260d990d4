package share

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds the attempts and backoff of Do.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is a small fixed attempt ceiling with exponential
// backoff and full jitter.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    2 * time.Second,
}

// Do runs fn, retrying while IsRetryable(err) reports true, up to
// policy.MaxAttempts. It stops immediately on a permanent error or when ctx
// is done.
func Do(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}
		delay := backoff(policy, attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func backoff(policy RetryPolicy, attempt int) time.Duration {
	d := policy.BaseDelay << attempt
	if d > policy.MaxDelay || d <= 0 {
		d = policy.MaxDelay
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}
