package brightcove

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a call that failed with the platform's
// transient timeout code is re-issued. MaxAttempts counts the first
// attempt, so 1 disables retries.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Defaults applied when retries are enabled without explicit values.
const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
)

// NoRetry issues every call exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// DefaultRetry is the policy used when retries are switched on but not tuned.
func DefaultRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultRetryAttempts, Delay: DefaultRetryDelay}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// SleepContext waits for d or until ctx is done, whichever comes first.
// A non-positive d only reports ctx.Err().
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
