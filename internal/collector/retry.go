package collector

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	apperrors "github.com/kurihiro0119/bucket-harvest/internal/errors"
)

const (
	DefaultAttempts    = 3
	DefaultBaseBackoff = 500 * time.Millisecond
	DefaultMaxBackoff  = 8 * time.Second
)

// Backoff describes the retry schedule for transient failures.
// Delay n is min(Base*2^n, Max), half of it fixed and half random.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration

	// Jitter returns a value in [0, d]. Nil uses math/rand.
	Jitter func(d time.Duration) time.Duration
}

// DefaultBackoff returns 3 attempts, 500ms doubling, capped at 8s
func DefaultBackoff() Backoff {
	return Backoff{
		Attempts: DefaultAttempts,
		Base:     DefaultBaseBackoff,
		Max:      DefaultMaxBackoff,
	}
}

// Delay returns the pause before retry number n (0-based)
func (b Backoff) Delay(n int) time.Duration {
	d := b.Base
	for i := 0; i < n && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}

	half := d / 2
	jitter := b.Jitter
	if jitter == nil {
		jitter = randomJitter
	}
	return half + jitter(d-half)
}

func randomJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

// doWithRetry runs fn until it succeeds, fails with a non-transient error,
// or uses up b.Attempts.
func doWithRetry(ctx context.Context, b Backoff, sleeper sleepFunc, fn func() error) error {
	if sleeper == nil {
		sleeper = sleepContext
	}
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == attempts-1 || !apperrors.IsTransient(err) {
			break
		}
		if err := sleeper(ctx, b.Delay(attempt)); err != nil {
			return apperrors.NewAbortedError(fmt.Sprintf("sleep before retry: %v", err))
		}
	}

	return lastErr
}
