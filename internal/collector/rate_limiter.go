package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kurihiro0119/bucket-harvest/internal/domain"
	apperrors "github.com/kurihiro0119/bucket-harvest/internal/errors"
)

const (
	// GitHubRateLimit is the authenticated hourly budget assumed until the
	// first response reports the real one.
	GitHubRateLimit = 5000

	DefaultSafetyMargin = time.Second
	DefaultBurst        = 5
)

type sleepFunc func(ctx context.Context, d time.Duration) error

// RateLimiter tracks the shared API budget. Every remote call goes through
// Acquire first; responses feed Update or Exhaust.
type RateLimiter struct {
	mu        sync.Mutex
	remaining int
	limit     int
	resetAt   time.Time

	// waiting is non-nil while one caller sleeps until resetAt. Other
	// callers block on it instead of starting their own sleep.
	waiting chan struct{}

	maxWait time.Duration
	margin  time.Duration
	bucket  *rate.Limiter

	now   func() time.Time
	sleep sleepFunc
}

// LimiterOption configures a RateLimiter
type LimiterOption func(*RateLimiter)

// WithMaxWait bounds how long Acquire may suspend a caller
func WithMaxWait(d time.Duration) LimiterOption {
	return func(r *RateLimiter) { r.maxWait = d }
}

// WithSafetyMargin is added to every wait for the reset
func WithSafetyMargin(d time.Duration) LimiterOption {
	return func(r *RateLimiter) { r.margin = d }
}

// WithRequestsPerSecond sets the proactive throttle. Zero or less disables it.
func WithRequestsPerSecond(rps float64, burst int) LimiterOption {
	return func(r *RateLimiter) {
		if rps <= 0 {
			r.bucket = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.bucket = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithClock replaces the time source and the sleep used while suspended
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) LimiterOption {
	return func(r *RateLimiter) {
		if now != nil {
			r.now = now
		}
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(opts ...LimiterOption) *RateLimiter {
	r := &RateLimiter{
		remaining: GitHubRateLimit,
		limit:     GitHubRateLimit,
		maxWait:   10 * time.Minute,
		margin:    DefaultSafetyMargin,
		bucket:    rate.NewLimiter(rate.Limit(10), DefaultBurst),
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire returns once it is safe to issue one more call. It fails with a
// rate limited error, without waiting, when the reset lies beyond maxWait.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	if r.bucket != nil {
		// Wait also fails early when the next token lies past the context
		// deadline, while ctx.Err() is still nil.
		if err := r.bucket.Wait(ctx); err != nil {
			return &apperrors.AppError{
				Code:    apperrors.ErrCodeAborted,
				Message: "request throttle wait cancelled",
				Err:     err,
			}
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.mu.Lock()
		if r.remaining > 0 {
			r.remaining--
			r.mu.Unlock()
			return nil
		}

		now := r.now()
		if !now.Before(r.resetAt) {
			// The window has rolled over; assume a full budget until told otherwise.
			r.remaining = r.limit - 1
			r.mu.Unlock()
			return nil
		}

		resetAt := r.resetAt
		wait := resetAt.Sub(now) + r.margin
		if wait > r.maxWait {
			r.mu.Unlock()
			return apperrors.NewRateLimitedError(
				fmt.Sprintf("rate limit exhausted until %s", resetAt.Format(time.RFC3339)), resetAt)
		}

		if ch := r.waiting; ch != nil {
			r.mu.Unlock()
			select {
			case <-ch:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		ch := make(chan struct{})
		r.waiting = ch
		r.mu.Unlock()

		slog.Info("rate limit exhausted, suspending", "wait", wait.Round(time.Second), "reset_at", resetAt)
		err := r.sleep(ctx, wait)

		r.mu.Lock()
		r.waiting = nil
		close(ch)
		if err == nil && r.remaining == 0 && r.resetAt.Equal(resetAt) {
			r.remaining = r.limit
		}
		r.mu.Unlock()

		if err != nil {
			return err
		}
	}
}

// Update overwrites the budget view from response headers
func (r *RateLimiter) Update(remaining, limit int, resetAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if remaining < 0 {
		remaining = 0
	}
	r.remaining = remaining
	if limit > 0 {
		r.limit = limit
	}
	r.resetAt = resetAt
}

// Exhaust records that the server refused a call until resetAt
func (r *RateLimiter) Exhaust(resetAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaining = 0
	r.resetAt = resetAt
}

// Budget returns a snapshot of the current view
func (r *RateLimiter) Budget() domain.RateBudget {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RateBudget{Remaining: r.remaining, Limit: r.limit, ResetAt: r.resetAt}
}

// MaxWait returns the longest suspension Acquire accepts
func (r *RateLimiter) MaxWait() time.Duration {
	return r.maxWait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
