package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kurihiro0119/bucket-harvest/internal/errors"
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestLimiter(maxWait time.Duration, sleep func(ctx context.Context, d time.Duration) error) *RateLimiter {
	return NewRateLimiter(
		WithRequestsPerSecond(0, 0),
		WithMaxWait(maxWait),
		WithClock(func() time.Time { return fixedNow }, sleep),
	)
}

func TestAcquireDecrementsBudget(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(time.Minute, nil)
	l.Update(3, 100, fixedNow.Add(time.Hour))

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
	assert.Equal(t, 0, l.Budget().Remaining)
	assert.Equal(t, 100, l.Budget().Limit)
}

func TestAcquireFailsBeyondMaxWait(t *testing.T) {
	t.Parallel()

	sleeps := 0
	l := newTestLimiter(10*time.Minute, func(context.Context, time.Duration) error {
		sleeps++
		return nil
	})
	reset := fixedNow.Add(5 * time.Hour)
	l.Exhaust(reset)

	err := l.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimited(err))
	got, ok := apperrors.ResetAt(err)
	require.True(t, ok)
	assert.Equal(t, reset, got)
	assert.Zero(t, sleeps)
}

func TestAcquireAfterResetPassed(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(time.Minute, nil)
	l.Update(0, 100, fixedNow.Add(-time.Second))

	require.NoError(t, l.Acquire(context.Background()))
	assert.Equal(t, 99, l.Budget().Remaining)
}

func TestAcquireSharesSuspension(t *testing.T) {
	t.Parallel()

	var sleeps atomic.Int32
	var slept atomic.Int64
	release := make(chan struct{})
	l := newTestLimiter(time.Minute, func(ctx context.Context, d time.Duration) error {
		sleeps.Add(1)
		slept.Store(int64(d))
		<-release
		return nil
	})
	l.Update(0, 10, fixedNow.Add(30*time.Second))

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.Acquire(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return sleeps.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), sleeps.Load())
	assert.Equal(t, 30*time.Second+DefaultSafetyMargin, time.Duration(slept.Load()))
	assert.Equal(t, 5, l.Budget().Remaining)
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(time.Minute, sleepContext)
	l.Exhaust(fixedNow.Add(30 * time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Acquire(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Acquire did not return after cancellation")
	}
}

func TestAcquireThrottleDeadlineIsAborted(t *testing.T) {
	t.Parallel()

	l := NewRateLimiter(WithRequestsPerSecond(0.001, 1))
	require.NoError(t, l.Acquire(context.Background()))

	// The next token is ~1000s away, so Wait gives up before the deadline passes.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	err := l.Acquire(ctx)
	require.Error(t, err)
	assert.NoError(t, ctx.Err())
	assert.Equal(t, apperrors.ErrCodeAborted, apperrors.CodeOf(err))
}

func TestUpdateIsLastWriterWins(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(time.Minute, nil)
	l.Update(10, 5000, fixedNow.Add(time.Hour))
	l.Update(4990, 5000, fixedNow.Add(2*time.Hour))

	b := l.Budget()
	assert.Equal(t, 4990, b.Remaining)
	assert.Equal(t, fixedNow.Add(2*time.Hour), b.ResetAt)

	l.Update(-3, 0, fixedNow)
	b = l.Budget()
	assert.Equal(t, 0, b.Remaining)
	assert.Equal(t, 5000, b.Limit)
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	none := Backoff{Base: DefaultBaseBackoff, Max: DefaultMaxBackoff, Jitter: func(time.Duration) time.Duration { return 0 }}
	full := Backoff{Base: DefaultBaseBackoff, Max: DefaultMaxBackoff, Jitter: func(d time.Duration) time.Duration { return d }}

	assert.Equal(t, 250*time.Millisecond, none.Delay(0))
	assert.Equal(t, 500*time.Millisecond, full.Delay(0))
	assert.Equal(t, 500*time.Millisecond, none.Delay(1))
	assert.Equal(t, time.Second, full.Delay(1))
	assert.Equal(t, 4*time.Second, none.Delay(10))
	assert.Equal(t, 8*time.Second, full.Delay(10))

	random := DefaultBackoff()
	for i := 0; i < 50; i++ {
		d := random.Delay(2)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 2*time.Second)
	}
}

func TestDoWithRetry(t *testing.T) {
	t.Parallel()

	b := Backoff{Attempts: 3, Base: 100 * time.Millisecond, Max: time.Second, Jitter: func(time.Duration) time.Duration { return 0 }}

	t.Run("transient then success", func(t *testing.T) {
		t.Parallel()
		var delays []time.Duration
		calls := 0
		err := doWithRetry(context.Background(), b, func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}, func() error {
			calls++
			if calls < 3 {
				return apperrors.NewTransientError("boom", nil)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}, delays)
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := doWithRetry(context.Background(), b, func(context.Context, time.Duration) error { return nil }, func() error {
			calls++
			return apperrors.NewTransientError("boom", nil)
		})
		assert.True(t, apperrors.IsTransient(err))
		assert.Equal(t, 3, calls)
	})

	t.Run("not found is never retried", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := doWithRetry(context.Background(), b, nil, func() error {
			calls++
			return apperrors.NewNotFoundError("repo")
		})
		assert.True(t, apperrors.IsNotFound(err))
		assert.Equal(t, 1, calls)
	})
}
