package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kurihiro0119/bucket-harvest/internal/domain"
)

const (
	// DefaultRateLimitReruns is how often a rate limited unit is re-run
	// while the reset is within reach.
	DefaultRateLimitReruns = 2
	DefaultMaxWait         = 10 * time.Minute
)

// Executor runs one unit of work. Implementations report every failure in
// the returned result rather than panicking or returning an error.
type Executor[T any] interface {
	Execute(ctx context.Context, target domain.Target) domain.UnitResult[T]
}

// ExecutorFunc adapts a function to Executor
type ExecutorFunc[T any] func(ctx context.Context, target domain.Target) domain.UnitResult[T]

func (f ExecutorFunc[T]) Execute(ctx context.Context, target domain.Target) domain.UnitResult[T] {
	return f(ctx, target)
}

// BudgetSource exposes the shared rate budget
type BudgetSource interface {
	Budget() domain.RateBudget
}

// Progress is reported after every completed target
type Progress struct {
	Completed int
	Total     int
	Target    domain.Target
	Outcome   domain.Outcome
	Failure   *domain.Failure
}

// ProgressFunc receives progress updates. Calls are serialized.
type ProgressFunc func(Progress)

// Options configures a Harvester
type Options struct {
	Workers int
	MaxWait time.Duration
	// RateLimitReruns of zero means DefaultRateLimitReruns; negative disables re-runs.
	RateLimitReruns int
	Budget          BudgetSource
	OnProgress      ProgressFunc
	Now             func() time.Time
}

// Harvester runs units over a bounded worker pool
type Harvester[T any] struct {
	executor Executor[T]
	opts     Options

	completed atomic.Int64
	total     atomic.Int64
	progress  sync.Mutex
}

// NewHarvester creates a harvester for executor
func NewHarvester[T any](executor Executor[T], opts Options) *Harvester[T] {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	switch {
	case opts.RateLimitReruns == 0:
		opts.RateLimitReruns = DefaultRateLimitReruns
	case opts.RateLimitReruns < 0:
		opts.RateLimitReruns = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Harvester[T]{executor: executor, opts: opts}
}

// Completed returns the number of targets finished so far
func (h *Harvester[T]) Completed() int {
	return int(h.completed.Load())
}

// abortSignal is fired at most once; the first reason wins.
type abortSignal struct {
	once   sync.Once
	ch     chan struct{}
	reason atomic.Value
}

func newAbortSignal() *abortSignal {
	return &abortSignal{ch: make(chan struct{})}
}

func (a *abortSignal) fire(reason string) {
	a.once.Do(func() {
		a.reason.Store(reason)
		close(a.ch)
		slog.Warn("harvest aborted, no further targets will start", "reason", reason)
	})
}

func (a *abortSignal) fired() (string, bool) {
	select {
	case <-a.ch:
		return a.reason.Load().(string), true
	default:
		return "", false
	}
}

// Run executes every target and returns exactly one result per target, in
// target order. Units already running when the run aborts finish normally;
// targets not yet started become ABORTED failures.
func (h *Harvester[T]) Run(ctx context.Context, targets []domain.Target) []domain.UnitResult[T] {
	results := make([]domain.UnitResult[T], len(targets))
	abort := newAbortSignal()
	h.completed.Store(0)
	h.total.Store(int64(len(targets)))

	// Semaphore to limit concurrent units
	sem := make(chan struct{}, h.opts.Workers)
	var wg sync.WaitGroup

	for i, target := range targets {
		if _, stop := abort.fired(); !stop {
			select {
			case sem <- struct{}{}:
				if reason, stop := h.checkGate(ctx); stop {
					abort.fire(reason)
				}
				if _, stop := abort.fired(); stop {
					<-sem
				}
			case <-ctx.Done():
				abort.fire("cancelled: " + ctx.Err().Error())
			case <-abort.ch:
			}
		}

		if reason, stop := abort.fired(); stop {
			results[i] = domain.Failed[T](target, domain.FailureAborted, reason)
			h.complete(results[i])
			continue
		}

		wg.Add(1)
		go func(i int, target domain.Target) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = h.runUnit(ctx, target, abort)
			h.complete(results[i])
		}(i, target)
	}

	wg.Wait()
	return results
}

// checkGate decides whether a new unit may start
func (h *Harvester[T]) checkGate(ctx context.Context) (string, bool) {
	if err := ctx.Err(); err != nil {
		return "cancelled: " + err.Error(), true
	}
	if h.opts.Budget == nil {
		return "", false
	}
	b := h.opts.Budget.Budget()
	if b.Remaining > 0 {
		return "", false
	}
	if wait := b.ResetAt.Sub(h.opts.Now()); wait > h.opts.MaxWait {
		return fmt.Sprintf("rate limit exhausted until %s, beyond max wait %s",
			b.ResetAt.Format(time.RFC3339), h.opts.MaxWait), true
	}
	return "", false
}

func (h *Harvester[T]) runUnit(ctx context.Context, target domain.Target, abort *abortSignal) domain.UnitResult[T] {
	for attempt := 0; ; attempt++ {
		res := h.executor.Execute(ctx, target)
		res.Target = target
		if res.Outcome != domain.OutcomeRateLimited {
			return res
		}

		retryAfter := res.RetryAfter
		if retryAfter <= 0 && !res.ResetAt.IsZero() {
			retryAfter = res.ResetAt.Sub(h.opts.Now())
		}
		if retryAfter <= h.opts.MaxWait && attempt < h.opts.RateLimitReruns {
			slog.Info("unit rate limited, re-running", "target", target.ID(), "retry_after", retryAfter.Round(time.Second), "attempt", attempt+1)
			continue
		}

		reason := fmt.Sprintf("rate limited, retry after %s", retryAfter.Round(time.Second))
		if !res.ResetAt.IsZero() {
			reason = fmt.Sprintf("rate limited until %s", res.ResetAt.Format(time.RFC3339))
		}
		// Only a reset beyond maxWait stops the run. Running out of re-runs
		// fails this target alone.
		if retryAfter > h.opts.MaxWait {
			abort.fire(reason)
		}
		return domain.Failed[T](target, domain.FailureRateLimited, reason)
	}
}

func (h *Harvester[T]) complete(res domain.UnitResult[T]) {
	h.progress.Lock()
	defer h.progress.Unlock()

	n := h.completed.Add(1)
	if h.opts.OnProgress != nil {
		h.opts.OnProgress(Progress{
			Completed: int(n),
			Total:     int(h.total.Load()),
			Target:    res.Target,
			Outcome:   res.Outcome,
			Failure:   res.Failure,
		})
	}
}
