package domain

import "time"

// FailureKind classifies why a unit did not produce a payload
type FailureKind string

const (
	FailureNotFound     FailureKind = "NOT_FOUND"
	FailureTransient    FailureKind = "TRANSIENT"
	FailureRateLimited  FailureKind = "RATE_LIMITED"
	FailureAborted      FailureKind = "ABORTED"
	FailureUnauthorized FailureKind = "UNAUTHORIZED"
	FailureInternal     FailureKind = "INTERNAL"
)

// Failure records a target that did not succeed
type Failure struct {
	Target  Target
	Kind    FailureKind
	Message string
}

// Outcome is the tag of a UnitResult
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeRateLimited
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeRateLimited:
		return "rate_limited"
	}
	return "unknown"
}

// UnitResult is the outcome of executing one unit of work.
// Exactly one of Payload (success), Failure (failure) or
// RetryAfter/ResetAt (rate limited) is meaningful, selected by Outcome.
type UnitResult[T any] struct {
	Target     Target
	Outcome    Outcome
	Payload    T
	Failure    *Failure
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Succeeded wraps a payload for target
func Succeeded[T any](target Target, payload T) UnitResult[T] {
	return UnitResult[T]{Target: target, Outcome: OutcomeSuccess, Payload: payload}
}

// Failed records a failure for target
func Failed[T any](target Target, kind FailureKind, message string) UnitResult[T] {
	return UnitResult[T]{
		Target:  target,
		Outcome: OutcomeFailure,
		Failure: &Failure{Target: target, Kind: kind, Message: message},
	}
}

// RateLimited records that target stopped on an exhausted budget.
func RateLimited[T any](target Target, retryAfter time.Duration, resetAt time.Time) UnitResult[T] {
	return UnitResult[T]{
		Target:     target,
		Outcome:    OutcomeRateLimited,
		RetryAfter: retryAfter,
		ResetAt:    resetAt,
	}
}

// Record is a successful payload together with the target that produced it
type Record[T any] struct {
	Target Target
	Value  T
}

// Summary holds the counts shown at the end of a run
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	ByKind    map[FailureKind]int
	Partial   int
}

// SuccessRate returns the succeeded share in percent
func (s Summary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total) * 100
}

// HarvestReport is the ordered, final result of a run.
// len(Successes)+len(Failures) always equals the number of targets.
type HarvestReport[T any] struct {
	Successes []Record[T]
	Failures  []Failure
	Summary   Summary
}

// Values returns the success payloads in report order
func (r HarvestReport[T]) Values() []T {
	values := make([]T, 0, len(r.Successes))
	for _, s := range r.Successes {
		values = append(values, s.Value)
	}
	return values
}

// Results turns the report back into unit results
func (r HarvestReport[T]) Results() []UnitResult[T] {
	results := make([]UnitResult[T], 0, len(r.Successes)+len(r.Failures))
	for _, s := range r.Successes {
		results = append(results, Succeeded(s.Target, s.Value))
	}
	for _, f := range r.Failures {
		results = append(results, Failed[T](f.Target, f.Kind, f.Message))
	}
	return results
}

// Partialer is implemented by payloads that can be incomplete
type Partialer interface {
	IsPartial() bool
}
