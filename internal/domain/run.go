package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunMode is the kind of harvest a run performed
type RunMode string

const (
	ModeOrganization RunMode = "organization"
	ModeIssues       RunMode = "issues"
)

// RunStatus is the final state of a run
type RunStatus string

const (
	StatusInProgress RunStatus = "in_progress"
	StatusCompleted  RunStatus = "completed"
	StatusPartial    RunStatus = "completed_with_failures"
	StatusAborted    RunStatus = "aborted"
)

// HarvestRun is the archived header of a finished run
type HarvestRun struct {
	ID         string
	Mode       RunMode
	Owner      string
	Repo       string // issue mode only
	StartedAt  time.Time
	FinishedAt time.Time
	Status     RunStatus
	Total      int
	Succeeded  int
	Failed     int
	Partial    int
}

// NewHarvestRun starts a run record
func NewHarvestRun(mode RunMode, owner, repo string, startedAt time.Time) *HarvestRun {
	return &HarvestRun{
		ID:        uuid.New().String(),
		Mode:      mode,
		Owner:     owner,
		Repo:      repo,
		StartedAt: startedAt,
		Status:    StatusInProgress,
	}
}

// Finish copies the summary counts into the run and sets its status
func (r *HarvestRun) Finish(summary Summary, finishedAt time.Time) {
	r.FinishedAt = finishedAt
	r.Total = summary.Total
	r.Succeeded = summary.Succeeded
	r.Failed = summary.Failed
	r.Partial = summary.Partial

	switch {
	case summary.ByKind[FailureAborted] > 0:
		r.Status = StatusAborted
	case summary.Failed > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusCompleted
	}
}

// RateBudget is the last reported state of the API call budget
type RateBudget struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}
