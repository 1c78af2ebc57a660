package models

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a [Run].
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// RunMode distinguishes a full reconciliation from a replay of a saved snapshot.
type RunMode string

const (
	ModeFull   RunMode = "full"
	ModeDryRun RunMode = "dry_run"
	ModeReplay RunMode = "replay"
)

// Run is the persisted audit record of one pipeline run.
type Run struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time

	Mode         RunMode
	Status       RunStatus
	Identities   int
	RowsEnriched int
	RowsDropped  int
	TeamsSynced  int
	TeamsFailed  int
	SnapshotPath string
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// NewRun creates a pending run in the given mode.
func NewRun(mode RunMode) *Run {
	now := time.Now()
	return &Run{
		Mode:      mode,
		Status:    RunPending,
		StartedAt: now,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *Run) ID() string               { return r.id }
func (r *Run) Sequence() int            { return r.sequence }
func (r *Run) CreatedAt() time.Time     { return r.createdAt }
func (r *Run) UpdatedAt() time.Time     { return r.updatedAt }
func (r *Run) DeletedAt() *time.Time    { return r.deletedAt }
func (r *Run) SetID(id string)          { r.id = id }
func (r *Run) SetSequence(seq int)      { r.sequence = seq }
func (r *Run) SetCreatedAt(t time.Time) { r.createdAt = t }
func (r *Run) SetUpdatedAt(t time.Time) { r.updatedAt = t }
func (r *Run) SetDeletedAt(t *time.Time) {
	r.deletedAt = t
}

// Finish stamps the completion time and derives the final status from the counters.
//
// A run with an error is failed; one with dropped rows or failed teams is partial.
func (r *Run) Finish(err error) {
	now := time.Now()
	r.CompletedAt = &now

	switch {
	case err != nil:
		r.Status = RunFailed
		r.ErrorMessage = err.Error()
	case r.RowsDropped > 0 || r.TeamsFailed > 0:
		r.Status = RunPartial
	default:
		r.Status = RunCompleted
	}
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Validate checks the run's status and mode.
func (r *Run) Validate() error {
	switch r.Status {
	case RunPending, RunRunning, RunCompleted, RunPartial, RunFailed:
	default:
		return fmt.Errorf("invalid run status: %q", r.Status)
	}

	switch r.Mode {
	case ModeFull, ModeDryRun, ModeReplay:
	default:
		return fmt.Errorf("invalid run mode: %q", r.Mode)
	}

	if r.StartedAt.IsZero() {
		return fmt.Errorf("run start time is required")
	}
	return nil
}
