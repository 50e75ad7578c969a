package run

import (
	"time"

	"github.com/quench-lab/sweep-core/internal/sweep"
)

// Run represents one measurement run: a normalized schedule bound to an
// instrument, with lifecycle timestamps and progress counters.
type Run struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Lifecycle
	Status Status `json:"status"`

	// Schedule. Series is the normalized root level; Base is the full
	// assignment applied before the first step.
	Series *sweep.Series `json:"series"`
	Base   sweep.Step    `json:"base"`

	// Progress
	TotalSteps     int `json:"total_steps"`
	CompletedSteps int `json:"completed_steps"`

	// Error holds the failure message when Status is failed.
	Error *string `json:"error,omitempty"`

	// Timestamps
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Capture records one stored acquisition within a run.
type Capture struct {
	ID         string     `json:"id"`
	RunID      string     `json:"run_id"`
	StepIndex  int        `json:"step_index"`
	Step       sweep.Step `json:"step"`
	FilePath   string     `json:"file_path"`
	CapturedAt time.Time  `json:"captured_at"`
}

// Status represents the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped" // Operator requested stop mid-run
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

// Copy creates an independent copy of the Run. The schedule and base
// assignment are cloned so callers cannot mutate repository state.
func (r *Run) Copy() *Run {
	if r == nil {
		return nil
	}

	cpy := *r
	cpy.Series = r.Series.Copy()
	cpy.Base = r.Base.Copy()
	if r.Error != nil {
		msg := *r.Error
		cpy.Error = &msg
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		cpy.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		cpy.FinishedAt = &t
	}
	return &cpy
}
