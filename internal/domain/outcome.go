package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stage identifies the pipeline step a run outcome refers to.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageTransform Stage = "transform"
	StageFormat    Stage = "format"
	StageDeliver   Stage = "deliver"
)

// RunOutcome records the result of one orchestrated run. It is never
// persisted; only Job.LastRun survives a successful run.
type RunOutcome struct {
	RunID   uuid.UUID
	JobName string

	// Stage and Err are set on failure. A successful run has an empty
	// Stage and a nil Err.
	Stage Stage
	Err   error

	Rows    int
	Columns int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Success reports whether the full pipeline completed.
func (o RunOutcome) Success() bool {
	return o.Err == nil
}
