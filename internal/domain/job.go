package domain

import "time"

// Job is the persisted definition of a recurring transformation job.
// It is immutable for the duration of a single run; LastRun is the only
// field mutated between runs.
type Job struct {
	Name string

	// CronExpression uses standard 5-field cron semantics
	// (minute hour day-of-month month day-of-week).
	CronExpression string

	Source     Source
	Transform  string
	Recipients []string

	CreatedAt time.Time
	LastRun   *time.Time
}
