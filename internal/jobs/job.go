// Package jobs runs recurring background work on cron schedules.
package jobs

import (
	"context"
	"time"
)

// JobStatus represents the outcome of a job's last run
type JobStatus string

const (
	// JobStatusPending indicates the job has not run yet
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently running
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the last run succeeded
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the last run returned an error or panicked
	JobStatusFailed JobStatus = "failed"
)

// Job is a unit of recurring work
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to the Job interface
type JobFunc func(ctx context.Context) error

// Run implements the Job interface
func (f JobFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Info describes a scheduled job
type Info struct {
	Name      string
	Schedule  string
	Status    JobStatus
	Runs      int
	LastRun   time.Time
	LastError string
	NextRun   time.Time
}
