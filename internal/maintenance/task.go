// Package maintenance implements the Maintenance Orchestrator (spec
// §4.9): a fixed, ordered, independently-retriable task graph run once
// per trading day plus a lighter daily cache-clear trigger.
package maintenance

import (
	"context"
	"time"
)

// Status is a task's outcome for one trading day (spec §4.9 "State").
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Task is one node of the nightly graph. Run performs the work for
// trading date `date`; a non-nil error marks the task failed without
// aborting the remaining graph (spec §7 "Maintenance task failure").
type Task struct {
	Name string
	Run  func(ctx context.Context, date time.Time) error
}

// Result records one task's outcome within a single orchestrator run,
// feeding both the Bus-persisted status and the self-audit report.
type Result struct {
	Task     string
	Status   Status
	Duration time.Duration
	Err      error
}
