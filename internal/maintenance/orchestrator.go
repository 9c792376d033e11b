package maintenance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/equiscan/internal/events"
)

// recoveryWindowDays bounds the startup recovery scan (spec §4.9
// "startup scans last 7 trading days for unmarked completions").
const recoveryWindowDays = 7

// holidaySkipTasks lists the task names omitted in holiday mode
// (skip_cache_clear=true omits steps 1, 12, 13 — spec §4.9).
var holidaySkipTasks = map[string]bool{
	"clear_caches":    true,
	"sync_redis":      true,
	"notify_services": true,
}

// Orchestrator runs the fixed 13-task graph for a trading date, never
// aborting on a single task failure, and persists per-task status plus
// a one-line-per-task self-audit report (spec §4.9, SPEC_FULL.md §C).
type Orchestrator struct {
	registry *Registry
	state    StateStore
	events   *events.Bus
	log      zerolog.Logger
}

// NewOrchestrator constructs an Orchestrator over the given task graph.
func NewOrchestrator(registry *Registry, state StateStore, eventBus *events.Bus, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{registry: registry, state: state, events: eventBus, log: log.With().Str("component", "maintenance").Logger()}
}

// RunDay executes every task in order for date, skipping the holiday-mode
// tasks when holidayMode is set. A task failure is recorded and logged
// but never stops the remaining graph. Returns per-task results and
// whether every non-skipped task succeeded.
func (o *Orchestrator) RunDay(ctx context.Context, date time.Time, holidayMode bool) ([]Result, bool) {
	dateKey := date.Format("2006-01-02")
	runID := uuid.NewString()

	results := make([]Result, 0, len(o.registry.Tasks()))
	allSuccess := true

	for _, task := range o.registry.Tasks() {
		if holidayMode && holidaySkipTasks[task.Name] {
			o.recordStatus(ctx, dateKey, task.Name, StatusSkipped)
			results = append(results, Result{Task: task.Name, Status: StatusSkipped})
			continue
		}

		o.recordStatus(ctx, dateKey, task.Name, StatusRunning)
		if o.events != nil {
			o.events.Emit(events.MaintenanceTaskStarted, "maintenance", events.MaintenanceTaskData{RunID: runID, TaskName: task.Name}.ToMap())
		}

		start := time.Now()
		err := task.Run(ctx, date)
		duration := time.Since(start)

		result := Result{Task: task.Name, Duration: duration, Err: err}
		if err != nil {
			result.Status = StatusFailed
			allSuccess = false
			o.log.Error().Err(err).Str("task", task.Name).Str("date", dateKey).Msg("maintenance task failed")
			if o.events != nil {
				o.events.Emit(events.MaintenanceTaskFailed, "maintenance", events.MaintenanceTaskData{
					RunID: runID, TaskName: task.Name, Error: err.Error(), Duration: duration.Seconds(),
				}.ToMap())
			}
		} else {
			result.Status = StatusSuccess
			if o.events != nil {
				o.events.Emit(events.MaintenanceTaskCompleted, "maintenance", events.MaintenanceTaskData{
					RunID: runID, TaskName: task.Name, Duration: duration.Seconds(),
				}.ToMap())
			}
		}

		o.recordStatus(ctx, dateKey, task.Name, result.Status)
		results = append(results, result)
	}

	if allSuccess {
		if err := o.state.MarkExecuted(ctx, dateKey); err != nil {
			o.log.Error().Err(err).Str("date", dateKey).Msg("failed to mark maintenance day executed")
		}
	}

	o.writeAudit(ctx, dateKey, results)

	if o.events != nil {
		o.events.Emit(events.MaintenanceRunCompleted, "maintenance", map[string]interface{}{
			"run_id": runID, "date": dateKey, "all_success": allSuccess, "task_count": len(results),
		})
	}

	return results, allSuccess
}

func (o *Orchestrator) recordStatus(ctx context.Context, dateKey, task string, status Status) {
	if err := o.state.SetStatus(ctx, dateKey, task, status); err != nil {
		o.log.Error().Err(err).Str("task", task).Str("date", dateKey).Msg("failed to persist maintenance task status")
	}
}

// writeAudit persists the one-line-per-task self-audit summary to
// maintenance:audit:{date}, 7-day TTL (SPEC_FULL.md §C).
func (o *Orchestrator) writeAudit(ctx context.Context, dateKey string, results []Result) {
	var b strings.Builder
	for _, r := range results {
		line := fmt.Sprintf("%s: %s (%.2fs)", r.Task, r.Status, r.Duration.Seconds())
		if r.Err != nil {
			line += " error=" + r.Err.Error()
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if err := o.state.WriteAudit(ctx, dateKey, b.String()); err != nil {
		o.log.Error().Err(err).Str("date", dateKey).Msg("failed to write maintenance audit report")
	}
}

// Recover scans the last recoveryWindowDays trading days (oldest first)
// for days never marked executed and re-runs the full graph for each
// (spec §4.9 "on startup scans last 7 trading days for unmarked
// completions and runs recovery oldest-first"). isTradingDay filters
// weekends/holidays from the scan.
func (o *Orchestrator) Recover(ctx context.Context, asOf time.Time, isTradingDay func(time.Time) bool) {
	var pending []time.Time
	for i, found := 1, 0; found < recoveryWindowDays && i <= 3*recoveryWindowDays; i++ {
		day := asOf.AddDate(0, 0, -i)
		if !isTradingDay(day) {
			continue
		}
		found++
		executed, err := o.state.IsExecuted(ctx, day.Format("2006-01-02"))
		if err != nil {
			o.log.Error().Err(err).Str("date", day.Format("2006-01-02")).Msg("failed to check maintenance recovery state")
			continue
		}
		if !executed {
			pending = append([]time.Time{day}, pending...)
		}
	}

	for _, day := range pending {
		o.log.Warn().Str("date", day.Format("2006-01-02")).Msg("running maintenance recovery for incomplete day")
		o.RunDay(ctx, day, false)
	}
}
