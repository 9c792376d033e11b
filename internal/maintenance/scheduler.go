package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler wires the Orchestrator to the two triggers spec §4.9
// describes: the full graph at a configurable hour/minute (default
// 17:00 ET), and a cache-clear-only run at 03:00 ET.
type Scheduler struct {
	orchestrator *Orchestrator
	cron         *cron.Cron
	loc          *time.Location
	holidayMode  func() bool
	log          zerolog.Logger
}

// NewScheduler builds a Scheduler running in loc (America/New_York by
// spec default). holidayMode is polled at trigger time, not registration
// time, so toggling the flag mid-day takes effect on the next run.
func NewScheduler(o *Orchestrator, loc *time.Location, hour, minute int, holidayMode func() bool, log zerolog.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(loc))

	s := &Scheduler{orchestrator: o, cron: c, loc: loc, holidayMode: holidayMode, log: log.With().Str("component", "maintenance_scheduler").Logger()}

	fullGraphSpec := fmt.Sprintf("%d %d * * 1-5", minute, hour)
	if _, err := c.AddFunc(fullGraphSpec, s.runFullGraph); err != nil {
		return nil, fmt.Errorf("maintenance: schedule full graph: %w", err)
	}

	const cacheClearSpec = "0 3 * * 1-5"
	if _, err := c.AddFunc(cacheClearSpec, s.runCacheClearOnly); err != nil {
		return nil, fmt.Errorf("maintenance: schedule cache clear: %w", err)
	}

	return s, nil
}

// Start runs the cron scheduler in the background. Stop via ctx
// cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
}

func (s *Scheduler) runFullGraph() {
	holiday := s.holidayMode != nil && s.holidayMode()
	date := time.Now().In(s.loc)
	s.log.Info().Bool("holiday_mode", holiday).Str("date", date.Format("2006-01-02")).Msg("starting scheduled maintenance run")
	_, allSuccess := s.orchestrator.RunDay(context.Background(), date, holiday)
	s.log.Info().Bool("all_success", allSuccess).Msg("scheduled maintenance run complete")
}

func (s *Scheduler) runCacheClearOnly() {
	task, ok := s.orchestrator.registry.ByName("clear_caches")
	if !ok {
		s.log.Error().Msg("03:00 cache-clear trigger: clear_caches task not registered")
		return
	}
	date := time.Now().In(s.loc)
	if err := task.Run(context.Background(), date); err != nil {
		s.log.Error().Err(err).Msg("03:00 cache-clear trigger failed")
	}
}
