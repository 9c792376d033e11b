// Package health samples process resource usage for the /healthz
// endpoint, grounded on the teacher's SystemHandlers.getSystemStats
// (aristath-sentinel/internal/server/system_handlers.go).
package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Report is the /healthz response body.
type Report struct {
	Status              string  `json:"status"`
	UptimeSeconds       float64 `json:"uptime_seconds"`
	CPUPercent          float64 `json:"cpu_percent"`
	MemoryPercent       float64 `json:"memory_percent"`
	MinuteBarP95Seconds float64 `json:"minute_bar_p95_seconds,omitempty"`
}

// LatencySampler exposes the Minute Bar Engine's self-reported p95
// batch-processing latency (spec §4.3).
type LatencySampler interface {
	P95BatchSeconds() float64
}

// Checker samples CPU/memory and uptime on demand.
type Checker struct {
	startedAt  time.Time
	minuteBars LatencySampler
	log        zerolog.Logger
}

// NewChecker builds a Checker. minuteBars may be nil if the Minute Bar
// Engine isn't wired (e.g. in tests).
func NewChecker(minuteBars LatencySampler, log zerolog.Logger) *Checker {
	return &Checker{
		startedAt:  time.Now(),
		minuteBars: minuteBars,
		log:        log.With().Str("component", "health").Logger(),
	}
}

// Sample returns a point-in-time resource report. CPU sampling blocks
// for 100ms, matching the teacher's "fast response" rationale for
// a frequently-polled endpoint.
func (c *Checker) Sample(ctx context.Context) Report {
	cpuPercent, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false)
	if err != nil {
		c.log.Warn().Err(err).Msg("cpu sample failed")
	}
	var cpuPct float64
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	var memPct float64
	if memStat, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		c.log.Warn().Err(err).Msg("memory sample failed")
	} else {
		memPct = memStat.UsedPercent
	}

	var p95 float64
	if c.minuteBars != nil {
		p95 = c.minuteBars.P95BatchSeconds()
	}

	return Report{
		Status:              "healthy",
		UptimeSeconds:       time.Since(c.startedAt).Seconds(),
		CPUPercent:          cpuPct,
		MemoryPercent:       memPct,
		MinuteBarP95Seconds: p95,
	}
}
