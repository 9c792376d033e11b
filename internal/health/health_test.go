package health

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeLatencySampler struct{ p95 float64 }

func (f fakeLatencySampler) P95BatchSeconds() float64 { return f.p95 }

func TestChecker_Sample_IncludesMinuteBarLatency(t *testing.T) {
	c := NewChecker(fakeLatencySampler{p95: 0.42}, zerolog.Nop())
	report := c.Sample(context.Background())

	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, 0.42, report.MinuteBarP95Seconds)
	assert.GreaterOrEqual(t, report.UptimeSeconds, 0.0)
}

func TestChecker_Sample_NilSamplerOmitsLatency(t *testing.T) {
	c := NewChecker(nil, zerolog.Nop())
	report := c.Sample(context.Background())

	assert.Equal(t, 0.0, report.MinuteBarP95Seconds)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(_ context.Context) error { return f.err }

type fakeConnectionMonitor struct {
	failed bool
	err    error
}

func (f fakeConnectionMonitor) FailedPermanently() (bool, error) { return f.failed, f.err }

func TestReadinessChecker_Ready_AllHealthy(t *testing.T) {
	r := NewReadinessChecker(fakePinger{}, fakePinger{}, fakeConnectionMonitor{})
	assert.NoError(t, r.Ready(context.Background()))
}

func TestReadinessChecker_Ready_ReportsFirstFailure(t *testing.T) {
	r := NewReadinessChecker(fakePinger{err: errors.New("boom")}, fakePinger{}, fakeConnectionMonitor{})
	err := r.Ready(context.Background())
	assert.ErrorContains(t, err, "bus unreachable")
}

func TestReadinessChecker_Ready_NilDependenciesSkip(t *testing.T) {
	r := NewReadinessChecker(nil, nil, nil)
	assert.NoError(t, r.Ready(context.Background()))
}

func TestReadinessChecker_Ready_ReportsPermanentWebSocketFailure(t *testing.T) {
	r := NewReadinessChecker(fakePinger{}, fakePinger{}, fakeConnectionMonitor{failed: true, err: errors.New("auth rejected")})
	err := r.Ready(context.Background())
	assert.ErrorContains(t, err, "websocket ingestor closed permanently")
}
