package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeWindowTracker_Vol5Min(t *testing.T) {
	tr := NewVolumeWindowTracker()
	base := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)

	tr.Update("AAPL", base, 1_000_000)
	tr.Update("AAPL", base.Add(5*time.Minute), 1_050_000)

	v := tr.Vol5Min("AAPL")
	require.NotNil(t, v)
	assert.InDelta(t, 50_000, *v, 0.01)
}

func TestVolumeWindowTracker_InsufficientHistoryReturnsNil(t *testing.T) {
	tr := NewVolumeWindowTracker()
	tr.Update("AAPL", time.Now(), 1000)
	assert.Nil(t, tr.Vol5Min("AAPL"))
}

func TestVolumeWindowTracker_EvictsOldSamples(t *testing.T) {
	tr := NewVolumeWindowTracker()
	base := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)

	tr.Update("AAPL", base, 1000)
	tr.Update("AAPL", base.Add(20*time.Minute), 5000)

	tr.s.mu.Lock()
	count := len(tr.s.points["AAPL"])
	tr.s.mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestPriceWindowTracker_Chg5Min(t *testing.T) {
	tr := NewPriceWindowTracker()
	base := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)

	tr.Update("TSLA", base, 200)
	tr.Update("TSLA", base.Add(5*time.Minute), 210)

	chg := tr.Chg5Min("TSLA")
	require.NotNil(t, chg)
	assert.InDelta(t, 5.0, *chg, 0.01)
}

func TestPriceWindowTracker_InterpolatesBetweenSamples(t *testing.T) {
	tr := NewPriceWindowTracker()
	base := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)

	tr.Update("TSLA", base, 100)
	tr.Update("TSLA", base.Add(4*time.Minute), 120)
	tr.Update("TSLA", base.Add(6*time.Minute), 140)
	tr.Update("TSLA", base.Add(10*time.Minute), 200)

	// 5 min ago from latest (10min mark) = 5min mark, between the 4min (120)
	// and 6min (140) samples -> interpolated to 130.
	chg := tr.Chg5Min("TSLA")
	require.NotNil(t, chg)
	assert.InDelta(t, (200.0-130.0)/130.0*100, *chg, 0.01)
}

func TestVWAPCache_ZeroPreservesPrevious(t *testing.T) {
	c := NewVWAPCache()
	c.Update("MSFT", 305.5)
	c.Update("MSFT", 0)

	v := c.Get("MSFT")
	require.NotNil(t, v)
	assert.Equal(t, 305.5, *v)
}

func TestVWAPCache_MissingReturnsNil(t *testing.T) {
	c := NewVWAPCache()
	assert.Nil(t, c.Get("NFLX"))
}

func TestVWAPCache_Reset(t *testing.T) {
	c := NewVWAPCache()
	c.Update("MSFT", 305.5)
	c.Reset()
	assert.Nil(t, c.Get("MSFT"))
}
