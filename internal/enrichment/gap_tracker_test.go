package enrichment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/equiscan/internal/domain"
)

func f(v float64) *float64 { return &v }

func TestGapTracker_LatchesOnPreMarketToMarketOpenTransition(t *testing.T) {
	tr := NewGapTracker()
	now := time.Now()

	openGap, _, _ := tr.Observe("AAPL", domain.SessionPreMarket, f(10.0), now)
	assert.Nil(t, openGap)

	openGap, _, _ = tr.Observe("AAPL", domain.SessionMarketOpen, f(8.5), now.Add(time.Minute))
	require.NotNil(t, openGap)
	assert.Equal(t, 8.5, *openGap)
}

func TestGapTracker_LatchOnlyOnFirstTransition(t *testing.T) {
	tr := NewGapTracker()
	now := time.Now()

	tr.Observe("AAPL", domain.SessionPreMarket, f(10.0), now)
	tr.Observe("AAPL", domain.SessionMarketOpen, f(8.5), now.Add(time.Minute))
	openGap, _, _ := tr.Observe("AAPL", domain.SessionMarketOpen, f(20.0), now.Add(2*time.Minute))

	require.NotNil(t, openGap)
	assert.Equal(t, 8.5, *openGap, "latch must not move after the initial transition tick")
}

func TestGapTracker_NoTransitionNoLatch(t *testing.T) {
	tr := NewGapTracker()
	now := time.Now()
	openGap, _, _ := tr.Observe("AAPL", domain.SessionMarketOpen, f(5.0), now)
	assert.Nil(t, openGap)
}

func TestGapTracker_TracksPreMarketPeakAndRunningMax(t *testing.T) {
	tr := NewGapTracker()
	now := time.Now()

	_, peak, runMax := tr.Observe("AAPL", domain.SessionPreMarket, f(3.0), now)
	assert.Equal(t, 3.0, peak)
	assert.Equal(t, 3.0, runMax)

	_, peak, runMax = tr.Observe("AAPL", domain.SessionPreMarket, f(-7.0), now.Add(time.Minute))
	assert.Equal(t, 7.0, peak)
	assert.Equal(t, 7.0, runMax)
}

func TestGapTracker_Reset(t *testing.T) {
	tr := NewGapTracker()
	now := time.Now()
	tr.Observe("AAPL", domain.SessionPreMarket, f(10.0), now)
	tr.Observe("AAPL", domain.SessionMarketOpen, f(8.5), now.Add(time.Minute))

	tr.Reset()

	openGap, _, _ := tr.Observe("AAPL", domain.SessionMarketOpen, f(1.0), now.Add(2*time.Minute))
	assert.Nil(t, openGap, "after reset a bare MARKET_OPEN observation with no prior PRE_MARKET tick must not latch")
}

func TestIntradayTracker_ExpandsRange(t *testing.T) {
	tr := NewIntradayTracker()
	tr.Observe("AAPL", 100)
	high, low := tr.Observe("AAPL", 105)
	assert.Equal(t, 105.0, high)
	assert.Equal(t, 100.0, low)

	high, low = tr.Observe("AAPL", 95)
	assert.Equal(t, 105.0, high)
	assert.Equal(t, 95.0, low)
}

func TestIntradayTracker_ObserveBarReinforces(t *testing.T) {
	tr := NewIntradayTracker()
	tr.Observe("AAPL", 100)
	tr.ObserveBar("AAPL", 110, 90)
	high, low := tr.Observe("AAPL", 100)
	assert.Equal(t, 110.0, high)
	assert.Equal(t, 90.0, low)
}

func TestIntradayTracker_Reset(t *testing.T) {
	tr := NewIntradayTracker()
	tr.Observe("AAPL", 100)
	tr.Reset()
	high, low := tr.Observe("AAPL", 50)
	assert.Equal(t, 50.0, high)
	assert.Equal(t, 50.0, low)
}
