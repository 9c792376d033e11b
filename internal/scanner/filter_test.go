package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/equiscan/internal/domain"
)

func sampleTicker() *domain.EnrichedTicker {
	return &domain.EnrichedTicker{
		Symbol:       "AAPL",
		Price:        10,
		VolumeToday:  100_000,
		AvgVolume30D: 50_000,
		RVOL:         ptr(2.0),
		Sector:       "Technology",
		Exchange:     "NASDAQ",
	}
}

func TestCheckMinMax_NoBoundsAlwaysPasses(t *testing.T) {
	assert.True(t, checkMinMax(nil, nil, nil, false))
}

func TestCheckMinMax_NilTickerRespectsAllowNil(t *testing.T) {
	assert.True(t, checkMinMax(nil, ptr(1), nil, true))
	assert.False(t, checkMinMax(nil, ptr(1), nil, false))
}

func TestCheckMinMax_EnforcesMinAndMax(t *testing.T) {
	assert.False(t, checkMinMax(ptr(5), ptr(6), nil, false))
	assert.False(t, checkMinMax(ptr(5), nil, ptr(4), false))
	assert.True(t, checkMinMax(ptr(5), ptr(4), ptr(6), false))
}

func TestFilter_DisabledAlwaysPasses(t *testing.T) {
	f := Filter{Enabled: false, Parameters: FilterParameters{MinPrice: ptr(1000)}}
	assert.True(t, f.Passes(sampleTicker(), domain.SessionMarketOpen))
}

func TestFilter_SessionNotApplicableAlwaysPasses(t *testing.T) {
	f := Filter{
		Enabled:    true,
		Sessions:   []domain.Session{domain.SessionPreMarket},
		Parameters: FilterParameters{MinPrice: ptr(1000)},
	}
	assert.True(t, f.Passes(sampleTicker(), domain.SessionMarketOpen))
}

func TestFilter_RejectsOnFailingMinPrice(t *testing.T) {
	f := Filter{
		Enabled:    true,
		Parameters: FilterParameters{MinPrice: ptr(1000)},
	}
	assert.False(t, f.Passes(sampleTicker(), domain.SessionMarketOpen))
}

func TestFilter_RVOLNilTickerValuePassesByDefault(t *testing.T) {
	ticker := sampleTicker()
	ticker.RVOL = nil
	f := Filter{Enabled: true, Parameters: FilterParameters{MinRVOL: ptr(5.0)}}
	assert.True(t, f.Passes(ticker, domain.SessionPreMarket), "unknown RVOL in early pre-market must not reject the row")
}

func TestFilter_SectorWhitelist(t *testing.T) {
	f := Filter{Enabled: true, Parameters: FilterParameters{Sectors: []string{"Healthcare"}}}
	assert.False(t, f.Passes(sampleTicker(), domain.SessionMarketOpen))
}

func TestFilter_PostMarketOnlyBoundsIgnoredOutsidePostMarket(t *testing.T) {
	f := Filter{Enabled: true, Parameters: FilterParameters{MinPostMarketVolume: ptr(1_000_000)}}
	assert.True(t, f.Passes(sampleTicker(), domain.SessionMarketOpen))
}

func TestFilter_PostMarketOnlyBoundsEnforcedDuringPostMarket(t *testing.T) {
	f := Filter{Enabled: true, Parameters: FilterParameters{MinPostMarketVolume: ptr(1_000_000)}}
	assert.False(t, f.Passes(sampleTicker(), domain.SessionPostMarket))
}

func TestEngine_PassesAll_EarlyExitsOnFirstFailure(t *testing.T) {
	e := NewEngine([]Filter{
		{Enabled: true, Parameters: FilterParameters{MinPrice: ptr(1)}},
		{Enabled: true, Parameters: FilterParameters{MinPrice: ptr(1000)}},
	})
	assert.False(t, e.PassesAll(sampleTicker(), domain.SessionMarketOpen))
}

func TestEngine_Reload(t *testing.T) {
	e := NewEngine([]Filter{{Enabled: true, Parameters: FilterParameters{MinPrice: ptr(1000)}}})
	assert.False(t, e.PassesAll(sampleTicker(), domain.SessionMarketOpen))

	e.Reload(nil)
	assert.True(t, e.PassesAll(sampleTicker(), domain.SessionMarketOpen))
}
