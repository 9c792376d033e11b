package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/equiscan/internal/domain"
)

func TestCategorize_GappersUpAndDown(t *testing.T) {
	rows := []domain.EnrichedTicker{
		{Symbol: "UP", GapFromPrevClose: ptr(3.0)},
		{Symbol: "DOWN", GapFromPrevClose: ptr(-3.0)},
		{Symbol: "FLAT", GapFromPrevClose: ptr(0.5)},
	}

	buckets := Categorize(rows, 20)

	up := buckets[domain.CategoryGappersUp]
	require.Len(t, up, 1)
	assert.Equal(t, "UP", up[0].Symbol)

	down := buckets[domain.CategoryGappersDown]
	require.Len(t, down, 1)
	assert.Equal(t, "DOWN", down[0].Symbol)
}

func TestCategorize_MomentumUpRequiresAllFourConditions(t *testing.T) {
	qualifies := domain.EnrichedTicker{
		Symbol: "MOMO", Chg5Min: ptr(2.0), Price: 100, IntradayHigh: 100, VWAP: ptr(95.0), RVOL: ptr(6.0),
	}
	missingRVOL := qualifies
	missingRVOL.Symbol = "NOMO"
	missingRVOL.RVOL = ptr(1.0)

	buckets := Categorize([]domain.EnrichedTicker{qualifies, missingRVOL}, 20)

	momentum := buckets[domain.CategoryMomentumUp]
	require.Len(t, momentum, 1)
	assert.Equal(t, "MOMO", momentum[0].Symbol)
}

func TestCategorize_ANewHighsSortedByProximityAscending(t *testing.T) {
	rows := []domain.EnrichedTicker{
		{Symbol: "FAR", Price: 99.92, IntradayHigh: 100},
		{Symbol: "NEAR", Price: 99.95, IntradayHigh: 100},
	}

	buckets := Categorize(rows, 20)
	highs := buckets[domain.CategoryNewHighs]
	require.Len(t, highs, 2)
	assert.Equal(t, "NEAR", highs[0].Symbol)
}

func TestCategorize_PostMarketRequiresSessionAndThreshold(t *testing.T) {
	rows := []domain.EnrichedTicker{
		{Symbol: "PM1", Session: domain.SessionPostMarket, PMVolume: 25_000},
		{Symbol: "PM2", Session: domain.SessionMarketOpen, PMVolume: 999_999},
	}

	buckets := Categorize(rows, 20)
	pm := buckets[domain.CategoryPostMarket]
	require.Len(t, pm, 1)
	assert.Equal(t, "PM1", pm[0].Symbol)
}

func TestCategorize_RowCanBelongToMultipleCategories(t *testing.T) {
	rows := []domain.EnrichedTicker{
		{Symbol: "MULTI", GapFromPrevClose: ptr(3.0), ChangeTotal: ptr(6.0), RVOL: ptr(3.0)},
	}

	buckets := Categorize(rows, 20)

	require.Len(t, buckets[domain.CategoryGappersUp], 1)
	assert.Equal(t, "MULTI", buckets[domain.CategoryGappersUp][0].Symbol)

	require.Len(t, buckets[domain.CategoryWinners], 1)
	assert.ElementsMatch(t, buckets[domain.CategoryWinners][0].Categories,
		[]domain.Category{domain.CategoryGappersUp, domain.CategoryWinners, domain.CategoryHighVolume})
}

func TestCategorize_LimitClampedToDefaultAndHardCap(t *testing.T) {
	rows := make([]domain.EnrichedTicker, 5)
	for i := range rows {
		rows[i] = domain.EnrichedTicker{Symbol: string(rune('A' + i)), GapFromPrevClose: ptr(3.0)}
	}

	buckets := Categorize(rows, 2)
	assert.Len(t, buckets[domain.CategoryGappersUp], 2)

	bucketsDefault := Categorize(rows, 0)
	assert.Len(t, bucketsDefault[domain.CategoryGappersUp], 5)

	many := make([]domain.EnrichedTicker, domain.MaxCategoryLimit+5)
	for i := range many {
		many[i] = domain.EnrichedTicker{Symbol: "S", GapFromPrevClose: ptr(3.0)}
	}
	bucketsCapped := Categorize(many, domain.MaxCategoryLimit+5)
	assert.Len(t, bucketsCapped[domain.CategoryGappersUp], domain.MaxCategoryLimit)
}
