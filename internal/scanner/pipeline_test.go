package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/equiscan/internal/domain"
)

func TestFilterAndScore_SortsByScoreDescendingThenSymbol(t *testing.T) {
	rows := []domain.EnrichedTicker{
		{Symbol: "BBBB", RVOL: ptr(1.0)},
		{Symbol: "AAAA", RVOL: ptr(1.0)},
		{Symbol: "CCCC", RVOL: ptr(5.0)},
	}
	engine := NewEngine(nil)

	out := FilterAndScore(engine, rows, domain.SessionMarketOpen, 0)

	require.Len(t, out, 3)
	assert.Equal(t, "CCCC", out[0].Symbol)
	assert.Equal(t, 1, out[0].Rank)
	assert.Equal(t, "AAAA", out[1].Symbol, "ties broken by symbol ascending")
	assert.Equal(t, "BBBB", out[2].Symbol)
}

func TestFilterAndScore_DropsRowsFailingFilters(t *testing.T) {
	rows := []domain.EnrichedTicker{
		{Symbol: "AAAA", Price: 0.1},
		{Symbol: "BBBB", Price: 100},
	}
	engine := NewEngine([]Filter{{Enabled: true, Parameters: FilterParameters{MinPrice: ptr(1)}}})

	out := FilterAndScore(engine, rows, domain.SessionMarketOpen, 0)

	require.Len(t, out, 1)
	assert.Equal(t, "BBBB", out[0].Symbol)
}

func TestFilterAndScore_CapsAtMaxEmitted(t *testing.T) {
	rows := make([]domain.EnrichedTicker, 10)
	for i := range rows {
		rows[i] = domain.EnrichedTicker{Symbol: string(rune('A' + i))}
	}
	engine := NewEngine(nil)

	out := FilterAndScore(engine, rows, domain.SessionMarketOpen, 3)

	assert.Len(t, out, 3)
}
