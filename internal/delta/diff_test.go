package delta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/equiscan/internal/domain"
)

func f(v float64) *float64 { return &v }

func TestDiff_DetectsAddsAndRemoves(t *testing.T) {
	old := []domain.EnrichedTicker{{Symbol: "AAPL"}, {Symbol: "MSFT"}}
	next := []domain.EnrichedTicker{{Symbol: "MSFT"}, {Symbol: "TSLA"}}

	records := Diff(old, next)

	var actions []Action
	for _, r := range records {
		actions = append(actions, r.Action)
	}
	assert.Equal(t, []Action{ActionRemove, ActionAdd, ActionRerank}, actions)
}

func TestDiff_RerankOnPositionChange(t *testing.T) {
	old := []domain.EnrichedTicker{{Symbol: "A"}, {Symbol: "B"}}
	next := []domain.EnrichedTicker{{Symbol: "B"}, {Symbol: "A"}}

	records := Diff(old, next)

	reranks := filterByAction(records, ActionRerank)
	require.Len(t, reranks, 2)
}

func TestDiff_UpdateOnPriceChangeAboveThreshold(t *testing.T) {
	old := []domain.EnrichedTicker{{Symbol: "AAPL", Price: 100.00}}
	next := []domain.EnrichedTicker{{Symbol: "AAPL", Price: 100.02}}

	records := Diff(old, next)
	updates := filterByAction(records, ActionUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, "AAPL", updates[0].Symbol)
}

func TestDiff_NoUpdateWhenChangeBelowAllThresholds(t *testing.T) {
	old := []domain.EnrichedTicker{{Symbol: "AAPL", Price: 100.00, VolumeToday: 1000, ChangeTotal: f(1.0), RVOL: f(2.0)}}
	next := []domain.EnrichedTicker{{Symbol: "AAPL", Price: 100.001, VolumeToday: 1000.5, ChangeTotal: f(1.001), RVOL: f(2.01)}}

	records := Diff(old, next)
	assert.Empty(t, filterByAction(records, ActionUpdate))
}

func TestDiff_UpdateOnRVOLChange(t *testing.T) {
	old := []domain.EnrichedTicker{{Symbol: "AAPL", RVOL: f(2.0)}}
	next := []domain.EnrichedTicker{{Symbol: "AAPL", RVOL: f(2.1)}}

	records := Diff(old, next)
	assert.Len(t, filterByAction(records, ActionUpdate), 1)
}

func TestDiff_RecordOrderIsRemovesAddsReranksUpdates(t *testing.T) {
	old := []domain.EnrichedTicker{
		{Symbol: "REMOVED"},
		{Symbol: "A", Price: 1},
		{Symbol: "B", Price: 1},
	}
	next := []domain.EnrichedTicker{
		{Symbol: "B", Price: 1},
		{Symbol: "A", Price: 2},
		{Symbol: "ADDED"},
	}

	records := Diff(old, next)
	require.NotEmpty(t, records)

	seenRerank, seenUpdate := false, false
	lastAction := ActionRemove
	order := map[Action]int{ActionRemove: 0, ActionAdd: 1, ActionRerank: 2, ActionUpdate: 3}
	for _, r := range records {
		assert.GreaterOrEqual(t, order[r.Action], order[lastAction])
		lastAction = r.Action
		if r.Action == ActionRerank {
			seenRerank = true
		}
		if r.Action == ActionUpdate {
			seenUpdate = true
		}
	}
	assert.True(t, seenRerank)
	assert.True(t, seenUpdate)
}

func TestDiff_Idempotent(t *testing.T) {
	old := []domain.EnrichedTicker{{Symbol: "A"}, {Symbol: "B"}}
	next := []domain.EnrichedTicker{{Symbol: "B"}, {Symbol: "C"}}

	first := Diff(old, next)
	second := Diff(old, next)
	assert.Equal(t, first, second)
}

func filterByAction(records []Record, action Action) []Record {
	var out []Record
	for _, r := range records {
		if r.Action == action {
			out = append(out, r)
		}
	}
	return out
}
