package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_PreservesCallOrder(t *testing.T) {
	noop := func(ctx context.Context, date time.Time) error { return nil }
	r := NewRegistry(
		Task{Name: "first", Run: noop},
		Task{Name: "second", Run: noop},
		Task{Name: "third", Run: noop},
	)

	assert.Equal(t, []string{"first", "second", "third"}, r.Names())
}

func TestRegistry_ByName(t *testing.T) {
	noop := func(ctx context.Context, date time.Time) error { return nil }
	r := NewRegistry(Task{Name: "clear_caches", Run: noop})

	task, ok := r.ByName("clear_caches")
	assert.True(t, ok)
	assert.Equal(t, "clear_caches", task.Name)

	_, ok = r.ByName("missing")
	assert.False(t, ok)
}

func TestNewTasks_MatchesSpecifiedOrder(t *testing.T) {
	registry := NewTasks(Deps{})
	assert.Equal(t, []string{
		"clear_caches",
		"load_ohlc",
		"load_volume_slots",
		"calculate_atr",
		"calculate_rvol_averages",
		"calculate_trades_baselines",
		"sync_ticker_universe",
		"enrich_metadata",
		"reconcile_splits",
		"reconcile_parquet_splits",
		"export_screener_metadata",
		"sync_redis",
		"notify_services",
	}, registry.Names())
}
