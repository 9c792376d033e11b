package warehouse

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWarehouse(t *testing.T) *Warehouse {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping Warehouse integration test")
	}
	w, err := Connect(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWarehouse_UpsertAndGetTicker(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()

	ticker := &TickerUnified{
		Symbol:            "TEST",
		CompanyName:       "Test Co",
		Exchange:          "XNAS",
		MarketCap:         1_000_000,
		IsActivelyTrading: true,
	}
	require.NoError(t, w.UpsertTicker(ctx, ticker))

	got, err := w.GetTicker(ctx, "TEST")
	require.NoError(t, err)
	assert.Equal(t, "Test Co", got.CompanyName)

	symbols, err := w.ActiveSymbols(ctx)
	require.NoError(t, err)
	assert.Contains(t, symbols, "TEST")
}

func TestWarehouse_DailyBarIdempotency(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()
	date := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	bar := &MarketDataDaily{Symbol: "TEST", TradingDate: date, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1000}
	require.NoError(t, w.UpsertDailyBar(ctx, bar))

	has, err := w.HasDailyBar(ctx, "TEST", date)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, w.UpsertDailyBar(ctx, bar))
	rows, err := w.RecentDailyBars(ctx, "TEST", 5)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWarehouse_EnabledFiltersExcludesDisabled(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()

	require.NoError(t, w.UpsertFilter(ctx, &ScannerFilter{Name: "test_enabled", Enabled: true, Priority: 1}))
	require.NoError(t, w.UpsertFilter(ctx, &ScannerFilter{Name: "test_disabled", Enabled: false, Priority: 2}))

	rows, err := w.EnabledFilters(ctx)
	require.NoError(t, err)

	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "test_enabled")
	assert.NotContains(t, names, "test_disabled")
}
