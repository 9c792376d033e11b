package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/equiscan/internal/marketdata"
	"github.com/aristath/equiscan/internal/warehouse"
)

// fakeBus is a minimal in-memory BusStore for task tests.
type fakeBus struct {
	deleted   []string
	published map[string]interface{}
	sets      map[string]interface{}
	sadds     map[string][]interface{}
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: make(map[string]interface{}), sets: make(map[string]interface{}), sadds: make(map[string][]interface{})}
}

func (b *fakeBus) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b.sets[key] = value
	return nil
}
func (b *fakeBus) Delete(_ context.Context, keys ...string) error {
	b.deleted = append(b.deleted, keys...)
	return nil
}
func (b *fakeBus) SAdd(_ context.Context, key string, _ time.Duration, members ...interface{}) error {
	b.sadds[key] = append(b.sadds[key], members...)
	return nil
}
func (b *fakeBus) SMembers(_ context.Context, key string) ([]string, error) { return nil, nil }
func (b *fakeBus) Publish(_ context.Context, channel string, message interface{}) error {
	b.published[channel] = message
	return nil
}

// fakeDailyStore is a minimal in-memory DailyBarStore.
type fakeDailyStore struct {
	bars      map[string]map[string]warehouse.MarketDataDaily // symbol -> date -> bar
	adjusted  []string                                        // "symbol@factor" records
}

func newFakeDailyStore() *fakeDailyStore {
	return &fakeDailyStore{bars: make(map[string]map[string]warehouse.MarketDataDaily)}
}

func (s *fakeDailyStore) UpsertDailyBar(_ context.Context, bar *warehouse.MarketDataDaily) error {
	key := bar.TradingDate.Format("2006-01-02")
	if s.bars[bar.Symbol] == nil {
		s.bars[bar.Symbol] = make(map[string]warehouse.MarketDataDaily)
	}
	s.bars[bar.Symbol][key] = *bar
	return nil
}
func (s *fakeDailyStore) HasDailyBar(_ context.Context, symbol string, date time.Time) (bool, error) {
	_, ok := s.bars[symbol][date.Format("2006-01-02")]
	return ok, nil
}
func (s *fakeDailyStore) GetDailyBar(_ context.Context, symbol string, date time.Time) (*warehouse.MarketDataDaily, error) {
	bar, ok := s.bars[symbol][date.Format("2006-01-02")]
	if !ok {
		return nil, errors.New("not found")
	}
	return &bar, nil
}
func (s *fakeDailyStore) RecentDailyBars(_ context.Context, symbol string, n int) ([]warehouse.MarketDataDaily, error) {
	return nil, nil
}
func (s *fakeDailyStore) ReverseAdjustForSplit(_ context.Context, symbol string, effective time.Time, factor float64) error {
	s.adjusted = append(s.adjusted, symbol)
	return nil
}

// fakeTickerStore is a minimal in-memory TickerStore.
type fakeTickerStore struct {
	rows map[string]warehouse.TickerUnified
}

func newFakeTickerStore() *fakeTickerStore {
	return &fakeTickerStore{rows: make(map[string]warehouse.TickerUnified)}
}

func (s *fakeTickerStore) UpsertTicker(_ context.Context, t *warehouse.TickerUnified) error {
	s.rows[t.Symbol] = *t
	return nil
}
func (s *fakeTickerStore) UpsertTickers(_ context.Context, rows []warehouse.TickerUnified) error {
	for _, t := range rows {
		s.rows[t.Symbol] = t
	}
	return nil
}
func (s *fakeTickerStore) GetTicker(_ context.Context, symbol string) (*warehouse.TickerUnified, error) {
	t, ok := s.rows[symbol]
	if !ok {
		return nil, errors.New("not found")
	}
	return &t, nil
}
func (s *fakeTickerStore) ActiveSymbols(_ context.Context) ([]string, error) {
	var symbols []string
	for sym, t := range s.rows {
		if t.IsActivelyTrading {
			symbols = append(symbols, sym)
		}
	}
	return symbols, nil
}
func (s *fakeTickerStore) AllTickers(_ context.Context) ([]warehouse.TickerUnified, error) {
	var rows []warehouse.TickerUnified
	for _, t := range s.rows {
		rows = append(rows, t)
	}
	return rows, nil
}

// fakeVendor is a minimal VendorFetcher.
type fakeVendor struct {
	dailyBars []marketdata.DailyBar
	splits    []marketdata.TickerSplit
	listings  []marketdata.TickerListing
}

func (v *fakeVendor) FetchDailyBars(_ context.Context, _ time.Time) ([]marketdata.DailyBar, error) {
	return v.dailyBars, nil
}
func (v *fakeVendor) FetchAggregateBars(_ context.Context, _ string, _ time.Time, _ int) ([]marketdata.AggregateBar, error) {
	return nil, nil
}
func (v *fakeVendor) FetchTickerDetails(_ context.Context, symbol string) (*marketdata.TickerDetails, error) {
	return &marketdata.TickerDetails{Symbol: symbol, Active: true}, nil
}
func (v *fakeVendor) FetchTickerList(_ context.Context) ([]marketdata.TickerListing, error) {
	return v.listings, nil
}
func (v *fakeVendor) FetchSplits(_ context.Context, _ time.Time) ([]marketdata.TickerSplit, error) {
	return v.splits, nil
}

func TestClearCaches_DeletesOwnedKeysAndPublishesNewDay(t *testing.T) {
	bus := newFakeBus()
	d := Deps{Bus: bus, Log: zerolog.Nop()}

	err := d.clearCaches(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Contains(t, bus.deleted, marketdata.LatestSnapshotKey)
	assert.Contains(t, bus.published, "trading:new_day")
}

func TestLoadOHLC_SkipsSymbolsAlreadyLoaded(t *testing.T) {
	daily := newFakeDailyStore()
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	daily.UpsertDailyBar(context.Background(), &warehouse.MarketDataDaily{Symbol: "AAPL", TradingDate: date, Close: 100})

	vendor := &fakeVendor{dailyBars: []marketdata.DailyBar{
		{Symbol: "AAPL", Close: 999}, // already loaded, must not be overwritten
		{Symbol: "MSFT", Close: 50},
	}}
	d := Deps{Daily: daily, Vendor: vendor, Log: zerolog.Nop()}

	err := d.loadOHLC(context.Background(), date)

	require.NoError(t, err)
	assert.Equal(t, 100.0, daily.bars["AAPL"][date.Format("2006-01-02")].Close, "already-loaded symbol must not be overwritten")
	assert.Equal(t, 50.0, daily.bars["MSFT"][date.Format("2006-01-02")].Close)
}

func TestReconcileSplits_SkipsUnityFactor(t *testing.T) {
	daily := newFakeDailyStore()
	vendor := &fakeVendor{splits: []marketdata.TickerSplit{
		{Symbol: "AAPL", SplitFrom: 1, SplitTo: 1, ExecutionDate: time.Now()},
		{Symbol: "QQQQ", SplitFrom: 10, SplitTo: 1, ExecutionDate: time.Now()},
	}}
	d := Deps{Daily: daily, Vendor: vendor, Log: zerolog.Nop()}

	err := d.reconcileSplits(context.Background(), time.Now())

	require.NoError(t, err)
	assert.NotContains(t, daily.adjusted, "AAPL")
	assert.Contains(t, daily.adjusted, "QQQQ")
}

func TestSyncTickerUniverse_DeactivatesDelistedSymbols(t *testing.T) {
	tickers := newFakeTickerStore()
	tickers.rows["OLD"] = warehouse.TickerUnified{Symbol: "OLD", IsActivelyTrading: true}

	vendor := &fakeVendor{listings: []marketdata.TickerListing{
		{Symbol: "NEW", CompanyName: "New Co", Active: true},
	}}
	d := Deps{Tickers: tickers, Vendor: vendor, Log: zerolog.Nop()}

	err := d.syncTickerUniverse(context.Background(), time.Now())

	require.NoError(t, err)
	assert.True(t, tickers.rows["NEW"].IsActivelyTrading)
	assert.False(t, tickers.rows["OLD"].IsActivelyTrading, "delisted symbol must be deactivated")
}
