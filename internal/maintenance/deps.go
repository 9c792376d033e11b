package maintenance

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/equiscan/internal/events"
	"github.com/aristath/equiscan/internal/marketdata"
	"github.com/aristath/equiscan/internal/warehouse"
	"github.com/aristath/equiscan/pkg/formulas"
)

// The interfaces below are deliberately narrow, one per collaborator,
// following the teacher's scheduler/interfaces.go pattern: each task
// closure in tasks.go depends only on the methods it actually calls, so
// tests can exercise a task against a hand-written fake instead of a
// live Postgres/Redis/vendor HTTP connection.

// DailyBarStore is the subset of Warehouse daily-bar operations the
// OHLC, ATR and split-reconciliation tasks need.
type DailyBarStore interface {
	UpsertDailyBar(ctx context.Context, bar *warehouse.MarketDataDaily) error
	HasDailyBar(ctx context.Context, symbol string, date time.Time) (bool, error)
	GetDailyBar(ctx context.Context, symbol string, date time.Time) (*warehouse.MarketDataDaily, error)
	RecentDailyBars(ctx context.Context, symbol string, n int) ([]warehouse.MarketDataDaily, error)
	ReverseAdjustForSplit(ctx context.Context, symbol string, effective time.Time, factor float64) error
}

// VolumeSlotStore is the subset of Warehouse slot operations the
// volume-loading and baseline-calculation tasks need.
type VolumeSlotStore interface {
	BulkInsertVolumeSlots(ctx context.Context, rows []warehouse.VolumeSlot) error
	CountVolumeSlots(ctx context.Context, date time.Time) (int64, error)
	DeleteVolumeSlotsForDate(ctx context.Context, date time.Time) error
	ComputeRVOLBaselines(ctx context.Context, asOf time.Time, lookbackDays int) ([]warehouse.SlotBaseline, error)
	RecentDailyTradeCounts(ctx context.Context, asOf time.Time, lookbackDays int) ([]warehouse.DailyTradeCount, error)
}

// TickerStore is the subset of Warehouse ticker operations the
// universe-sync, metadata-enrichment and export tasks need.
type TickerStore interface {
	UpsertTicker(ctx context.Context, t *warehouse.TickerUnified) error
	UpsertTickers(ctx context.Context, rows []warehouse.TickerUnified) error
	GetTicker(ctx context.Context, symbol string) (*warehouse.TickerUnified, error)
	ActiveSymbols(ctx context.Context) ([]string, error)
	AllTickers(ctx context.Context) ([]warehouse.TickerUnified, error)
}

// VendorFetcher is the subset of VendorClient the maintenance tasks
// call; the hot-path ingestors use the concrete type directly.
type VendorFetcher interface {
	FetchDailyBars(ctx context.Context, date time.Time) ([]marketdata.DailyBar, error)
	FetchAggregateBars(ctx context.Context, symbol string, date time.Time, slotMinutes int) ([]marketdata.AggregateBar, error)
	FetchTickerDetails(ctx context.Context, symbol string) (*marketdata.TickerDetails, error)
	FetchTickerList(ctx context.Context) ([]marketdata.TickerListing, error)
	FetchSplits(ctx context.Context, since time.Time) ([]marketdata.TickerSplit, error)
}

// ATRWriter mirrors a freshly computed ATR reading into the Bus.
type ATRWriter interface {
	Set(ctx context.Context, symbol string, atr, atrPercent float64, ttl time.Duration) error
}

// RVOLWriter mirrors a freshly computed RVOL slot baseline into the Bus.
type RVOLWriter interface {
	SetBaseline(ctx context.Context, symbol, slotKey string, meanVolume float64, ttl time.Duration) error
}

// TradeBaselineWriter mirrors a freshly computed trade-count baseline
// into the Bus.
type TradeBaselineWriter interface {
	SetBaseline(ctx context.Context, symbol string, baseline formulas.Baseline, ttl time.Duration) error
}

// BusStore is the narrow slice of Bus operations clear_caches,
// sync_redis and notify_services need directly (everything else goes
// through one of the typed writers above).
type BusStore interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, ttl time.Duration, members ...interface{}) error
	SMembers(ctx context.Context, key string) ([]string, error)
	Publish(ctx context.Context, channel string, message interface{}) error
}

// TaskConfig carries the configuration surface (spec §6) the task
// bodies read: cadences, thresholds, and the two maintenance-only
// fields (ParquetDir, MinVolumeSlotRows).
type TaskConfig struct {
	SlotMinutes       int
	ATRPeriod         int
	RVOLLookbackDays  int
	TradesBaselineDays int
	MinVolumeSlotRows int
	ParquetDir        string
}

// Deps bundles every collaborator the 13 task closures need. Each field
// is an interface so Orchestrator tests can substitute fakes.
type Deps struct {
	Daily         DailyBarStore
	VolumeSlots   VolumeSlotStore
	Tickers       TickerStore
	Vendor        VendorFetcher
	Bus           BusStore
	ATR           ATRWriter
	RVOL          RVOLWriter
	TradeBaseline TradeBaselineWriter
	Events        *events.Bus
	Config        TaskConfig
	Log           zerolog.Logger
}
