package maintenance

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aristath/equiscan/internal/delta"
	"github.com/aristath/equiscan/internal/domain"
	"github.com/aristath/equiscan/internal/marketdata"
	"github.com/aristath/equiscan/internal/reconcile"
	"github.com/aristath/equiscan/internal/warehouse"
	"github.com/aristath/equiscan/pkg/formulas"
)

const (
	atrCacheTTL   = 24 * time.Hour
	rvolCacheTTL  = 24 * time.Hour
	tradesBaselineTTL = 14 * time.Hour

	volumeSlotFlushSize = 1000

	parquetSplitTolerance     = 0.10
	vendorFactorWarnTolerance = 0.05
	splitLookbackDays         = 14
)

// NewTasks builds the fixed 13-task registry (spec §4.9), each closure
// bound to d. Order matters: it is itself part of the specification, not
// an implementation detail Registry infers.
func NewTasks(d Deps) *Registry {
	return NewRegistry(
		Task{Name: "clear_caches", Run: d.clearCaches},
		Task{Name: "load_ohlc", Run: d.loadOHLC},
		Task{Name: "load_volume_slots", Run: d.loadVolumeSlots},
		Task{Name: "calculate_atr", Run: d.calculateATR},
		Task{Name: "calculate_rvol_averages", Run: d.calculateRVOLAverages},
		Task{Name: "calculate_trades_baselines", Run: d.calculateTradesBaselines},
		Task{Name: "sync_ticker_universe", Run: d.syncTickerUniverse},
		Task{Name: "enrich_metadata", Run: d.enrichMetadata},
		Task{Name: "reconcile_splits", Run: d.reconcileSplits},
		Task{Name: "reconcile_parquet_splits", Run: d.reconcileParquetSplits},
		Task{Name: "export_screener_metadata", Run: d.exportScreenerMetadata},
		Task{Name: "sync_redis", Run: d.syncRedis},
		Task{Name: "notify_services", Run: d.notifyServices},
	)
}

// clearCaches deletes the realtime snapshot/ranking keys this process
// owns and publishes trading:new_day (spec §4.9 step 1). Separately
// triggered at 03:00 ET, and run again as step 1 of the full graph.
func (d Deps) clearCaches(ctx context.Context, _ time.Time) error {
	keys := []string{marketdata.LatestSnapshotKey, reconcile.ActiveSymbolsKey}
	for _, c := range domain.AllCategories {
		keys = append(keys, delta.RankingKey(c))
	}
	if err := d.Bus.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("clear_caches: %w", err)
	}
	return d.Bus.Publish(ctx, "trading:new_day", map[string]string{"date": time.Now().Format("2006-01-02")})
}

// loadOHLC pulls the prior day's grouped-daily bars and upserts any
// symbol not already complete for date (spec §4.9 step 2, idempotent
// per spec §8 "maintenance idempotency").
func (d Deps) loadOHLC(ctx context.Context, date time.Time) error {
	bars, err := d.Vendor.FetchDailyBars(ctx, date)
	if err != nil {
		return fmt.Errorf("load_ohlc: fetch: %w", err)
	}

	var loaded int
	for _, b := range bars {
		if b.Symbol == "" {
			continue
		}
		has, err := d.Daily.HasDailyBar(ctx, b.Symbol, date)
		if err != nil {
			return fmt.Errorf("load_ohlc: check %s: %w", b.Symbol, err)
		}
		if has {
			continue
		}
		bar := &warehouse.MarketDataDaily{
			Symbol: b.Symbol, TradingDate: date,
			Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
		}
		if err := d.Daily.UpsertDailyBar(ctx, bar); err != nil {
			return fmt.Errorf("load_ohlc: upsert %s: %w", b.Symbol, err)
		}
		loaded++
	}

	d.Log.Info().Int("loaded", loaded).Int("total", len(bars)).Str("date", date.Format("2006-01-02")).Msg("load_ohlc complete")
	return nil
}

// loadVolumeSlots pulls every active symbol's intraday bars at the
// configured slot size, replacing any existing rows for date, and fails
// if the total row count is below the minimum-records gate (spec §4.9
// step 3).
func (d Deps) loadVolumeSlots(ctx context.Context, date time.Time) error {
	symbols, err := d.Tickers.ActiveSymbols(ctx)
	if err != nil {
		return fmt.Errorf("load_volume_slots: active symbols: %w", err)
	}

	if err := d.VolumeSlots.DeleteVolumeSlotsForDate(ctx, date); err != nil {
		return fmt.Errorf("load_volume_slots: clear existing: %w", err)
	}

	var pending []warehouse.VolumeSlot
	var malformed int
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := d.VolumeSlots.BulkInsertVolumeSlots(ctx, pending); err != nil {
			return err
		}
		pending = pending[:0]
		return nil
	}

	for _, sym := range symbols {
		bars, err := d.Vendor.FetchAggregateBars(ctx, sym, date, d.Config.SlotMinutes)
		if err != nil {
			// Transient-remote retries already happened inside the HTTP
			// client; a symbol that still fails is dropped, not fatal
			// (spec §7 "malformed remote data").
			malformed++
			d.Log.Warn().Err(err).Str("symbol", sym).Msg("load_volume_slots: skipping symbol")
			continue
		}
		for _, b := range bars {
			pending = append(pending, warehouse.VolumeSlot{
				TradingDate: date, Symbol: sym, SlotTime: b.WindowStart,
				Open: b.Open, High: b.High, Low: b.Low, Close: b.Close,
				Volume: b.Volume, VWAP: b.VWAP, TradesCount: b.Trades,
			})
		}
		if len(pending) >= volumeSlotFlushSize {
			if err := flush(); err != nil {
				return fmt.Errorf("load_volume_slots: bulk insert: %w", err)
			}
		}
	}
	if err := flush(); err != nil {
		return fmt.Errorf("load_volume_slots: final bulk insert: %w", err)
	}

	count, err := d.VolumeSlots.CountVolumeSlots(ctx, date)
	if err != nil {
		return fmt.Errorf("load_volume_slots: count: %w", err)
	}
	if count < int64(d.Config.MinVolumeSlotRows) {
		return fmt.Errorf("load_volume_slots: only %d rows loaded (%d symbols skipped), want >= %d",
			count, malformed, d.Config.MinVolumeSlotRows)
	}
	return nil
}

// calculateATR refreshes the 14-day ATR cache for every active symbol
// (spec §4.9 step 4).
func (d Deps) calculateATR(ctx context.Context, _ time.Time) error {
	symbols, err := d.Tickers.ActiveSymbols(ctx)
	if err != nil {
		return fmt.Errorf("calculate_atr: active symbols: %w", err)
	}

	for _, sym := range symbols {
		bars, err := d.Daily.RecentDailyBars(ctx, sym, d.Config.ATRPeriod+1)
		if err != nil {
			d.Log.Warn().Err(err).Str("symbol", sym).Msg("calculate_atr: skipping symbol")
			continue
		}
		if len(bars) == 0 {
			continue
		}

		highs := make([]float64, len(bars))
		lows := make([]float64, len(bars))
		closes := make([]float64, len(bars))
		for i, b := range bars {
			highs[i], lows[i], closes[i] = b.High, b.Low, b.Close
		}

		atr := formulas.CalculateATR(highs, lows, closes, d.Config.ATRPeriod)
		if atr == nil {
			continue
		}
		pct := formulas.CalculateATRPercent(atr, closes[len(closes)-1])
		var p float64
		if pct != nil {
			p = *pct
		}
		if err := d.ATR.Set(ctx, sym, *atr, p, atrCacheTTL); err != nil {
			return fmt.Errorf("calculate_atr: cache %s: %w", sym, err)
		}
	}
	return nil
}

// calculateRVOLAverages rebuilds the per-(symbol, slot) cumulative
// volume baseline over the configured lookback window (spec §4.9 step
// 5).
func (d Deps) calculateRVOLAverages(ctx context.Context, date time.Time) error {
	baselines, err := d.VolumeSlots.ComputeRVOLBaselines(ctx, date, d.Config.RVOLLookbackDays)
	if err != nil {
		return fmt.Errorf("calculate_rvol_averages: %w", err)
	}
	for _, b := range baselines {
		if err := d.RVOL.SetBaseline(ctx, b.Symbol, b.SlotTime, b.AvgCumulativeVolume, rvolCacheTTL); err != nil {
			return fmt.Errorf("calculate_rvol_averages: cache %s/%s: %w", b.Symbol, b.SlotTime, err)
		}
	}
	return nil
}

// calculateTradesBaselines rebuilds the per-symbol 5-day mean/stdev of
// daily trade counts feeding the trade-anomaly Z-score (spec §4.9 step
// 6).
func (d Deps) calculateTradesBaselines(ctx context.Context, date time.Time) error {
	counts, err := d.VolumeSlots.RecentDailyTradeCounts(ctx, date, d.Config.TradesBaselineDays)
	if err != nil {
		return fmt.Errorf("calculate_trades_baselines: %w", err)
	}

	bySymbol := make(map[string][]float64)
	for _, c := range counts {
		bySymbol[c.Symbol] = append(bySymbol[c.Symbol], float64(c.Trades))
	}

	for symbol, samples := range bySymbol {
		baseline := formulas.ComputeBaseline(samples)
		if err := d.TradeBaseline.SetBaseline(ctx, symbol, baseline, tradesBaselineTTL); err != nil {
			return fmt.Errorf("calculate_trades_baselines: cache %s: %w", symbol, err)
		}
	}
	return nil
}

// syncTickerUniverse adds new listings, deactivates delistings, and
// refreshes names (spec §4.9 step 7).
func (d Deps) syncTickerUniverse(ctx context.Context, _ time.Time) error {
	listings, err := d.Vendor.FetchTickerList(ctx)
	if err != nil {
		return fmt.Errorf("sync_ticker_universe: fetch: %w", err)
	}

	seen := make(map[string]bool, len(listings))
	rows := make([]warehouse.TickerUnified, 0, len(listings))
	for _, l := range listings {
		seen[l.Symbol] = true
		rows = append(rows, warehouse.TickerUnified{
			Symbol: l.Symbol, CompanyName: l.CompanyName, Exchange: l.Exchange,
			IsActivelyTrading: l.Active,
		})
	}
	if err := d.Tickers.UpsertTickers(ctx, rows); err != nil {
		return fmt.Errorf("sync_ticker_universe: upsert: %w", err)
	}

	active, err := d.Tickers.ActiveSymbols(ctx)
	if err != nil {
		return fmt.Errorf("sync_ticker_universe: active symbols: %w", err)
	}
	for _, symbol := range active {
		if seen[symbol] {
			continue
		}
		existing, err := d.Tickers.GetTicker(ctx, symbol)
		if err != nil {
			continue
		}
		existing.IsActivelyTrading = false
		if err := d.Tickers.UpsertTicker(ctx, existing); err != nil {
			return fmt.Errorf("sync_ticker_universe: deactivate %s: %w", symbol, err)
		}
	}
	return nil
}

// enrichMetadata refreshes market cap, sector, float, etc. from the
// vendor's per-symbol reference endpoint (spec §4.9 step 8).
func (d Deps) enrichMetadata(ctx context.Context, _ time.Time) error {
	symbols, err := d.Tickers.ActiveSymbols(ctx)
	if err != nil {
		return fmt.Errorf("enrich_metadata: active symbols: %w", err)
	}

	for _, sym := range symbols {
		details, err := d.Vendor.FetchTickerDetails(ctx, sym)
		if err != nil {
			d.Log.Warn().Err(err).Str("symbol", sym).Msg("enrich_metadata: skipping symbol")
			continue
		}

		existing, err := d.Tickers.GetTicker(ctx, sym)
		if err != nil {
			existing = &warehouse.TickerUnified{Symbol: sym}
		}
		existing.CompanyName = details.CompanyName
		existing.Exchange = details.Exchange
		existing.Sector = details.Sector
		existing.Industry = details.Industry
		existing.MarketCap = details.MarketCap
		existing.SharesOutstanding = details.SharesOutstanding
		existing.IsETF = details.IsETF
		existing.IsActivelyTrading = details.Active

		if err := d.Tickers.UpsertTicker(ctx, existing); err != nil {
			return fmt.Errorf("enrich_metadata: upsert %s: %w", sym, err)
		}
	}
	return nil
}

// reconcileSplits reverse-adjusts Warehouse rows predating any split
// reported within the lookback window (spec §4.9 step 9, §8 scenario
// 4).
func (d Deps) reconcileSplits(ctx context.Context, date time.Time) error {
	since := date.AddDate(0, 0, -splitLookbackDays)
	splits, err := d.Vendor.FetchSplits(ctx, since)
	if err != nil {
		return fmt.Errorf("reconcile_splits: fetch: %w", err)
	}

	for _, s := range splits {
		factor := s.Factor()
		if factor == 0 || math.Abs(factor-1) < 1e-9 {
			continue
		}
		if err := d.Daily.ReverseAdjustForSplit(ctx, s.Symbol, s.ExecutionDate, factor); err != nil {
			return fmt.Errorf("reconcile_splits: adjust %s: %w", s.Symbol, err)
		}
	}
	return nil
}

// reconcileParquetSplits applies the same reverse-adjustment to the
// on-disk day_aggs Parquet flat files the screener sibling service
// reads, inferring the correction factor from Warehouse-vs-Parquet close
// comparison rather than trusting the vendor-declared split ratio
// outright (spec §4.9 step 10, Open Question E.3).
func (d Deps) reconcileParquetSplits(ctx context.Context, date time.Time) error {
	since := date.AddDate(0, 0, -splitLookbackDays)
	splits, err := d.Vendor.FetchSplits(ctx, since)
	if err != nil {
		return fmt.Errorf("reconcile_parquet_splits: fetch: %w", err)
	}

	for _, s := range splits {
		preSplitDay := s.ExecutionDate.AddDate(0, 0, -1)

		warehouseBar, err := d.Daily.GetDailyBar(ctx, s.Symbol, preSplitDay)
		if err != nil {
			d.Log.Warn().Str("symbol", s.Symbol).Msg("reconcile_parquet_splits: no warehouse bar for pre-split day")
			continue
		}

		parquetClose, found, err := findParquetClose(ctx, d.Config.ParquetDir, preSplitDay, s.Symbol)
		if err != nil {
			d.Log.Warn().Err(err).Str("symbol", s.Symbol).Msg("reconcile_parquet_splits: pre-split file unreadable")
			continue
		}
		if !found || parquetClose == 0 {
			continue
		}

		ratio := parquetClose / warehouseBar.Close
		if math.Abs(ratio-1) <= parquetSplitTolerance {
			continue
		}
		detectedFactor := warehouseBar.Close / parquetClose

		if declared := s.Factor(); declared != 0 && math.Abs(detectedFactor/declared-1) > vendorFactorWarnTolerance {
			d.Log.Warn().Str("symbol", s.Symbol).
				Float64("detected_factor", detectedFactor).Float64("declared_factor", declared).
				Msg("reconcile_parquet_splits: detected factor diverges from vendor-declared factor")
		}

		if err := correctParquetHistory(ctx, d.Config.ParquetDir, s.Symbol, s.ExecutionDate, detectedFactor); err != nil {
			return fmt.Errorf("reconcile_parquet_splits: correct %s: %w", s.Symbol, err)
		}
	}
	return nil
}

// findParquetClose reads one day's flat file and returns symbol's
// close, if present.
func findParquetClose(ctx context.Context, dir string, date time.Time, symbol string) (float64, bool, error) {
	path := filepath.Join(dir, date.Format("2006-01-02")+".parquet")
	rows, _, err := readParquetRows(ctx, path)
	if err != nil {
		return 0, false, err
	}
	for _, r := range rows {
		if r.Ticker == symbol {
			return r.Close, true, nil
		}
	}
	return 0, false, nil
}

// correctParquetHistory rewrites every day_aggs file in dir dated
// strictly before effective, multiplying symbol's price columns by
// factor and dividing its volume.
func correctParquetHistory(ctx context.Context, dir string, symbol string, effective time.Time, factor float64) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".parquet") {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSuffix(entry.Name(), ".parquet"))
		if err != nil || !date.Before(effective) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		rows, schema, err := readParquetRows(ctx, path)
		if err != nil {
			return err
		}

		changed := false
		for i, r := range rows {
			if r.Ticker != symbol {
				continue
			}
			rows[i].Open *= factor
			rows[i].High *= factor
			rows[i].Low *= factor
			rows[i].Close *= factor
			rows[i].VWAP *= factor
			rows[i].Volume /= factor
			changed = true
		}
		if !changed {
			continue
		}
		if err := writeParquetRows(path, schema, rows); err != nil {
			return err
		}
	}
	return nil
}

// exportScreenerMetadata writes a compressed columnar snapshot of
// ticker metadata for the screener sibling service (spec §4.9 step 11).
func (d Deps) exportScreenerMetadata(ctx context.Context, date time.Time) error {
	rows, err := d.Tickers.AllTickers(ctx)
	if err != nil {
		return fmt.Errorf("export_screener_metadata: %w", err)
	}
	path := filepath.Join(d.Config.ParquetDir, "metadata", date.Format("2006-01-02")+".parquet")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export_screener_metadata: mkdir: %w", err)
	}
	if err := writeMetadataSnapshot(path, rows); err != nil {
		return fmt.Errorf("export_screener_metadata: write: %w", err)
	}
	return nil
}

// syncRedis refreshes the Bus ticker-universe set and per-symbol
// metadata mirrors from the Warehouse (spec §4.9 step 12).
func (d Deps) syncRedis(ctx context.Context, _ time.Time) error {
	rows, err := d.Tickers.AllTickers(ctx)
	if err != nil {
		return fmt.Errorf("sync_redis: load tickers: %w", err)
	}

	members := make([]interface{}, 0, len(rows))
	for _, t := range rows {
		members = append(members, t.Symbol)
	}
	if err := d.Bus.SAdd(ctx, "ticker:universe", 0, members...); err != nil {
		return fmt.Errorf("sync_redis: universe set: %w", err)
	}

	for _, t := range rows {
		meta := domain.TickerMetadata{
			Symbol: t.Symbol, CompanyName: t.CompanyName, Exchange: t.Exchange,
			Sector: t.Sector, Industry: t.Industry, MarketCap: t.MarketCap,
			SharesOutstanding: t.SharesOutstanding, FreeFloat: t.FreeFloat,
			AvgVolume30D: t.AvgVolume30D, AvgVolume10D: t.AvgVolume10D, AvgVolume3M: t.AvgVolume3M,
			Beta: t.Beta, IsETF: t.IsETF, ActivelyTrading: t.IsActivelyTrading,
		}
		if err := d.Bus.Set(ctx, "ticker:metadata:"+t.Symbol, meta, 24*time.Hour); err != nil {
			return fmt.Errorf("sync_redis: mirror %s: %w", t.Symbol, err)
		}
	}
	return nil
}

// notifyServices publishes maintenance_completed on the Bus for
// cross-process subscribers (spec §4.9 step 13). The in-process
// MaintenanceRunCompleted event is the Orchestrator's own job, since it
// alone knows the full graph's all_success outcome including tasks this
// one never sees run in holiday mode.
func (d Deps) notifyServices(ctx context.Context, date time.Time) error {
	if err := d.Bus.Publish(ctx, "maintenance:completed", map[string]string{"date": date.Format("2006-01-02")}); err != nil {
		return fmt.Errorf("notify_services: publish: %w", err)
	}
	return nil
}
