package warehouse

import (
	"context"
	"time"
)

// BulkInsertVolumeSlots inserts one trading day's worth of slot bars
// (load_volume_slots maintenance task). Rows are inserted in batches;
// duplicates for an already-loaded day are left to the caller's
// minimum-records gate (spec §4.9 step 3) rather than upserted here,
// since a partial day should be reloaded wholesale, not patched.
func (w *Warehouse) BulkInsertVolumeSlots(ctx context.Context, rows []VolumeSlot) error {
	if len(rows) == 0 {
		return nil
	}
	return w.db.WithContext(ctx).CreateInBatches(rows, 1000).Error
}

// CountVolumeSlots returns how many slot rows exist for date, used
// against the minimum-records threshold (default 400000) that gates
// load_volume_slots success.
func (w *Warehouse) CountVolumeSlots(ctx context.Context, date time.Time) (int64, error) {
	var count int64
	err := w.db.WithContext(ctx).Model(&VolumeSlot{}).
		Where("trading_date = ?", date.Format("2006-01-02")).
		Count(&count).Error
	return count, err
}

// DeleteVolumeSlotsForDate clears a day's slots so load_volume_slots can
// be safely re-run without duplicating rows.
func (w *Warehouse) DeleteVolumeSlotsForDate(ctx context.Context, date time.Time) error {
	return w.db.WithContext(ctx).
		Where("trading_date = ?", date.Format("2006-01-02")).
		Delete(&VolumeSlot{}).Error
}

// SlotBaseline is the RVOL reference value for one (symbol, slot) pair:
// the average cumulative volume up to and including that slot, over the
// lookback window.
type SlotBaseline struct {
	Symbol          string
	SlotTime        string // HH:MM, slot-of-day key
	AvgCumulativeVolume float64
}

// ComputeRVOLBaselines aggregates, for every symbol and slot-of-day
// across the last lookbackDays trading days ending strictly before
// asOf, the average cumulative volume reached by that slot. This backs
// the RVOL Slot Calculator's nightly-refreshed baseline (spec §3 "RVOL
// baselines").
func (w *Warehouse) ComputeRVOLBaselines(ctx context.Context, asOf time.Time, lookbackDays int) ([]SlotBaseline, error) {
	var results []SlotBaseline

	// Cumulative volume per (symbol, trading_date, slot_time), then
	// averaged per (symbol, slot_time) across the lookback window. Window
	// function runs inside Postgres; Go only shapes the final aggregate.
	const query = `
		WITH cumulative AS (
			SELECT
				symbol,
				trading_date,
				to_char(slot_time, 'HH24:MI') AS slot_key,
				SUM(volume) OVER (
					PARTITION BY symbol, trading_date
					ORDER BY slot_time
				) AS cum_volume
			FROM volume_slots
			WHERE trading_date IN (
				SELECT DISTINCT trading_date FROM volume_slots
				WHERE trading_date < ?
				ORDER BY trading_date DESC
				LIMIT ?
			)
		)
		SELECT symbol, slot_key AS slot_time, AVG(cum_volume) AS avg_cumulative_volume
		FROM cumulative
		GROUP BY symbol, slot_key
	`

	err := w.db.WithContext(ctx).Raw(query, asOf.Format("2006-01-02"), lookbackDays).Scan(&results).Error
	return results, err
}

// DailyTradeCount is one symbol's total trade count for one trading
// day, summed across its 5-minute slots.
type DailyTradeCount struct {
	Symbol      string
	TradingDate time.Time
	Trades      int64
}

// RecentDailyTradeCounts sums per-symbol daily trade counts over the
// lookbackDays trading days ending strictly before asOf, feeding the
// calculate_trades_baselines maintenance task's mean/stdev.
func (w *Warehouse) RecentDailyTradeCounts(ctx context.Context, asOf time.Time, lookbackDays int) ([]DailyTradeCount, error) {
	var results []DailyTradeCount

	err := w.db.WithContext(ctx).Model(&VolumeSlot{}).
		Select("symbol, trading_date, SUM(trades_count) AS trades").
		Where("trading_date IN (SELECT DISTINCT trading_date FROM volume_slots WHERE trading_date < ? ORDER BY trading_date DESC LIMIT ?)", asOf.Format("2006-01-02"), lookbackDays).
		Group("symbol, trading_date").
		Scan(&results).Error
	return results, err
}
