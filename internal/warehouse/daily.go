package warehouse

import (
	"context"
	"time"

	"gorm.io/gorm/clause"
)

// UpsertDailyBar inserts or replaces one split-adjusted daily bar
// (load_ohlc maintenance task).
func (w *Warehouse) UpsertDailyBar(ctx context.Context, bar *MarketDataDaily) error {
	return w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "trading_date"}},
		UpdateAll: true,
	}).Create(bar).Error
}

// HasDailyBar reports whether symbol already has a complete row for
// date, so load_ohlc can skip work that is already done (idempotent
// maintenance, spec §8 "maintenance idempotency").
func (w *Warehouse) HasDailyBar(ctx context.Context, symbol string, date time.Time) (bool, error) {
	var count int64
	err := w.db.WithContext(ctx).Model(&MarketDataDaily{}).
		Where("symbol = ? AND trading_date = ?", symbol, date.Format("2006-01-02")).
		Count(&count).Error
	return count > 0, err
}

// GetDailyBar returns the bar for symbol on the exact date, used by
// reconcile_parquet_splits to read the Warehouse's already-adjusted
// close for the last pre-split trading day (spec §4.9 step 10).
func (w *Warehouse) GetDailyBar(ctx context.Context, symbol string, date time.Time) (*MarketDataDaily, error) {
	var bar MarketDataDaily
	err := w.db.WithContext(ctx).
		Where("symbol = ? AND trading_date = ?", symbol, date.Format("2006-01-02")).
		First(&bar).Error
	if err != nil {
		return nil, err
	}
	return &bar, nil
}

// RecentDailyBars returns the last n daily bars for symbol, ordered
// oldest to newest, as inputs to the ATR calculation.
func (w *Warehouse) RecentDailyBars(ctx context.Context, symbol string, n int) ([]MarketDataDaily, error) {
	var rows []MarketDataDaily
	err := w.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("trading_date DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// ReverseAdjustForSplit multiplies price columns by factor and divides
// volume by factor for every row of symbol strictly before effective
// (reconcile_splits maintenance task, spec §8 scenario 4).
func (w *Warehouse) ReverseAdjustForSplit(ctx context.Context, symbol string, effective time.Time, factor float64) error {
	return w.db.WithContext(ctx).Model(&MarketDataDaily{}).
		Where("symbol = ? AND trading_date < ?", symbol, effective.Format("2006-01-02")).
		Updates(map[string]interface{}{
			"open":   gormExpr("open * ?", factor),
			"high":   gormExpr("high * ?", factor),
			"low":    gormExpr("low * ?", factor),
			"close":  gormExpr("close * ?", factor),
			"volume": gormExpr("volume / ?", factor),
		}).Error
}
