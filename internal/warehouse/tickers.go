package warehouse

import (
	"context"

	"gorm.io/gorm/clause"
)

// UpsertTicker inserts or replaces a ticker's metadata row (spec §3
// "Ticker metadata" — created/updated nightly by Maintenance).
func (w *Warehouse) UpsertTicker(ctx context.Context, t *TickerUnified) error {
	return w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		UpdateAll: true,
	}).Create(t).Error
}

// UpsertTickers batches UpsertTicker for a full nightly refresh.
func (w *Warehouse) UpsertTickers(ctx context.Context, rows []TickerUnified) error {
	if len(rows) == 0 {
		return nil
	}
	return w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		UpdateAll: true,
	}).CreateInBatches(rows, 500).Error
}

// GetTicker returns the metadata row for symbol.
func (w *Warehouse) GetTicker(ctx context.Context, symbol string) (*TickerUnified, error) {
	var t TickerUnified
	if err := w.db.WithContext(ctx).First(&t, "symbol = ?", symbol).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ActiveSymbols returns every symbol flagged as actively trading, the
// universe Maintenance iterates for nightly tasks.
func (w *Warehouse) ActiveSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := w.db.WithContext(ctx).Model(&TickerUnified{}).
		Where("is_actively_trading = ?", true).
		Pluck("symbol", &symbols).Error
	return symbols, err
}

// AllTickers returns every ticker metadata row, used to rebuild the Bus
// mirror during the sync_redis maintenance task.
func (w *Warehouse) AllTickers(ctx context.Context) ([]TickerUnified, error) {
	var rows []TickerUnified
	err := w.db.WithContext(ctx).Find(&rows).Error
	return rows, err
}
