package warehouse

import (
	"context"
	"time"

	"gorm.io/gorm/clause"
)

// UpsertEarnings inserts or replaces one earnings calendar entry,
// keyed by (symbol, report_date), the supplemented feature carried over
// from the original system's earnings tracking.
func (w *Warehouse) UpsertEarnings(ctx context.Context, e *EarningsCalendar) error {
	var existing EarningsCalendar
	err := w.db.WithContext(ctx).
		Where("symbol = ? AND report_date = ?", e.Symbol, e.ReportDate).
		First(&existing).Error
	if err == nil {
		e.ID = existing.ID
		return w.db.WithContext(ctx).Save(e).Error
	}
	return w.db.WithContext(ctx).Create(e).Error
}

// UpcomingEarnings returns earnings events for symbol on or after from.
func (w *Warehouse) UpcomingEarnings(ctx context.Context, symbol string, from time.Time) ([]EarningsCalendar, error) {
	var rows []EarningsCalendar
	err := w.db.WithContext(ctx).
		Where("symbol = ? AND report_date >= ?", symbol, from.Format("2006-01-02")).
		Order("report_date ASC").
		Find(&rows).Error
	return rows, err
}

// EarningsOnDate returns every symbol reporting earnings on date,
// across all time slots, ordered by symbol.
func (w *Warehouse) EarningsOnDate(ctx context.Context, date time.Time) ([]EarningsCalendar, error) {
	var rows []EarningsCalendar
	err := w.db.WithContext(ctx).
		Clauses(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: "symbol"}}}}).
		Where("report_date = ?", date.Format("2006-01-02")).
		Find(&rows).Error
	return rows, err
}
