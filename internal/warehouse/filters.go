package warehouse

import "context"

// EnabledFilters returns every enabled filter ordered by priority,
// the set the Filter Engine reloads on a signal (spec §4.5).
func (w *Warehouse) EnabledFilters(ctx context.Context) ([]ScannerFilter, error) {
	var rows []ScannerFilter
	err := w.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("priority DESC").
		Find(&rows).Error
	return rows, err
}

// AllFilters returns every filter definition regardless of enabled
// state, ordered by priority.
func (w *Warehouse) AllFilters(ctx context.Context) ([]ScannerFilter, error) {
	var rows []ScannerFilter
	err := w.db.WithContext(ctx).Order("priority DESC").Find(&rows).Error
	return rows, err
}

// UpsertFilter inserts or replaces a filter definition by name.
func (w *Warehouse) UpsertFilter(ctx context.Context, f *ScannerFilter) error {
	var existing ScannerFilter
	err := w.db.WithContext(ctx).Where("name = ?", f.Name).First(&existing).Error
	if err == nil {
		f.ID = existing.ID
		return w.db.WithContext(ctx).Save(f).Error
	}
	return w.db.WithContext(ctx).Create(f).Error
}
