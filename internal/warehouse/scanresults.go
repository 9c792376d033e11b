package warehouse

import "context"

// InsertScanResults persists a batch of scan observations for audit and
// backtesting (spec §6 "scan_results ... hypertable for history").
func (w *Warehouse) InsertScanResults(ctx context.Context, rows []ScanResult) error {
	if len(rows) == 0 {
		return nil
	}
	return w.db.WithContext(ctx).CreateInBatches(rows, 500).Error
}
