package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/equiscan/internal/bus"
)

// rvolBaselineKey mirrors the hash key Maintenance writes nightly:
// one hash per symbol, fields keyed by "HH:MM" slot-of-day.
func rvolBaselineKey(symbol string) string {
	return fmt.Sprintf("rvol:hist:avg:%s", symbol)
}

// slotBaseline is the msgpack-encoded value stored per hash field.
type slotBaseline struct {
	MeanVolume float64 `msgpack:"mean_volume"`
}

// RVOLCalculator computes RVOL on demand as
// current_accumulated_volume / baseline_mean_volume_at_this_slot,
// reading the baseline from the Bus hash mirrored by Maintenance
// (spec §4.3). A missing baseline yields nil, never zero.
type RVOLCalculator struct {
	bus *bus.Bus
}

// NewRVOLCalculator constructs a calculator reading baselines from b.
func NewRVOLCalculator(b *bus.Bus) *RVOLCalculator {
	return &RVOLCalculator{bus: b}
}

// Compute returns RVOL for symbol at slotKey ("HH:MM") given the
// current accumulated volume, or nil if no baseline exists yet.
func (c *RVOLCalculator) Compute(ctx context.Context, symbol, slotKey string, currentVolume float64) *float64 {
	var baseline slotBaseline
	if err := c.bus.HGetMsgpack(ctx, rvolBaselineKey(symbol), slotKey, &baseline); err != nil {
		return nil
	}
	if baseline.MeanVolume <= 0 {
		return nil
	}
	v := currentVolume / baseline.MeanVolume
	return &v
}

// SetBaseline mirrors one (symbol, slot) baseline into the Bus hash,
// owned exclusively by the nightly calculate_rvol_averages maintenance
// task (spec §9 "shared-resource policy").
func (c *RVOLCalculator) SetBaseline(ctx context.Context, symbol, slotKey string, meanVolume float64, ttl time.Duration) error {
	return c.bus.HSetMsgpack(ctx, rvolBaselineKey(symbol), slotKey, slotBaseline{MeanVolume: meanVolume}, ttl)
}
