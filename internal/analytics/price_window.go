package analytics

import "time"

const priceWindowRetention = 15 * time.Minute

// PriceWindowTracker mirrors VolumeWindowTracker over close price.
// Chg5Min(sym) = (p_now - p_5min_ago) / p_5min_ago * 100 (spec §4.3).
type PriceWindowTracker struct {
	s *series
}

// NewPriceWindowTracker creates an empty tracker.
func NewPriceWindowTracker() *PriceWindowTracker {
	return &PriceWindowTracker{s: newSeries(priceWindowRetention)}
}

// Update records a new price reading for symbol at the vendor-reported
// timestamp.
func (t *PriceWindowTracker) Update(symbol string, at time.Time, price float64) {
	t.s.push(symbol, at, price)
}

// Chg5Min returns the 5-minute percentage change, or nil if there isn't
// 5 minutes of history yet or the denominator is non-positive.
func (t *PriceWindowTracker) Chg5Min(symbol string) *float64 {
	now, then, ok := t.s.valueAgo(symbol, 5*time.Minute)
	if !ok || then <= 0 {
		return nil
	}
	v := (now - then) / then * 100
	return &v
}

// Reset clears all per-symbol state (day-changed event).
func (t *PriceWindowTracker) Reset() {
	t.s.reset()
}
