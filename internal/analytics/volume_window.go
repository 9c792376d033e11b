package analytics

import "time"

const volumeWindowRetention = 15 * time.Minute

// VolumeWindowTracker maintains a per-symbol deque of (vendor-timestamp,
// accumulated-day-volume), evicting entries older than 15 minutes. Query
// Vol5Min returns av_now − av_5min_ago, linearly interpolated to the
// exact 5-minute boundary (spec §4.3).
type VolumeWindowTracker struct {
	s *series
}

// NewVolumeWindowTracker creates an empty tracker.
func NewVolumeWindowTracker() *VolumeWindowTracker {
	return &VolumeWindowTracker{s: newSeries(volumeWindowRetention)}
}

// Update records a new accumulated-volume reading for symbol at the
// vendor-reported timestamp.
func (t *VolumeWindowTracker) Update(symbol string, at time.Time, accumulatedVolume float64) {
	t.s.push(symbol, at, accumulatedVolume)
}

// Vol5Min returns av_now - av_5min_ago, or nil if there isn't 5 minutes
// of history yet.
func (t *VolumeWindowTracker) Vol5Min(symbol string) *float64 {
	now, then, ok := t.s.valueAgo(symbol, 5*time.Minute)
	if !ok {
		return nil
	}
	v := now - then
	return &v
}

// Reset clears all per-symbol state (day-changed event).
func (t *VolumeWindowTracker) Reset() {
	t.s.reset()
}
