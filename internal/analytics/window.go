package analytics

import (
	"sync"
	"time"
)

// sample is one (vendor-timestamp, value) observation. Keyed by vendor
// timestamp rather than wall clock so replay and consumer lag never
// distort the window (spec §9 "in-memory rolling state").
type sample struct {
	at    time.Time
	value float64
}

// series is a per-symbol deque of samples, evicted past a retention
// window. Shared by the Volume Window Tracker (accumulated day volume)
// and the Price Window Tracker (close price).
type series struct {
	mu        sync.Mutex
	points    map[string][]sample
	retention time.Duration
}

func newSeries(retention time.Duration) *series {
	return &series{points: make(map[string][]sample), retention: retention}
}

// push appends a new sample for symbol at vendor timestamp at, evicting
// anything older than retention.
func (s *series) push(symbol string, at time.Time, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pts := append(s.points[symbol], sample{at: at, value: value})
	cutoff := at.Add(-s.retention)
	start := 0
	for start < len(pts) && pts[start].at.Before(cutoff) {
		start++
	}
	s.points[symbol] = pts[start:]
}

// valueAgo returns the value interpolated to exactly `ago` before the
// most recent sample's timestamp, or nil if there isn't enough history.
func (s *series) valueAgo(symbol string, ago time.Duration) (now, then float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pts := s.points[symbol]
	if len(pts) == 0 {
		return 0, 0, false
	}

	latest := pts[len(pts)-1]
	target := latest.at.Add(-ago)

	// Find the two samples straddling target and linearly interpolate.
	var before, after *sample
	for i := range pts {
		if !pts[i].at.After(target) {
			before = &pts[i]
		} else if after == nil {
			after = &pts[i]
			break
		}
	}

	if before == nil {
		// No history reaches back far enough.
		return 0, 0, false
	}
	if after == nil {
		return latest.value, before.value, true
	}

	span := after.at.Sub(before.at)
	if span <= 0 {
		return latest.value, before.value, true
	}
	frac := target.Sub(before.at).Seconds() / span.Seconds()
	interpolated := before.value + (after.value-before.value)*frac
	return latest.value, interpolated, true
}

// reset clears all per-symbol state.
func (s *series) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = make(map[string][]sample)
}
