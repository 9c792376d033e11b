// Package analytics holds the in-memory rolling engines fed by the
// vendor WebSocket stream: VWAP, volume/price windows, the minute-bar
// close engine, the RVOL slot calculator, the ATR cache, and the trade
// anomaly detector (spec §4.3). All state here is process-local; no
// cross-process synchronisation.
package analytics

import "sync"

// VWAPCache holds the most recent vendor-reported VWAP per symbol. A
// zero or missing VWAP preserves the previous value — VWAP must never
// "disappear" mid-session (spec §4.3).
type VWAPCache struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewVWAPCache creates an empty cache.
func NewVWAPCache() *VWAPCache {
	return &VWAPCache{values: make(map[string]float64)}
}

// Update records a new VWAP reading for symbol, ignoring non-positive
// values.
func (c *VWAPCache) Update(symbol string, vwap float64) {
	if vwap <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[symbol] = vwap
}

// Get returns the cached VWAP for symbol, or nil if never observed.
func (c *VWAPCache) Get(symbol string) *float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[symbol]
	if !ok {
		return nil
	}
	return &v
}

// Reset clears all per-symbol state, called on a day-changed event
// (spec §8 "Cancellation / timeout": "a day-changed event is a
// fast-path cancellation for rolling-window state").
func (c *VWAPCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]float64)
}
