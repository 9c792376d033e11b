package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/equiscan/internal/bus"
)

func atrCacheKey(symbol string) string {
	return fmt.Sprintf("atr:daily:%s", symbol)
}

// atrEntry is the msgpack-encoded value Maintenance mirrors nightly.
type atrEntry struct {
	ATR        float64 `msgpack:"atr"`
	ATRPercent float64 `msgpack:"atr_percent"`
}

// ATRCache is a read-only view over the Bus hash Maintenance mirrors
// nightly from the Warehouse ATR table (spec §4.3). A query returns
// (atr, atr%) or nil if absent.
type ATRCache struct {
	bus *bus.Bus
}

// NewATRCache constructs a cache reading from b.
func NewATRCache(b *bus.Bus) *ATRCache {
	return &ATRCache{bus: b}
}

// Get returns (atr, atr%) for symbol, or (nil, nil) if not cached.
func (c *ATRCache) Get(ctx context.Context, symbol string) (atr, atrPercent *float64) {
	var entry atrEntry
	if err := c.bus.HGetMsgpack(ctx, atrCacheKey(symbol), "value", &entry); err != nil {
		return nil, nil
	}
	a, p := entry.ATR, entry.ATRPercent
	return &a, &p
}

// Set mirrors a freshly computed ATR reading into the Bus, owned
// exclusively by the nightly calculate_atr maintenance task (spec §9
// "shared-resource policy").
func (c *ATRCache) Set(ctx context.Context, symbol string, atr, atrPercent float64, ttl time.Duration) error {
	return c.bus.HSetMsgpack(ctx, atrCacheKey(symbol), "value", atrEntry{ATR: atr, ATRPercent: atrPercent}, ttl)
}
