package enrichment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aristath/equiscan/internal/bus"
	"github.com/aristath/equiscan/internal/domain"
)

const metadataKeyPrefix = "ticker:metadata:"

// metadataBatchSize caps a single Bus multi-get call (spec §4.4).
const metadataBatchSize = 1000

// MetadataKey is the Bus key a ticker's metadata is cached under.
// Maintenance's nightly refresh writes this key; the Enrichment Stage
// only ever reads it.
func MetadataKey(symbol string) string {
	return metadataKeyPrefix + symbol
}

// MetadataResolver batch-fetches ticker metadata from the Bus behind a
// process-local LRU, so a full scan cycle does not issue one Bus round
// trip per symbol.
type MetadataResolver struct {
	bus   *bus.Bus
	cache *metadataCache
}

// NewMetadataResolver constructs a resolver. cacheCap <= 0 and
// cacheTTL <= 0 fall back to the spec defaults.
func NewMetadataResolver(b *bus.Bus, cacheCap int, cacheTTL time.Duration) *MetadataResolver {
	return &MetadataResolver{bus: b, cache: newMetadataCache(cacheCap, cacheTTL)}
}

// Resolve returns metadata for every requested symbol present either
// in the LRU or the Bus. Symbols with no metadata anywhere are simply
// absent from the result — callers treat a missing entry as "unknown
// reference data" (spec §7).
func (r *MetadataResolver) Resolve(ctx context.Context, symbols []string) (map[string]domain.TickerMetadata, error) {
	result := make(map[string]domain.TickerMetadata, len(symbols))
	var misses []string

	for _, sym := range symbols {
		if v, ok := r.cache.get(sym); ok {
			result[sym] = v
			continue
		}
		misses = append(misses, sym)
	}

	if len(misses) == 0 {
		return result, nil
	}

	keys := make([]string, len(misses))
	for i, sym := range misses {
		keys[i] = MetadataKey(sym)
	}

	raw, err := r.bus.MGet(ctx, keys, metadataBatchSize)
	if err != nil {
		return nil, err
	}

	for _, sym := range misses {
		encoded, ok := raw[MetadataKey(sym)]
		if !ok {
			continue
		}
		var meta domain.TickerMetadata
		if err := json.Unmarshal([]byte(encoded), &meta); err != nil {
			continue
		}
		r.cache.put(sym, meta)
		result[sym] = meta
	}

	return result, nil
}

func (r *MetadataResolver) cacheSize() int {
	return r.cache.len()
}
