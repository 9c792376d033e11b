package enrichment

import (
	"container/list"
	"sync"
	"time"

	"github.com/aristath/equiscan/internal/domain"
)

// DefaultMetadataCacheTTL and DefaultMetadataCacheCap implement the
// process-local metadata cache sizing from spec §4.4.
const (
	DefaultMetadataCacheTTL = 30 * time.Minute
	DefaultMetadataCacheCap = 200_000
)

type metadataEntry struct {
	symbol    string
	value     domain.TickerMetadata
	expiresAt time.Time
}

// metadataCache is a process-local LRU with per-entry TTL, used to
// avoid hammering the Bus with a metadata lookup for every symbol on
// every enrichment tick.
type metadataCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List
	items    map[string]*list.Element
}

func newMetadataCache(capacity int, ttl time.Duration) *metadataCache {
	if capacity <= 0 {
		capacity = DefaultMetadataCacheCap
	}
	if ttl <= 0 {
		ttl = DefaultMetadataCacheTTL
	}
	return &metadataCache{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// get returns the cached value for symbol if present and unexpired.
func (c *metadataCache) get(symbol string) (domain.TickerMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[symbol]
	if !ok {
		return domain.TickerMetadata{}, false
	}
	entry := el.Value.(*metadataEntry)
	if time.Now().After(entry.expiresAt) {
		c.ll.Remove(el)
		delete(c.items, symbol)
		return domain.TickerMetadata{}, false
	}
	c.ll.MoveToFront(el)
	return entry.value, true
}

// put inserts or refreshes symbol, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *metadataCache) put(symbol string, value domain.TickerMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[symbol]; ok {
		entry := el.Value.(*metadataEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(c.ttl)
		c.ll.MoveToFront(el)
		return
	}

	entry := &metadataEntry{symbol: symbol, value: value, expiresAt: time.Now().Add(c.ttl)}
	el := c.ll.PushFront(entry)
	c.items[symbol] = el

	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*metadataEntry).symbol)
		}
	}
}

func (c *metadataCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
