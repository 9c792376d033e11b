package enrichment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/equiscan/internal/domain"
)

func TestMetadataCache_PutGetRoundTrip(t *testing.T) {
	c := newMetadataCache(10, time.Minute)
	c.put("AAPL", domain.TickerMetadata{Symbol: "AAPL", CompanyName: "Apple"})

	v, ok := c.get("AAPL")
	require.True(t, ok)
	assert.Equal(t, "Apple", v.CompanyName)
}

func TestMetadataCache_MissReturnsFalse(t *testing.T) {
	c := newMetadataCache(10, time.Minute)
	_, ok := c.get("ZZZZ")
	assert.False(t, ok)
}

func TestMetadataCache_ExpiresAfterTTL(t *testing.T) {
	c := newMetadataCache(10, time.Millisecond)
	c.put("AAPL", domain.TickerMetadata{Symbol: "AAPL"})
	time.Sleep(5 * time.Millisecond)

	_, ok := c.get("AAPL")
	assert.False(t, ok)
}

func TestMetadataCache_EvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	c := newMetadataCache(2, time.Minute)
	c.put("A", domain.TickerMetadata{Symbol: "A"})
	c.put("B", domain.TickerMetadata{Symbol: "B"})
	c.get("A") // touch A so B becomes the LRU entry
	c.put("C", domain.TickerMetadata{Symbol: "C"})

	_, ok := c.get("B")
	assert.False(t, ok, "B should have been evicted as least-recently-used")

	_, ok = c.get("A")
	assert.True(t, ok)
	_, ok = c.get("C")
	assert.True(t, ok)
}

func TestMetadataCache_DefaultsAppliedForNonPositiveSizes(t *testing.T) {
	c := newMetadataCache(0, 0)
	assert.Equal(t, DefaultMetadataCacheCap, c.capacity)
	assert.Equal(t, DefaultMetadataCacheTTL, c.ttl)
}
