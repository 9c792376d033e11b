package enrichment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/equiscan/internal/domain"
)

func TestDedupeBySymbol_KeepsFirstOccurrence(t *testing.T) {
	rows := []domain.SnapshotRow{
		{Symbol: "AAPL", Trade: domain.Trade{Price: 190}},
		{Symbol: "MSFT", Trade: domain.Trade{Price: 300}},
		{Symbol: "AAPL", Trade: domain.Trade{Price: 999}},
	}

	out := dedupeBySymbol(rows)

	assert.Len(t, out, 2)
	assert.Equal(t, 190.0, out[0].Trade.Price)
}

func TestSlotKey_FormatsHourMinute(t *testing.T) {
	at := time.Date(2026, 8, 3, 9, 35, 12, 0, time.UTC)
	assert.Equal(t, "09:35", slotKey(at))
}

func TestDistanceFromNBBO(t *testing.T) {
	d := distanceFromNBBO(101, 100, 102)
	assert.InDelta(t, 0.0, d, 0.0001)

	d = distanceFromNBBO(103, 100, 102)
	assert.InDelta(t, 0.0198, d, 0.0005)
}

func TestDistanceFromNBBO_ZeroMidReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, distanceFromNBBO(10, 0, 0))
}

func TestDataAgeSeconds_ZeroTimeIsZero(t *testing.T) {
	assert.Equal(t, 0.0, dataAgeSeconds(time.Time{}))
}

func TestDataAgeSeconds_Positive(t *testing.T) {
	age := dataAgeSeconds(time.Now().Add(-5 * time.Second))
	assert.InDelta(t, 5.0, age, 1.0)
}
