package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSnapshotRow_DropsMissingSymbol(t *testing.T) {
	_, ok := toSnapshotRow(rawSnapshotRow{})
	assert.False(t, ok)
}

func TestToSnapshotRow_ValidRow(t *testing.T) {
	raw := rawSnapshotRow{Symbol: "AAPL"}
	raw.Day = &struct {
		Open   float64 `json:"o"`
		High   float64 `json:"h"`
		Low    float64 `json:"l"`
		Close  float64 `json:"c"`
		Volume float64 `json:"v"`
		Trades int64   `json:"n"`
	}{Open: 190, High: 195, Low: 189, Close: 193, Volume: 1_000_000, Trades: 500}

	row, ok := toSnapshotRow(raw)
	assert.True(t, ok)
	assert.Equal(t, "AAPL", row.Symbol)
	assert.Equal(t, 193.0, row.CurrentPrice())
}

func TestToSnapshotRow_ZeroVolumeAndPriceInvalid(t *testing.T) {
	raw := rawSnapshotRow{Symbol: "ZZZZ"}
	_, ok := toSnapshotRow(raw)
	assert.False(t, ok)
}

func TestBackoff_CapsAtMax(t *testing.T) {
	d := backoff(20)
	assert.Equal(t, maxReconnectDelay, d)
}

func TestBackoff_GrowsExponentially(t *testing.T) {
	d1 := backoff(1)
	d2 := backoff(2)
	assert.Equal(t, baseReconnectDelay, d1)
	assert.Equal(t, 2*baseReconnectDelay, d2)
}
