package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("VENDOR_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5, cfg.SlotMinutes)
	assert.Equal(t, "04:00", cfg.PreMarketStart)
	assert.Equal(t, "09:30", cfg.MarketOpen)
	assert.Equal(t, 14, cfg.ATRPeriod)
	assert.Equal(t, 3.0, cfg.TradeZThreshold)
}

func TestLoad_MissingAPIKeyFails(t *testing.T) {
	os.Clearenv()
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidSlotMinutes(t *testing.T) {
	os.Clearenv()
	os.Setenv("VENDOR_API_KEY", "test-key")
	os.Setenv("SLOT_MINUTES", "0")

	_, err := Load()
	assert.Error(t, err)
}
