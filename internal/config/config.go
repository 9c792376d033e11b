// Package config provides configuration management for the scanner
// platform.
//
// Configuration is loaded from environment variables (.env file via
// godotenv, then the process environment). There is no settings database
// in this system — unlike the teacher repository, every value here is an
// operational parameter of the pipeline (cadences, thresholds, endpoints),
// not a user credential that benefits from runtime rotation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration for every subsystem described in
// spec §6 "Configuration surface".
type Config struct {
	// HTTP
	Port int

	// Vendor market-data API
	VendorBaseURL       string
	VendorAPIKey        string
	VendorWSURL         string
	VendorSubscriptionCap int // Subscription Reconciler's symbol-union truncation bound, spec §4.10

	// Bus (Redis) and Warehouse (Postgres)
	BusURL       string
	WarehouseURL string

	// Session / calendar
	SlotMinutes      int
	PreMarketStart   string // HH:MM
	MarketOpen       string // HH:MM
	MarketClose      string // HH:MM
	PostMarketEnd    string // HH:MM
	TimeZone         string
	HolidayModeFlag  bool
	RVOLLookbackDays int
	ATRPeriod        int
	TradeZThreshold  float64

	// Cadences
	ScanCadence         time.Duration
	FilterReloadCadence time.Duration
	MaintenanceHour     int
	MaintenanceMinute   int

	// Maintenance
	ParquetDir         string // day_aggs flat-file root, spec §6 "Parquet flat files"
	MinVolumeSlotRows  int    // load_volume_slots success gate, spec §4.9 step 3
	TradesBaselineDays int    // calculate_trades_baselines lookback window

	LogLevel string
	DevMode  bool
}

// Load reads configuration from environment variables, applying the
// defaults spelled out in spec §6.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional; absence is not an error

	cfg := &Config{
		Port: getEnvAsInt("PORT", 8080),

		VendorBaseURL:         getEnv("VENDOR_BASE_URL", "https://api.polygon.io"),
		VendorAPIKey:          getEnv("VENDOR_API_KEY", ""),
		VendorWSURL:           getEnv("VENDOR_WS_URL", "wss://socket.polygon.io/stocks"),
		VendorSubscriptionCap: getEnvAsInt("VENDOR_SUBSCRIPTION_CAP", 1000),

		BusURL:       getEnv("BUS_URL", "redis://localhost:6379/0"),
		WarehouseURL: getEnv("WAREHOUSE_URL", "postgres://localhost:5432/scanner?sslmode=disable"),

		SlotMinutes:      getEnvAsInt("SLOT_MINUTES", 5),
		PreMarketStart:   getEnv("PRE_MARKET_START", "04:00"),
		MarketOpen:       getEnv("MARKET_OPEN", "09:30"),
		MarketClose:      getEnv("MARKET_CLOSE", "16:00"),
		PostMarketEnd:    getEnv("POST_MARKET_END", "20:00"),
		TimeZone:         getEnv("TIME_ZONE", "America/New_York"),
		HolidayModeFlag:  getEnvAsBool("HOLIDAY_MODE", false),
		RVOLLookbackDays: getEnvAsInt("RVOL_LOOKBACK_DAYS", 5),
		ATRPeriod:        getEnvAsInt("ATR_PERIOD", 14),
		TradeZThreshold:  getEnvAsFloat("TRADE_Z_THRESHOLD", 3.0),

		ScanCadence:         getEnvAsDuration("SCAN_CADENCE", 2*time.Second),
		FilterReloadCadence: getEnvAsDuration("FILTER_RELOAD_CADENCE", 60*time.Second),
		MaintenanceHour:     getEnvAsInt("MAINTENANCE_HOUR", 17),
		MaintenanceMinute:   getEnvAsInt("MAINTENANCE_MINUTE", 0),

		ParquetDir:         getEnv("PARQUET_DIR", "/data/polygon/day_aggs"),
		MinVolumeSlotRows:  getEnvAsInt("MIN_VOLUME_SLOT_ROWS", 400_000),
		TradesBaselineDays: getEnvAsInt("TRADES_BASELINE_DAYS", 5),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required configuration is present.
func (c *Config) Validate() error {
	if c.VendorAPIKey == "" {
		return fmt.Errorf("VENDOR_API_KEY is required")
	}
	if c.SlotMinutes <= 0 {
		return fmt.Errorf("SLOT_MINUTES must be positive, got %d", c.SlotMinutes)
	}
	if c.RVOLLookbackDays <= 0 {
		return fmt.Errorf("RVOL_LOOKBACK_DAYS must be positive, got %d", c.RVOLLookbackDays)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
