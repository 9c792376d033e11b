// Package warehouse is the time-series relational store ("the
// Warehouse"): history and nightly-built baselines, queried by
// Maintenance and never on the scan hot path.
package warehouse

import "time"

// TickerUnified is the authoritative reference-data row for a symbol,
// mirrored into the Bus with a 24h TTL after each nightly refresh.
type TickerUnified struct {
	Symbol            string `gorm:"primaryKey;size:10" json:"symbol"`
	CompanyName       string `gorm:"size:255" json:"company_name"`
	Exchange          string `gorm:"size:10;index" json:"exchange"`
	Sector            string `gorm:"size:100;index" json:"sector"`
	Industry          string `gorm:"size:100" json:"industry"`
	MarketCap         float64 `gorm:"type:decimal(20,2)" json:"market_cap"`
	SharesOutstanding float64 `gorm:"type:decimal(20,2)" json:"shares_outstanding"`
	FreeFloat         float64 `gorm:"type:decimal(20,2)" json:"free_float"`
	AvgVolume30D      float64 `gorm:"type:decimal(20,2)" json:"avg_volume_30d"`
	AvgVolume10D      float64 `gorm:"type:decimal(20,2)" json:"avg_volume_10d"`
	AvgVolume3M       float64 `gorm:"type:decimal(20,2)" json:"avg_volume_3m"`
	Beta              float64 `gorm:"type:decimal(10,4)" json:"beta"`
	IsETF             bool    `json:"is_etf"`
	IsActivelyTrading bool    `gorm:"index" json:"is_actively_trading"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName pins the table name for TickerUnified.
func (TickerUnified) TableName() string { return "tickers_unified" }

// MarketDataDaily is one split-adjusted daily OHLCV bar; the source of
// truth for ATR and gap-reference computations.
type MarketDataDaily struct {
	Symbol      string    `gorm:"primaryKey;size:10" json:"symbol"`
	TradingDate time.Time `gorm:"primaryKey" json:"trading_date"`
	Open        float64   `gorm:"type:decimal(15,4)" json:"open"`
	High        float64   `gorm:"type:decimal(15,4)" json:"high"`
	Low         float64   `gorm:"type:decimal(15,4)" json:"low"`
	Close       float64   `gorm:"type:decimal(15,4)" json:"close"`
	Volume      float64   `gorm:"type:decimal(20,2)" json:"volume"`
}

// TableName pins the table name for MarketDataDaily.
func (MarketDataDaily) TableName() string { return "market_data_daily" }

// VolumeSlot is one 5-minute intraday slot bar, used to build the RVOL
// accumulated-volume-at-slot baseline.
type VolumeSlot struct {
	TradingDate time.Time `gorm:"primaryKey" json:"trading_date"`
	Symbol      string    `gorm:"primaryKey;size:10" json:"symbol"`
	SlotTime    time.Time `gorm:"primaryKey" json:"slot_time"`
	Open        float64   `gorm:"type:decimal(15,4)" json:"open"`
	High        float64   `gorm:"type:decimal(15,4)" json:"high"`
	Low         float64   `gorm:"type:decimal(15,4)" json:"low"`
	Close       float64   `gorm:"type:decimal(15,4)" json:"close"`
	Volume      float64   `gorm:"type:decimal(20,2)" json:"volume"`
	VWAP        float64   `gorm:"type:decimal(15,4)" json:"vwap"`
	TradesCount int64     `json:"trades_count"`
}

// TableName pins the table name for VolumeSlot.
func (VolumeSlot) TableName() string { return "volume_slots" }

// ScannerFilter is a named declarative filter definition (spec §4.5):
// Parameters holds a JSON-encoded FilterParameters (see
// internal/scanner), stored as jsonb and decoded by the scanner's filter
// loader, following the AnalysisData jsonb-as-string convention used for
// polymorphic payloads.
type ScannerFilter struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Enabled    bool      `gorm:"default:true;index" json:"enabled"`
	Priority   int       `gorm:"default:0" json:"priority"`
	Sessions   string    `gorm:"size:255" json:"sessions"` // comma-separated Session values
	Parameters string    `gorm:"type:jsonb" json:"parameters"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName pins the table name for ScannerFilter.
func (ScannerFilter) TableName() string { return "scanner_filters" }

// ScanResult is one historical scan observation, written for audit and
// backtesting; a hypertable candidate keyed by time.
type ScanResult struct {
	Time    time.Time `gorm:"primaryKey;index" json:"time"`
	Symbol  string    `gorm:"primaryKey;size:10;index" json:"symbol"`
	Session string    `gorm:"size:20" json:"session"`
	Metrics string    `gorm:"type:jsonb" json:"metrics"`
}

// TableName pins the table name for ScanResult.
func (ScanResult) TableName() string { return "scan_results" }

// EarningsCalendar is one known or estimated earnings event.
type EarningsCalendar struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol           string    `gorm:"size:10;index:idx_earnings_symbol_date,priority:1" json:"symbol"`
	ReportDate       time.Time `gorm:"index:idx_earnings_symbol_date,priority:2" json:"report_date"`
	TimeSlot         string    `gorm:"size:10" json:"time_slot"` // BMO, AMC, unknown
	FiscalQuarter    string    `gorm:"size:10" json:"fiscal_quarter"`
	EPSEstimate      *float64  `gorm:"type:decimal(10,4)" json:"eps_estimate,omitempty"`
	EPSActual        *float64  `gorm:"type:decimal(10,4)" json:"eps_actual,omitempty"`
	RevenueEstimate  *float64  `gorm:"type:decimal(20,2)" json:"revenue_estimate,omitempty"`
	RevenueActual    *float64  `gorm:"type:decimal(20,2)" json:"revenue_actual,omitempty"`
	Source           string    `gorm:"size:50" json:"source"`
	Confidence       *float64  `gorm:"type:decimal(5,4)" json:"confidence,omitempty"`
}

// TableName pins the table name for EarningsCalendar.
func (EarningsCalendar) TableName() string { return "earnings_calendar" }
