package domain

import "time"

// Trade is the last trade reported for a symbol.
type Trade struct {
	Price     float64
	Size      float64
	Exchange  int
	Timestamp time.Time
}

// Quote is the last NBBO quote reported for a symbol.
type Quote struct {
	BidPrice  float64
	AskPrice  float64
	BidSize   float64
	AskSize   float64
	Timestamp time.Time
}

// DayBar is the vendor's running OHLCV for the current trading day.
type DayBar struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Trades int64 // day.n — today's trade count, used by the anomaly detector
}

// PrevDayBar is the prior trading day's OHLCV, used as the gap reference.
type PrevDayBar struct {
	Close  float64
	Volume float64
}

// SnapshotRow is one per-symbol row of a full-market snapshot tick
// (spec §3 "Snapshot row"). Identity is (Symbol, SnapshotTimestamp).
type SnapshotRow struct {
	Symbol            string
	SnapshotTimestamp time.Time

	Day     DayBar
	PrevDay PrevDayBar
	Trade   Trade
	Quote   Quote
}

// CurrentPrice is the first non-null of {last-trade, day-close, prev-close},
// per spec §3 "Derived" fields.
func (r SnapshotRow) CurrentPrice() float64 {
	if r.Trade.Price > 0 {
		return r.Trade.Price
	}
	if r.Day.Close > 0 {
		return r.Day.Close
	}
	return r.PrevDay.Close
}

// CurrentVolume is the day's accumulated volume.
func (r SnapshotRow) CurrentVolume() float64 {
	return r.Day.Volume
}

// Valid reports whether the row satisfies the admission invariant of
// spec §3: price > 0 and volume >= 0, with the $0.50 floor applied
// separately at ingestion (spec §4.1, §8).
func (r SnapshotRow) Valid() bool {
	return r.CurrentPrice() > 0 && r.CurrentVolume() >= 0
}

// MinAdmissiblePrice is the price floor applied by the Snapshot Ingestor
// (spec §4.1, §8): rows priced strictly below this are dropped.
const MinAdmissiblePrice = 0.50
