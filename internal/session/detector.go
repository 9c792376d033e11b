// Package session computes the current market session from the vendor
// calendar and wall clock, emitting session-changed and day-changed
// events (spec §4.8).
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/equiscan/internal/domain"
	"github.com/aristath/equiscan/internal/events"
	"github.com/aristath/equiscan/internal/marketdata"
)

const (
	pollInterval       = 60 * time.Second
	holidayCacheTTL    = 30 * 24 * time.Hour
)

// Boundaries holds the HH:MM session boundary configuration (spec §6
// configuration surface).
type Boundaries struct {
	PreMarketStart string
	MarketOpen     string
	MarketClose    string
	PostMarketEnd  string
	TimeZone       string
}

// Detector tracks the current session and trading date, re-evaluating
// on a fixed poll cadence.
type Detector struct {
	vendor     *marketdata.VendorClient
	events     *events.Bus
	bounds     Boundaries
	location   *time.Location
	log        zerolog.Logger

	mu           sync.RWMutex
	current      domain.Session
	tradingDate  string
	holidays     map[string]marketdata.HolidayEntry
	holidaysAt   time.Time
}

// NewDetector constructs a Detector. tz must be a valid IANA time zone
// name (spec default "America/New_York"); an invalid name falls back to
// UTC rather than failing startup, since a wrong session boundary is
// recoverable while refusing to boot is not.
func NewDetector(vendor *marketdata.VendorClient, eventBus *events.Bus, bounds Boundaries, log zerolog.Logger) *Detector {
	loc, err := time.LoadLocation(bounds.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	return &Detector{
		vendor:   vendor,
		events:   eventBus,
		bounds:   bounds,
		location: loc,
		current:  domain.SessionClosed,
		log:      log.With().Str("component", "session_detector").Logger(),
		holidays: make(map[string]marketdata.HolidayEntry),
	}
}

// Run polls until ctx is cancelled, refreshing the holiday calendar on
// startup and every holidayCacheTTL thereafter.
func (d *Detector) Run(ctx context.Context) {
	d.refreshHolidays(ctx)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	d.checkOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(d.holidaysAtSnapshot()) > holidayCacheTTL {
				d.refreshHolidays(ctx)
			}
			d.checkOnce()
		}
	}
}

func (d *Detector) holidaysAtSnapshot() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.holidaysAt
}

func (d *Detector) refreshHolidays(ctx context.Context) {
	entries, err := d.vendor.FetchHolidays(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("failed to refresh holiday calendar")
		return
	}

	byDate := make(map[string]marketdata.HolidayEntry, len(entries))
	for _, e := range entries {
		byDate[e.Date] = e
	}

	d.mu.Lock()
	d.holidays = byDate
	d.holidaysAt = time.Now()
	d.mu.Unlock()
}

// checkOnce recomputes the session/date and emits events on change.
// State is treated as unchanged unless session or date differs (spec
// §4.8).
func (d *Detector) checkOnce() {
	now := time.Now().In(d.location)
	date := now.Format("2006-01-02")
	next := d.classify(now)

	d.mu.Lock()
	prevSession := d.current
	prevDate := d.tradingDate
	d.current = next
	d.tradingDate = date
	d.mu.Unlock()

	if prevDate != "" && date != prevDate {
		if d.events != nil {
			d.events.Emit(events.DayRolled, "session_detector", map[string]interface{}{
				"trading_date": date,
			})
		}
	}

	if prevSession != next {
		if d.events != nil {
			d.events.Emit(events.SessionChanged, "session_detector", events.SessionChangedData{
				From: prevSession.String(), To: next.String(), TradeDate: date,
			}.ToMap())
		}
	}
}

// classify determines the session for now given weekends and the
// cached holiday/early-close calendar.
func (d *Detector) classify(now time.Time) domain.Session {
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return domain.SessionClosed
	}

	d.mu.RLock()
	holiday, isHoliday := d.holidays[now.Format("2006-01-02")]
	d.mu.RUnlock()

	if isHoliday && holiday.EarlyClose == "" {
		return domain.SessionClosed
	}

	marketClose := d.bounds.MarketClose
	if isHoliday && holiday.EarlyClose != "" {
		marketClose = holiday.EarlyClose
	}

	clock := now.Format("15:04")
	switch {
	case clock < d.bounds.PreMarketStart:
		return domain.SessionClosed
	case clock < d.bounds.MarketOpen:
		return domain.SessionPreMarket
	case clock < marketClose:
		return domain.SessionMarketOpen
	case clock < d.bounds.PostMarketEnd:
		return domain.SessionPostMarket
	default:
		return domain.SessionClosed
	}
}

// IsTradingDay reports whether date is a trading day: not a weekend and
// not a full-closure holiday. Used by Maintenance's startup recovery
// scan to skip non-trading days (spec §4.9 "scans last 7 trading days").
func (d *Detector) IsTradingDay(date time.Time) bool {
	if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		return false
	}
	d.mu.RLock()
	holiday, isHoliday := d.holidays[date.Format("2006-01-02")]
	d.mu.RUnlock()
	return !isHoliday || holiday.EarlyClose != ""
}

// Current returns the last computed session and trading date.
func (d *Detector) Current() (domain.Session, string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current, d.tradingDate
}
