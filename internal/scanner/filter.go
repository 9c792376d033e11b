// Package scanner implements the Scanner Core: the declarative filter
// engine, scorer, and category ranker (spec §4.5).
package scanner

import (
	"github.com/aristath/equiscan/internal/domain"
)

// FilterParameters is the declarative set of range bounds over an
// enriched ticker's fields (spec §4.5 "Filter representation"). A nil
// bound means "no restriction on that side."
type FilterParameters struct {
	MinRVOL, MaxRVOL                 *float64
	MinPrice, MaxPrice               *float64
	MinSpread, MaxSpread             *float64
	MinBidSize, MaxBidSize           *float64
	MinAskSize, MaxAskSize           *float64
	MinDistanceNBBO, MaxDistanceNBBO *float64

	MinVolumeToday  *float64
	MinMinuteVolume *float64

	MinAvgVolume5D, MaxAvgVolume5D    *float64
	MinAvgVolume10D, MaxAvgVolume10D  *float64
	MinAvgVolume3M, MaxAvgVolume3M    *float64
	MinDollarVolume, MaxDollarVolume  *float64

	MinVolumeTodayPct, MaxVolumeTodayPct         *float64
	MinVolumeYesterdayPct, MaxVolumeYesterdayPct *float64

	MinChangePercent, MaxChangePercent *float64
	MinMarketCap, MaxMarketCap         *float64
	MinFloat, MaxFloat                *float64

	MaxDataAgeSeconds *float64

	Sectors    []string
	Industries []string
	Exchanges  []string

	MinPostMarketChangePercent, MaxPostMarketChangePercent *float64
	MinPostMarketVolume, MaxPostMarketVolume               *float64
}

// Filter is a named, enabled/disabled filter applicable to a subset of
// sessions (spec §4.5). Between Warehouse reloads filters are
// in-memory immutable.
type Filter struct {
	Name       string
	Enabled    bool
	Priority   int
	Sessions   []domain.Session
	Parameters FilterParameters
}

// AppliesToSession reports whether f's session set contains session.
// An empty session set applies to every session.
func (f Filter) AppliesToSession(session domain.Session) bool {
	if len(f.Sessions) == 0 {
		return true
	}
	for _, s := range f.Sessions {
		if s == session {
			return true
		}
	}
	return false
}

// checkMinMax mirrors the filter engine's core range predicate: no
// bound on either side always passes; a ticker value of nil passes iff
// allowNilTicker (the RVOL exception — an unknown RVOL in early
// pre-market must not reject the row outright).
func checkMinMax(tickerValue, min, max *float64, allowNilTicker bool) bool {
	if min == nil && max == nil {
		return true
	}
	if tickerValue == nil {
		return allowNilTicker
	}
	if min != nil && *tickerValue < *min {
		return false
	}
	if max != nil && *tickerValue > *max {
		return false
	}
	return true
}

func ptr(v float64) *float64 { return &v }

// numericChecks returns every (ticker-value, min, max, allow-nil) tuple
// the declarative filter set evaluates for t, independent of session
// (spec §4.5's field list). RVOL is the only ticker field that may
// legitimately be nil.
func numericChecks(t *domain.EnrichedTicker, p FilterParameters) []struct {
	value          *float64
	min, max       *float64
	allowNilTicker bool
} {
	dollarVolume := t.Price * t.VolumeToday
	var volumeTodayPct, volumeYesterdayPct *float64
	if t.AvgVolume30D > 0 {
		volumeTodayPct = ptr(t.VolumeToday / t.AvgVolume30D * 100)
	}
	if t.PrevVolume > 0 {
		volumeYesterdayPct = ptr(t.VolumeToday / t.PrevVolume * 100)
	}

	return []struct {
		value          *float64
		min, max       *float64
		allowNilTicker bool
	}{
		{t.RVOL, p.MinRVOL, p.MaxRVOL, true},
		{ptr(t.Price), p.MinPrice, p.MaxPrice, false},
		{ptr(t.Spread), p.MinSpread, p.MaxSpread, false},
		{ptr(t.BidSize), p.MinBidSize, p.MaxBidSize, false},
		{ptr(t.AskSize), p.MinAskSize, p.MaxAskSize, false},
		{ptr(t.DistanceNBBO), p.MinDistanceNBBO, p.MaxDistanceNBBO, false},
		{ptr(t.VolumeToday), p.MinVolumeToday, nil, false},
		{ptr(t.MinuteVolume), p.MinMinuteVolume, nil, false},
		{ptr(t.AvgVolume5D), p.MinAvgVolume5D, p.MaxAvgVolume5D, false},
		{ptr(t.AvgVolume10D), p.MinAvgVolume10D, p.MaxAvgVolume10D, false},
		{ptr(t.AvgVolume3M), p.MinAvgVolume3M, p.MaxAvgVolume3M, false},
		{ptr(dollarVolume), p.MinDollarVolume, p.MaxDollarVolume, false},
		{volumeTodayPct, p.MinVolumeTodayPct, p.MaxVolumeTodayPct, true},
		{volumeYesterdayPct, p.MinVolumeYesterdayPct, p.MaxVolumeYesterdayPct, true},
		{t.ChangeTotal, p.MinChangePercent, p.MaxChangePercent, true},
		{ptr(t.MarketCap), p.MinMarketCap, p.MaxMarketCap, false},
		{ptr(t.FreeFloat), p.MinFloat, p.MaxFloat, false},
	}
}

// passesParameters applies every bound in p to t for the given
// session, implementing spec §4.5's "A row passes a filter iff every
// non-null bound is satisfied."
func passesParameters(t *domain.EnrichedTicker, p FilterParameters, session domain.Session) bool {
	for _, c := range numericChecks(t, p) {
		if !checkMinMax(c.value, c.min, c.max, c.allowNilTicker) {
			return false
		}
	}

	if p.MaxDataAgeSeconds != nil {
		if t.DataAgeSeconds > *p.MaxDataAgeSeconds {
			return false
		}
	}

	if len(p.Sectors) > 0 && !contains(p.Sectors, t.Sector) {
		return false
	}
	if len(p.Industries) > 0 && !contains(p.Industries, t.Industry) {
		return false
	}
	if len(p.Exchanges) > 0 && !contains(p.Exchanges, t.Exchange) {
		return false
	}

	if session == domain.SessionPostMarket {
		if !checkMinMax(t.PMChangePercent, p.MinPostMarketChangePercent, p.MaxPostMarketChangePercent, true) {
			return false
		}
		if !checkMinMax(ptr(t.PMVolume), p.MinPostMarketVolume, p.MaxPostMarketVolume, false) {
			return false
		}
	}

	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Passes reports whether t passes this single filter, honoring the
// enabled flag and session applicability (spec §4.5).
func (f Filter) Passes(t *domain.EnrichedTicker, session domain.Session) bool {
	if !f.Enabled {
		return true
	}
	if !f.AppliesToSession(session) {
		return true
	}
	return passesParameters(t, f.Parameters, session)
}

// Engine evaluates a fixed, reloadable set of filters against enriched
// tickers.
type Engine struct {
	filters []Filter
}

// NewEngine constructs an Engine with an initial filter set.
func NewEngine(filters []Filter) *Engine {
	return &Engine{filters: filters}
}

// Reload atomically swaps the active filter set, used when the
// Warehouse signals a filter change (spec §4.5 "reloaded on a signal").
func (e *Engine) Reload(filters []Filter) {
	e.filters = filters
}

// PassesAll reports whether t passes every enabled filter applicable
// to session (spec §4.5). Early-exits on the first failing filter.
func (e *Engine) PassesAll(t *domain.EnrichedTicker, session domain.Session) bool {
	for _, f := range e.filters {
		if !f.Passes(t, session) {
			return false
		}
	}
	return true
}
