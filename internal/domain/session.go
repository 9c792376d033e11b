package domain

// Session is one of the four market sessions tracked by the Market Session
// Detector (spec §3, §4.8). The ordering below encodes the forward-only
// invariant PRE_MARKET ≺ MARKET_OPEN ≺ POST_MARKET ≺ CLOSED within a
// trading date.
type Session int

const (
	SessionPreMarket Session = iota
	SessionMarketOpen
	SessionPostMarket
	SessionClosed
)

// String renders the session the way it appears on the wire and in logs.
func (s Session) String() string {
	switch s {
	case SessionPreMarket:
		return "PRE_MARKET"
	case SessionMarketOpen:
		return "MARKET_OPEN"
	case SessionPostMarket:
		return "POST_MARKET"
	case SessionClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Precedes reports whether s comes strictly before other in the
// within-day ordering PRE_MARKET ≺ MARKET_OPEN ≺ POST_MARKET ≺ CLOSED.
func (s Session) Precedes(other Session) bool {
	return int(s) < int(other)
}
