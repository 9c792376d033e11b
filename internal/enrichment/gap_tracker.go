package enrichment

import (
	"sync"
	"time"

	"github.com/aristath/equiscan/internal/domain"
)

// gapState is the per-symbol latch state kept across ticks within a
// trading day (spec §4.6).
type gapState struct {
	lastSession       domain.Session
	preMarketPeakAbs  float64
	openGap           *float64
	runningMaxAbsGap  float64
	currentGap        float64
	lastUpdate        time.Time
	openGapLatched    bool
}

// GapTracker latches the gap-at-open value on the first observed
// PRE_MARKET -> MARKET_OPEN transition per symbol, and keeps the
// running pre-market peak and intraday maximum absolute gap (spec
// §4.6). State is reset wholesale on a day-changed event, since
// per-symbol identity does not persist across trading days.
type GapTracker struct {
	mu    sync.Mutex
	state map[string]*gapState
}

// NewGapTracker constructs an empty tracker.
func NewGapTracker() *GapTracker {
	return &GapTracker{state: make(map[string]*gapState)}
}

// Observe records one symbol's session and gap-from-prev-close for the
// current tick, returning the latched gap-at-open (nil until the
// symbol's first PRE_MARKET->MARKET_OPEN edge, then the value latched
// on that edge for every later tick), and the running peaks.
func (t *GapTracker) Observe(symbol string, session domain.Session, gapFromPrevClose *float64, at time.Time) (openGap *float64, preMarketPeakAbs, runningMaxAbsGap float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.state[symbol]
	if !ok {
		st = &gapState{lastSession: session}
		t.state[symbol] = st
	}

	if gapFromPrevClose != nil {
		abs := absFloat(*gapFromPrevClose)
		st.currentGap = *gapFromPrevClose
		if abs > st.runningMaxAbsGap {
			st.runningMaxAbsGap = abs
		}
		if session == domain.SessionPreMarket && abs > st.preMarketPeakAbs {
			st.preMarketPeakAbs = abs
		}
	}
	st.lastUpdate = at

	transitioned := st.lastSession == domain.SessionPreMarket && session == domain.SessionMarketOpen
	if transitioned && !st.openGapLatched && gapFromPrevClose != nil {
		v := *gapFromPrevClose
		st.openGap = &v
		st.openGapLatched = true
	}

	st.lastSession = session

	return st.openGap, st.preMarketPeakAbs, st.runningMaxAbsGap
}

// Reset drops all per-symbol state (spec §4.6: "Reset on day-changed
// event").
func (t *GapTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = make(map[string]*gapState)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
