// Package enrichment implements the Enrichment Stage (spec §4.4): it
// joins the latest snapshot with metadata and the Analytics engines to
// produce the ephemeral EnrichedTicker rows the Scanner filters and
// ranks.
package enrichment

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/equiscan/internal/analytics"
	"github.com/aristath/equiscan/internal/bus"
	"github.com/aristath/equiscan/internal/domain"
	"github.com/aristath/equiscan/internal/events"
	"github.com/aristath/equiscan/internal/marketdata"
	"github.com/aristath/equiscan/internal/session"
)

// Engines bundles the Analytics Core components the Enrichment Stage
// reads from (spec §4.3 consumers, §4.4 attachment list).
type Engines struct {
	VWAP        *analytics.VWAPCache
	Volume      *analytics.VolumeWindowTracker
	Price       *analytics.PriceWindowTracker
	MinuteBars  *analytics.MinuteBarEngine
	RVOL        *analytics.RVOLCalculator
	ATR         *analytics.ATRCache
	Anomaly     *analytics.TradeAnomalyDetector
}

// Stage is the Enrichment Stage: one Tick reads the latest snapshot
// and produces a batch of EnrichedTicker rows.
type Stage struct {
	bus       *bus.Bus
	metadata  *MetadataResolver
	sessions  *session.Detector
	gaps      *GapTracker
	intraday  *IntradayTracker
	engines   Engines
	log       zerolog.Logger
}

// NewStage constructs a Stage. metadataCacheCap/metadataCacheTTL <= 0
// fall back to the spec defaults (§4.4).
func NewStage(b *bus.Bus, sessions *session.Detector, engines Engines, metadataCacheCap int, metadataCacheTTL time.Duration, log zerolog.Logger) *Stage {
	return &Stage{
		bus:      b,
		metadata: NewMetadataResolver(b, metadataCacheCap, metadataCacheTTL),
		sessions: sessions,
		gaps:     NewGapTracker(),
		intraday: NewIntradayTracker(),
		engines:  engines,
		log:      log.With().Str("component", "enrichment_stage").Logger(),
	}
}

// HandleDayRolled resets all per-symbol working state carried across
// ticks (gap latches, intraday high/low) — register as a
// events.DayRolled subscriber (spec §4.3 "Cancellation", §4.6 "Reset on
// day-changed event").
func (s *Stage) HandleDayRolled(*events.Event) {
	s.gaps.Reset()
	s.intraday.Reset()
}

// Tick reads the latest snapshot key, de-duplicates by symbol (first
// occurrence wins per spec §4.4), and enriches every surviving row.
func (s *Stage) Tick(ctx context.Context) ([]domain.EnrichedTicker, error) {
	var latest marketdata.LatestSnapshot
	if err := s.bus.Get(ctx, marketdata.LatestSnapshotKey, &latest); err != nil {
		if bus.IsMiss(err) {
			return nil, nil
		}
		return nil, err
	}

	rows := dedupeBySymbol(latest.Rows)

	symbols := make([]string, len(rows))
	for i, r := range rows {
		symbols[i] = r.Symbol
	}
	meta, err := s.metadata.Resolve(ctx, symbols)
	if err != nil {
		return nil, err
	}

	currentSession, _ := s.sessions.Current()

	enriched := make([]domain.EnrichedTicker, 0, len(rows))
	for _, row := range rows {
		enriched = append(enriched, s.enrichRow(ctx, row, meta[row.Symbol], currentSession))
	}
	return enriched, nil
}

func dedupeBySymbol(rows []domain.SnapshotRow) []domain.SnapshotRow {
	seen := make(map[string]bool, len(rows))
	out := make([]domain.SnapshotRow, 0, len(rows))
	for _, r := range rows {
		if seen[r.Symbol] {
			continue
		}
		seen[r.Symbol] = true
		out = append(out, r)
	}
	return out
}

func (s *Stage) enrichRow(ctx context.Context, row domain.SnapshotRow, meta domain.TickerMetadata, currentSession domain.Session) domain.EnrichedTicker {
	price := row.CurrentPrice()
	volume := row.CurrentVolume()

	t := domain.EnrichedTicker{
		Symbol:            row.Symbol,
		SnapshotTimestamp: row.SnapshotTimestamp,
		Session:           currentSession,
		Price:             price,
		DayOpen:           row.Day.Open,
		PrevClose:         row.PrevDay.Close,
		PrevVolume:        row.PrevDay.Volume,
		VolumeToday:       volume,
		Spread:            row.Quote.AskPrice - row.Quote.BidPrice,
		BidSize:           row.Quote.BidSize,
		AskSize:           row.Quote.AskSize,
		LastTradeTime:     row.Trade.Timestamp,

		CompanyName:  meta.CompanyName,
		Sector:       meta.Sector,
		Industry:     meta.Industry,
		Exchange:     meta.Exchange,
		MarketCap:    meta.MarketCap,
		FreeFloat:    meta.FreeFloat,
		AvgVolume10D: meta.AvgVolume10D,
		AvgVolume3M:  meta.AvgVolume3M,
		AvgVolume30D: meta.AvgVolume30D,
		IsETF:        meta.IsETF,

		DataAgeSeconds: dataAgeSeconds(row.SnapshotTimestamp),
	}

	if row.Quote.AskPrice > 0 {
		t.DistanceNBBO = distanceFromNBBO(price, row.Quote.BidPrice, row.Quote.AskPrice)
	}

	if currentSession == domain.SessionPostMarket {
		t.PMVolume = volume
		t.PMChangePercent = domain.GapFromPrevClosePct(price, row.Day.Close)
	}

	if s.engines.VWAP != nil {
		t.VWAP = s.engines.VWAP.Get(row.Symbol)
	}
	if s.engines.Volume != nil {
		t.Vol5Min = s.engines.Volume.Vol5Min(row.Symbol)
	}
	if s.engines.Price != nil {
		t.Chg5Min = s.engines.Price.Chg5Min(row.Symbol)
	}
	if s.engines.RVOL != nil {
		t.RVOL = s.engines.RVOL.Compute(ctx, row.Symbol, slotKey(row.SnapshotTimestamp), volume)
	}
	if s.engines.ATR != nil {
		t.ATR, t.ATRPercent = s.engines.ATR.Get(ctx, row.Symbol)
	}
	if s.engines.Anomaly != nil {
		t.TradeZScore = s.engines.Anomaly.ZScore(ctx, row.Symbol, float64(row.Day.Trades))
	}

	high, low := s.intraday.Observe(row.Symbol, price)
	if s.engines.MinuteBars != nil {
		if bar, ok := s.engines.MinuteBars.LastClosedBar(row.Symbol); ok {
			s.intraday.ObserveBar(row.Symbol, bar.High, bar.Low)
			high, low = s.intraday.Observe(row.Symbol, price)
			t.MinuteVolume = bar.Volume
		}
	}
	t.IntradayHigh = high
	t.IntradayLow = low

	s.applyGaps(&t, currentSession, row.Day.Close)

	return t
}

// slotKey buckets a timestamp to the "HH:MM" RVOL baseline slot.
func slotKey(at time.Time) string {
	return at.Format("15:04")
}

func dataAgeSeconds(snapshotAt time.Time) float64 {
	if snapshotAt.IsZero() {
		return 0
	}
	return time.Since(snapshotAt).Seconds()
}

// distanceFromNBBO returns price's distance from the midpoint of the
// NBBO as a fraction of the midpoint (spec §4.5 "distance from NBBO").
func distanceFromNBBO(price, bid, ask float64) float64 {
	mid := (bid + ask) / 2
	if mid <= 0 {
		return 0
	}
	return (price - mid) / mid
}

// applyGaps implements the §4.4 "Gap derivation (by session)" rules.
func (s *Stage) applyGaps(t *domain.EnrichedTicker, currentSession domain.Session, dayCloseAt4pm float64) {
	t.GapFromPrevClose = domain.GapFromPrevClosePct(t.Price, t.PrevClose)
	t.GapFromOpen = domain.GapFromOpenPct(t.Price, t.DayOpen)
	t.ChangeTotal = t.GapFromPrevClose

	openGap, preMarketPeak, runningMax := s.gaps.Observe(t.Symbol, currentSession, t.GapFromPrevClose, t.SnapshotTimestamp)
	_ = preMarketPeak

	switch currentSession {
	case domain.SessionPreMarket:
		t.GapPremarket = t.GapFromPrevClose
	case domain.SessionMarketOpen:
		t.GapAtOpen = openGap
	case domain.SessionPostMarket:
		// day_close_at_4pm is the vendor's running day-bar close, which
		// stops advancing once the regular session ends.
		t.GapPostmarket = domain.GapFromPrevClosePct(t.Price, dayCloseAt4pm)
	case domain.SessionClosed:
		t.GapPremarket = nil
		t.GapAtOpen = nil
		t.GapPostmarket = nil
	}

	maxAbs := runningMax
	t.GapHighWater = &maxAbs
	if t.GapFromPrevClose != nil {
		t.GapDirection = domain.GapDirectionOf(*t.GapFromPrevClose)
		abs := *t.GapFromPrevClose
		if abs < 0 {
			abs = -abs
		}
		t.GapSizeClass = domain.ClassifyGapSize(abs)
	}
}
