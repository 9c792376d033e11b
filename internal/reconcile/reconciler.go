// Package reconcile implements the Subscription Reconciler (spec
// §4.10): it watches the Scanner's per-category rankings, derives the
// set of symbols that ought to be streaming live data, and emits
// subscribe/unsubscribe commands to the WebSocket Ingestor.
package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/equiscan/internal/bus"
	"github.com/aristath/equiscan/internal/delta"
	"github.com/aristath/equiscan/internal/domain"
	"github.com/aristath/equiscan/internal/marketdata"
)

// ActiveSymbolsKey is the Bus set of symbols the Reconciler currently
// believes are subscribed (spec §4.10 "maintains a Bus set of
// currently-active symbols").
const ActiveSymbolsKey = "subscriptions:active"

// SessionSource is satisfied by internal/session.Detector. The
// Reconciler consults it so a session transition to CLOSED suppresses
// subscription churn (spec §8) while leaving the live connection alone.
type SessionSource interface {
	Current() (domain.Session, string)
}

const pollInterval = 5 * time.Second

// commandStreamMaxLen bounds CommandStream the same way the Delta
// Engine bounds ranking.deltas, so a stalled Ingestor consumer can't
// grow it unbounded.
const commandStreamMaxLen = 10_000

// Reconciler diffs the union of per-category rankings against the
// previously-emitted subscription set and drives the WebSocket
// Ingestor's live subscriptions through CommandStream.
type Reconciler struct {
	bus            *bus.Bus
	log            zerolog.Logger
	subscriberCap  int
	categories     []domain.Category
	previousActive map[string]bool
	sessions       SessionSource
}

// NewReconciler builds a Reconciler. subscriberCap <= 0 disables
// truncation (spec §4.10 "Vendor subscription cap"). sessions may be
// nil, in which case Tick never suppresses subscription churn (e.g. in
// tests exercising the diff logic directly).
func NewReconciler(b *bus.Bus, categories []domain.Category, subscriberCap int, sessions SessionSource, log zerolog.Logger) *Reconciler {
	if categories == nil {
		categories = domain.AllCategories
	}
	return &Reconciler{
		bus:            b,
		log:            log.With().Str("component", "subscription_reconciler").Logger(),
		subscriberCap:  subscriberCap,
		categories:     categories,
		previousActive: make(map[string]bool),
		sessions:       sessions,
	}
}

// Run polls the category rankings on pollInterval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	if err := r.Tick(ctx); err != nil {
		r.log.Warn().Err(err).Msg("initial reconcile tick failed")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				r.log.Warn().Err(err).Msg("reconcile tick failed")
			}
		}
	}
}

// Tick reads every category's current ranking, builds the desired
// symbol set, diffs it against the previous tick, and emits the
// resulting subscribe/unsubscribe commands. While the session is
// CLOSED, the connection is left alone and no commands are emitted
// (spec §8 "maintain the connection but suppress subscription churn").
func (r *Reconciler) Tick(ctx context.Context) error {
	if r.sessions != nil {
		if session, _ := r.sessions.Current(); session == domain.SessionClosed {
			return nil
		}
	}

	desired, err := r.desiredSymbols(ctx)
	if err != nil {
		return err
	}

	toSubscribe, toUnsubscribe := diffSymbolSets(r.previousActive, desired)

	for _, symbol := range toSubscribe {
		if err := r.emitCommand(ctx, "subscribe", symbol); err != nil {
			r.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to emit subscribe command")
			continue
		}
		if err := r.bus.SAdd(ctx, ActiveSymbolsKey, 0, symbol); err != nil {
			r.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to record active symbol")
		}
	}
	for _, symbol := range toUnsubscribe {
		if err := r.emitCommand(ctx, "unsubscribe", symbol); err != nil {
			r.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to emit unsubscribe command")
			continue
		}
		if err := r.bus.SRem(ctx, ActiveSymbolsKey, symbol); err != nil {
			r.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to clear active symbol")
		}
	}

	r.previousActive = make(map[string]bool, len(desired))
	for s := range desired {
		r.previousActive[s] = true
	}
	return nil
}

// desiredSymbols reads every category's ranking and reduces it to the
// capped, aggregate-ranked desired symbol set.
func (r *Reconciler) desiredSymbols(ctx context.Context) (map[string]bool, error) {
	rankings := make(map[domain.Category][]domain.EnrichedTicker, len(r.categories))

	for _, category := range r.categories {
		var ranking []domain.EnrichedTicker
		if err := r.bus.Get(ctx, delta.RankingKey(category), &ranking); err != nil {
			if bus.IsMiss(err) {
				continue
			}
			return nil, err
		}
		rankings[category] = ranking
	}

	symbols := rankSymbolsByAggregateRank(rankings)
	if r.subscriberCap > 0 && len(symbols) > r.subscriberCap {
		symbols = symbols[:r.subscriberCap]
	}

	desired := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		desired[s] = true
	}
	return desired, nil
}

// rankSymbolsByAggregateRank accumulates each symbol's best (lowest)
// rank across all category rankings and orders symbols by that
// aggregate rank, symbol ascending as a tiebreak (spec §4.10 "ordering
// symbols by aggregate category rank").
func rankSymbolsByAggregateRank(rankings map[domain.Category][]domain.EnrichedTicker) []string {
	bestRank := make(map[string]int)
	for _, ranking := range rankings {
		for i, row := range ranking {
			rank := i + 1
			if prev, ok := bestRank[row.Symbol]; !ok || rank < prev {
				bestRank[row.Symbol] = rank
			}
		}
	}

	symbols := make([]string, 0, len(bestRank))
	for s := range bestRank {
		symbols = append(symbols, s)
	}
	sort.Slice(symbols, func(i, j int) bool {
		if bestRank[symbols[i]] != bestRank[symbols[j]] {
			return bestRank[symbols[i]] < bestRank[symbols[j]]
		}
		return symbols[i] < symbols[j]
	})
	return symbols
}

// diffSymbolSets returns the symbols to subscribe (present in desired
// but not previous) and unsubscribe (present in previous but not
// desired), both sorted for deterministic command ordering.
func diffSymbolSets(previous, desired map[string]bool) (toSubscribe, toUnsubscribe []string) {
	for s := range desired {
		if !previous[s] {
			toSubscribe = append(toSubscribe, s)
		}
	}
	for s := range previous {
		if !desired[s] {
			toUnsubscribe = append(toUnsubscribe, s)
		}
	}
	sort.Strings(toSubscribe)
	sort.Strings(toUnsubscribe)
	return toSubscribe, toUnsubscribe
}

func (r *Reconciler) emitCommand(ctx context.Context, action, symbol string) error {
	cmd := marketdata.Command{Action: action, Symbol: symbol}
	_, err := r.bus.AddToStream(ctx, marketdata.CommandStream, cmd, commandStreamMaxLen)
	return err
}
