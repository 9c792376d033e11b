package delta

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/equiscan/internal/bus"
	"github.com/aristath/equiscan/internal/domain"
)

// RankingDeltasStream is the Bus stream every Engine.Apply call writes
// a Batch to, for consumers such as the SSE server (spec §4.7).
const RankingDeltasStream = "ranking.deltas"

const rankingDeltasStreamMaxLen = 20_000

// RankingKey is the Bus key holding the latest full ranking for
// category. Exported so the Subscription Reconciler (spec §4.10) can
// read it without duplicating the naming scheme.
func RankingKey(category domain.Category) string { return fmt.Sprintf("ranking:%s", category) }

func sequenceKey(category domain.Category) string { return fmt.Sprintf("sequence:%s", category) }

// Engine owns the previous-tick ranking per category and the
// monotonically-increasing per-category sequence counters (spec §9:
// the Delta Engine is the exclusive writer of `ranking:{category}` and
// `sequence:{category}`).
type Engine struct {
	bus *bus.Bus
	log zerolog.Logger

	mu       sync.Mutex
	previous map[domain.Category][]domain.EnrichedTicker
	sequence map[domain.Category]int64
}

// NewEngine constructs an Engine writing to b.
func NewEngine(b *bus.Bus, log zerolog.Logger) *Engine {
	return &Engine{
		bus:      b,
		log:      log.With().Str("component", "delta_engine").Logger(),
		previous: make(map[domain.Category][]domain.EnrichedTicker),
		sequence: make(map[domain.Category]int64),
	}
}

// Apply diffs newRanking against the previous tick's ranking for
// category, writes the full snapshot + sequence to the Bus, and
// publishes the batch to RankingDeltasStream. The first call for a
// category always emits a full snapshot record (spec §4.7 "First
// emission").
func (e *Engine) Apply(ctx context.Context, category domain.Category, newRanking []domain.EnrichedTicker, at time.Time) (Batch, error) {
	e.mu.Lock()
	oldRanking, hasPrevious := e.previous[category]
	e.sequence[category]++
	seq := e.sequence[category]
	e.previous[category] = newRanking
	e.mu.Unlock()

	var records []Record
	if !hasPrevious {
		records = make([]Record, 0, len(newRanking))
		for i := range newRanking {
			row := newRanking[i]
			records = append(records, Record{Action: ActionSnapshot, Symbol: row.Symbol, Rank: i + 1, Data: &row})
		}
	} else {
		records = Diff(oldRanking, newRanking)
	}

	batch := Batch{Category: category, Sequence: seq, Timestamp: at, Records: records}

	if e.bus == nil {
		return batch, nil
	}

	if err := e.bus.Set(ctx, RankingKey(category), newRanking, 0); err != nil {
		return batch, fmt.Errorf("delta: write ranking snapshot: %w", err)
	}
	if err := e.bus.Set(ctx, sequenceKey(category), seq, 0); err != nil {
		return batch, fmt.Errorf("delta: write sequence: %w", err)
	}
	if _, err := e.bus.AddToStream(ctx, RankingDeltasStream, batch, rankingDeltasStreamMaxLen); err != nil {
		return batch, fmt.Errorf("delta: publish batch: %w", err)
	}

	return batch, nil
}

// Reset drops all per-category state: the next Apply for each category
// emits a full snapshot at sequence 1.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.previous = make(map[domain.Category][]domain.EnrichedTicker)
	e.sequence = make(map[domain.Category]int64)
}
