package scanner

import (
	"sort"

	"github.com/aristath/equiscan/internal/domain"
)

// FilterAndScore is the Scanner's hot-loop: a single pass over rows,
// early-exiting on the first failing filter; only surviving rows are
// scored (spec §4.5 "Hot-loop structure"). Sorted by score descending,
// ties broken by symbol ascending, ranks assigned 1-based, and capped
// at maxEmitted (default domain.DefaultMaxEmittedRows).
func FilterAndScore(engine *Engine, rows []domain.EnrichedTicker, session domain.Session, maxEmitted int) []domain.EnrichedTicker {
	if maxEmitted <= 0 {
		maxEmitted = domain.DefaultMaxEmittedRows
	}

	survivors := make([]domain.EnrichedTicker, 0, len(rows))
	for i := range rows {
		row := rows[i]
		if !engine.PassesAll(&row, session) {
			continue
		}
		row.Score = Score(&row)
		survivors = append(survivors, row)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].Score != survivors[j].Score {
			return survivors[i].Score > survivors[j].Score
		}
		return survivors[i].Symbol < survivors[j].Symbol
	})

	for i := range survivors {
		survivors[i].Rank = i + 1
	}

	if len(survivors) > maxEmitted {
		survivors = survivors[:maxEmitted]
	}

	return survivors
}
