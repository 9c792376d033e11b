package delta

import "github.com/aristath/equiscan/internal/domain"

// Diff computes the delta records between oldRanking and newRanking
// for one category (spec §4.7 "Inputs"/"Output"). Order within the
// returned slice is always removes, then adds, then reranks, then
// updates (spec §4.7 "Idempotence").
func Diff(oldRanking, newRanking []domain.EnrichedTicker) []Record {
	oldIndex := make(map[string]int, len(oldRanking))
	for i, t := range oldRanking {
		oldIndex[t.Symbol] = i
	}
	newIndex := make(map[string]int, len(newRanking))
	for i, t := range newRanking {
		newIndex[t.Symbol] = i
	}

	var removes, adds, reranks, updates []Record

	for symbol, oldPos := range oldIndex {
		if _, ok := newIndex[symbol]; !ok {
			removes = append(removes, Record{Action: ActionRemove, Symbol: symbol, OldRank: oldPos + 1})
		}
	}

	for symbol, newPos := range newIndex {
		if _, ok := oldIndex[symbol]; !ok {
			row := newRanking[newPos]
			adds = append(adds, Record{Action: ActionAdd, Symbol: symbol, Rank: newPos + 1, Data: &row})
		}
	}

	for symbol, newPos := range newIndex {
		oldPos, ok := oldIndex[symbol]
		if !ok {
			continue
		}
		if oldPos != newPos {
			reranks = append(reranks, Record{
				Action: ActionRerank, Symbol: symbol, OldRank: oldPos + 1, Rank: newPos + 1,
			})
		} else if dataChanged(oldRanking[oldPos], newRanking[newPos]) {
			row := newRanking[newPos]
			updates = append(updates, Record{Action: ActionUpdate, Symbol: symbol, Rank: newPos + 1, Data: &row})
		}
	}

	out := make([]Record, 0, len(removes)+len(adds)+len(reranks)+len(updates))
	out = append(out, removes...)
	out = append(out, adds...)
	out = append(out, reranks...)
	out = append(out, updates...)
	return out
}

// dataChanged reports whether any watched field moved by more than its
// threshold (spec §4.7 "update"): price by >= $0.01, volume by >=
// 1000 shares, change% by >= 0.01pp, or RVOL by >= 0.05.
func dataChanged(oldRow, newRow domain.EnrichedTicker) bool {
	if abs(newRow.Price-oldRow.Price) >= priceThreshold {
		return true
	}
	if abs(newRow.VolumeToday-oldRow.VolumeToday) >= volumeThreshold {
		return true
	}
	if changedByAtLeast(oldRow.ChangeTotal, newRow.ChangeTotal, changeThreshold) {
		return true
	}
	if changedByAtLeast(oldRow.RVOL, newRow.RVOL, rvolThreshold) {
		return true
	}
	return false
}

func changedByAtLeast(oldVal, newVal *float64, threshold float64) bool {
	if oldVal == nil || newVal == nil {
		return oldVal != newVal
	}
	return abs(*newVal-*oldVal) >= threshold
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
