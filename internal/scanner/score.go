package scanner

import "github.com/aristath/equiscan/internal/domain"

// Score computes the deterministic score for t: `10*rvol +
// 5*(volume_today/avg_volume_30d)`, each term contributing zero when
// its inputs are null, an avg_volume_30d of zero counting as missing
// (spec §4.5 "Scoring"). Only called for rows
// that already passed filtering.
func Score(t *domain.EnrichedTicker) float64 {
	var score float64
	if t.RVOL != nil {
		score += 10 * *t.RVOL
	}
	if t.AvgVolume30D > 0 {
		score += 5 * (t.VolumeToday / t.AvgVolume30D)
	}
	return score
}
