package scanner

import (
	"math"
	"sort"

	"github.com/aristath/equiscan/internal/domain"
)

// categoryDefinition pairs a category's membership predicate with its
// per-category sort key (spec §4.5 "Category assignment", "Per-category
// sort key").
type categoryDefinition struct {
	category  domain.Category
	predicate func(*domain.EnrichedTicker) bool
	sortKey   func(*domain.EnrichedTicker) float64
	ascending bool
}

func gteOrFalse(v *float64, bound float64) bool  { return v != nil && *v >= bound }
func lteOrFalse(v *float64, bound float64) bool  { return v != nil && *v <= bound }
func keyOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

var categoryDefinitions = []categoryDefinition{
	{
		category:  domain.CategoryGappersUp,
		predicate: func(t *domain.EnrichedTicker) bool { return gteOrFalse(t.GapFromPrevClose, 2) },
		sortKey:   func(t *domain.EnrichedTicker) float64 { return keyOrZero(t.GapFromPrevClose) },
		ascending: false,
	},
	{
		category:  domain.CategoryGappersDown,
		predicate: func(t *domain.EnrichedTicker) bool { return lteOrFalse(t.GapFromPrevClose, -2) },
		sortKey:   func(t *domain.EnrichedTicker) float64 { return keyOrZero(t.GapFromPrevClose) },
		ascending: true,
	},
	{
		category: domain.CategoryMomentumUp,
		predicate: func(t *domain.EnrichedTicker) bool {
			if !gteOrFalse(t.Chg5Min, 1.5) {
				return false
			}
			if t.IntradayHigh <= 0 || (t.Price-t.IntradayHigh)/t.IntradayHigh < -0.02 {
				return false
			}
			if t.VWAP == nil || t.Price <= *t.VWAP {
				return false
			}
			return gteOrFalse(t.RVOL, 5.0)
		},
		sortKey:   func(t *domain.EnrichedTicker) float64 { return keyOrZero(t.Chg5Min) },
		ascending: false,
	},
	{
		category:  domain.CategoryMomentumDown,
		predicate: func(t *domain.EnrichedTicker) bool { return lteOrFalse(t.ChangeTotal, -3) },
		sortKey:   func(t *domain.EnrichedTicker) float64 { return keyOrZero(t.ChangeTotal) },
		ascending: true,
	},
	{
		category:  domain.CategoryWinners,
		predicate: func(t *domain.EnrichedTicker) bool { return gteOrFalse(t.ChangeTotal, 5) },
		sortKey:   func(t *domain.EnrichedTicker) float64 { return keyOrZero(t.ChangeTotal) },
		ascending: false,
	},
	{
		category:  domain.CategoryLosers,
		predicate: func(t *domain.EnrichedTicker) bool { return lteOrFalse(t.ChangeTotal, -5) },
		sortKey:   func(t *domain.EnrichedTicker) float64 { return keyOrZero(t.ChangeTotal) },
		ascending: true,
	},
	{
		category:  domain.CategoryAnomalies,
		predicate: func(t *domain.EnrichedTicker) bool { return gteOrFalse(t.TradeZScore, 3.0) },
		sortKey:   func(t *domain.EnrichedTicker) float64 { return keyOrZero(t.TradeZScore) },
		ascending: false,
	},
	{
		category:  domain.CategoryHighVolume,
		predicate: func(t *domain.EnrichedTicker) bool { return gteOrFalse(t.RVOL, 2.0) },
		sortKey:   func(t *domain.EnrichedTicker) float64 { return t.VolumeToday },
		ascending: false,
	},
	{
		category: domain.CategoryNewHighs,
		predicate: func(t *domain.EnrichedTicker) bool {
			return t.IntradayHigh > 0 && t.Price >= 0.999*t.IntradayHigh
		},
		sortKey: func(t *domain.EnrichedTicker) float64 {
			if t.IntradayHigh <= 0 {
				return math.MaxFloat64
			}
			return math.Abs(t.Price-t.IntradayHigh) / t.IntradayHigh
		},
		ascending: true,
	},
	{
		category: domain.CategoryNewLows,
		predicate: func(t *domain.EnrichedTicker) bool {
			return t.IntradayLow > 0 && t.Price <= 1.001*t.IntradayLow
		},
		sortKey: func(t *domain.EnrichedTicker) float64 {
			if t.IntradayLow <= 0 {
				return math.MaxFloat64
			}
			return math.Abs(t.Price-t.IntradayLow) / t.IntradayLow
		},
		ascending: true,
	},
	{
		category: domain.CategoryReversals,
		predicate: func(t *domain.EnrichedTicker) bool {
			up := gteOrFalse(t.GapFromPrevClose, 2) && lteOrFalse(t.GapFromOpen, -1)
			down := lteOrFalse(t.GapFromPrevClose, -2) && gteOrFalse(t.GapFromOpen, 1)
			return up || down
		},
		sortKey:   func(t *domain.EnrichedTicker) float64 { return t.Score },
		ascending: false,
	},
	{
		category: domain.CategoryPostMarket,
		predicate: func(t *domain.EnrichedTicker) bool {
			if t.Session != domain.SessionPostMarket {
				return false
			}
			if t.PMVolume >= 20_000 {
				return true
			}
			return t.PMChangePercent != nil && math.Abs(*t.PMChangePercent) >= 0.5
		},
		sortKey: func(t *domain.EnrichedTicker) float64 {
			if t.PMChangePercent == nil {
				return 0
			}
			return math.Abs(*t.PMChangePercent)
		},
		ascending: false,
	},
}

// Categorize evaluates every category once per row (spec §4.5
// "Complexity": a single pass over rows followed by a per-category
// sort) and caps each category's list at limit (a non-positive limit
// means domain.DefaultCategoryLimit; a limit above
// domain.MaxCategoryLimit is cut to it).
func Categorize(rows []domain.EnrichedTicker, limit int) map[domain.Category][]domain.EnrichedTicker {
	if limit <= 0 {
		limit = domain.DefaultCategoryLimit
	}
	if limit > domain.MaxCategoryLimit {
		limit = domain.MaxCategoryLimit
	}

	buckets := make(map[domain.Category][]domain.EnrichedTicker, len(categoryDefinitions))

	for i := range rows {
		row := rows[i]

		var matched []domain.Category
		for _, def := range categoryDefinitions {
			if def.predicate(&row) {
				matched = append(matched, def.category)
			}
		}
		if len(matched) == 0 {
			continue
		}
		row.Categories = matched

		for _, cat := range matched {
			buckets[cat] = append(buckets[cat], row)
		}
	}

	for _, def := range categoryDefinitions {
		rows := buckets[def.category]
		sort.SliceStable(rows, func(i, j int) bool {
			ki, kj := def.sortKey(&rows[i]), def.sortKey(&rows[j])
			if ki != kj {
				if def.ascending {
					return ki < kj
				}
				return ki > kj
			}
			return rows[i].Symbol < rows[j].Symbol
		})
		if len(rows) > limit {
			rows = rows[:limit]
		}
		buckets[def.category] = rows
	}

	return buckets
}
