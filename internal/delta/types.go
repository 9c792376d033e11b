// Package delta implements the Delta Engine (spec §4.7): diffing two
// successive category rankings into a minimal, idempotent set of
// incremental records.
package delta

import (
	"time"

	"github.com/aristath/equiscan/internal/domain"
)

// Action is the kind of change a Record describes.
type Action string

const (
	ActionSnapshot Action = "snapshot"
	ActionAdd      Action = "add"
	ActionRemove   Action = "remove"
	ActionRerank   Action = "rerank"
	ActionUpdate   Action = "update"
)

// Record is one entry in a delta batch (spec §4.7 "Output").
type Record struct {
	Action  Action
	Symbol  string
	Rank    int
	OldRank int
	Data    *domain.EnrichedTicker
}

// Batch is a sequenced group of records for one category emitted
// together (spec §4.7: "Records emitted together carry one
// monotonically-incremented sequence and a timestamp").
type Batch struct {
	Category  domain.Category
	Sequence  int64
	Timestamp time.Time
	Records   []Record
}

// Price/volume/change%/RVOL thresholds below which an unchanged-rank
// row is not considered to have meaningfully updated (spec §4.7
// "update").
const (
	priceThreshold  = 0.01
	volumeThreshold = 1000.0
	changeThreshold = 0.01
	rvolThreshold   = 0.05
)
