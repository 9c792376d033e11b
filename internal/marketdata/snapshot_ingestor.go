package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/equiscan/internal/bus"
	"github.com/aristath/equiscan/internal/domain"
	"github.com/aristath/equiscan/internal/events"
)

// LatestSnapshotKey is the single-slot Bus key the Snapshot Ingestor
// owns exclusively (spec §4.12 "shared-resource policy").
const LatestSnapshotKey = "snapshot:latest"

const snapshotTTL = 60 * time.Second

// LatestSnapshot is the payload stored under LatestSnapshotKey.
type LatestSnapshot struct {
	Rows      []domain.SnapshotRow `json:"rows"`
	Timestamp time.Time            `json:"timestamp"`
}

// SnapshotIngestor pulls the vendor full-market snapshot on a fixed
// cadence, drops sub-floor rows, and publishes the surviving list to
// the Bus (spec §4.1).
type SnapshotIngestor struct {
	client *VendorClient
	bus    *bus.Bus
	events *events.Bus
	log    zerolog.Logger
	cadence time.Duration
}

// NewSnapshotIngestor constructs a SnapshotIngestor polling every
// cadence.
func NewSnapshotIngestor(client *VendorClient, b *bus.Bus, eventBus *events.Bus, cadence time.Duration, log zerolog.Logger) *SnapshotIngestor {
	return &SnapshotIngestor{
		client:  client,
		bus:     b,
		events:  eventBus,
		cadence: cadence,
		log:     log.With().Str("component", "snapshot_ingestor").Logger(),
	}
}

// Run polls until ctx is cancelled.
func (s *SnapshotIngestor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cadence)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *SnapshotIngestor) tick(ctx context.Context) {
	published, err := s.FetchAndPublish(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("snapshot fetch failed")
		if s.events != nil {
			s.events.EmitError("snapshot_ingestor", err, nil)
		}
		return
	}
	s.log.Debug().Int("published", published).Msg("snapshot published")
}

// FetchAndPublish performs one fetch_snapshot cycle: pull, filter by
// the $0.50 admissible-price floor, and write the single "latest
// snapshot" key with a 60s TTL. Returns the published-count contract
// from spec §4.1.
func (s *SnapshotIngestor) FetchAndPublish(ctx context.Context) (int, error) {
	result, err := s.client.FetchSnapshot(ctx)
	if err != nil {
		return 0, err
	}

	surviving := make([]domain.SnapshotRow, 0, len(result.Rows))
	for _, row := range result.Rows {
		if row.CurrentPrice() < domain.MinAdmissiblePrice {
			continue
		}
		surviving = append(surviving, row)
	}

	if result.MalformedCount > 0 {
		s.log.Warn().Int("malformed", result.MalformedCount).Msg("snapshot contained malformed rows")
	}

	payload := LatestSnapshot{Rows: surviving, Timestamp: result.FetchedAt}
	if err := s.bus.Set(ctx, LatestSnapshotKey, payload, snapshotTTL); err != nil {
		return 0, err
	}

	return len(surviving), nil
}
