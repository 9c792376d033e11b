package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/equiscan/internal/bus"
)

const statusTTL = 7 * 24 * time.Hour

func statusKey(date string) string   { return fmt.Sprintf("maintenance:status:%s", date) }
func executedKey(date string) string { return fmt.Sprintf("maintenance:executed:%s", date) }
func auditKey(date string) string    { return fmt.Sprintf("maintenance:audit:%s", date) }

// StateStore persists per-day task status and completion markers. It is
// a narrow interface (teacher's scheduler/interfaces.go pattern) so the
// Orchestrator can be exercised in tests against an in-memory fake
// instead of a live Bus.
type StateStore interface {
	SetStatus(ctx context.Context, date, task string, status Status) error
	Statuses(ctx context.Context, date string) (map[string]Status, error)
	MarkExecuted(ctx context.Context, date string) error
	IsExecuted(ctx context.Context, date string) (bool, error)
	WriteAudit(ctx context.Context, date, report string) error
}

// busStateStore is the production StateStore, backed by Redis hashes and
// a dated completion flag, each carrying a 7-day TTL (spec §4.9 "State").
type busStateStore struct {
	bus *bus.Bus
}

// NewBusStateStore constructs the Bus-backed StateStore.
func NewBusStateStore(b *bus.Bus) StateStore {
	return &busStateStore{bus: b}
}

func (s *busStateStore) SetStatus(ctx context.Context, date, task string, status Status) error {
	return s.bus.HSetMsgpack(ctx, statusKey(date), task, statusEntry{Status: string(status)}, statusTTL)
}

func (s *busStateStore) Statuses(ctx context.Context, date string) (map[string]Status, error) {
	raw, err := s.bus.HGetAll(ctx, statusKey(date))
	if err != nil {
		return nil, err
	}
	out := make(map[string]Status, len(raw))
	for task := range raw {
		var entry statusEntry
		if err := s.bus.HGetMsgpack(ctx, statusKey(date), task, &entry); err != nil {
			continue
		}
		out[task] = Status(entry.Status)
	}
	return out, nil
}

func (s *busStateStore) MarkExecuted(ctx context.Context, date string) error {
	return s.bus.Set(ctx, executedKey(date), true, statusTTL)
}

func (s *busStateStore) IsExecuted(ctx context.Context, date string) (bool, error) {
	var executed bool
	err := s.bus.Get(ctx, executedKey(date), &executed)
	if err != nil {
		if bus.IsMiss(err) {
			return false, nil
		}
		return false, err
	}
	return executed, nil
}

func (s *busStateStore) WriteAudit(ctx context.Context, date, report string) error {
	return s.bus.Set(ctx, auditKey(date), report, statusTTL)
}

// statusEntry is the msgpack-encoded hash field value.
type statusEntry struct {
	Status string `msgpack:"status"`
}
