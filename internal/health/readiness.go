package health

import (
	"context"
	"fmt"
)

// Pinger is satisfied by internal/bus.Bus and internal/warehouse.Warehouse.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionMonitor is satisfied by internal/marketdata.WebSocketIngestor.
// It reports whether the vendor feed has entered the terminal CLOSED
// state (spec §8: fatal auth rejection, or reconnects exhausted), which
// must fail readiness rather than go unnoticed.
type ConnectionMonitor interface {
	FailedPermanently() (bool, error)
}

// ReadinessChecker reports whether the process's hard dependencies
// (Bus, Warehouse, vendor WebSocket feed) are reachable, for the
// /readyz probe.
type ReadinessChecker struct {
	bus        Pinger
	warehouse  Pinger
	wsIngestor ConnectionMonitor
}

// NewReadinessChecker builds a ReadinessChecker over the given
// dependencies. Any of them may be nil to skip that check (e.g. tests).
func NewReadinessChecker(bus, warehouse Pinger, wsIngestor ConnectionMonitor) *ReadinessChecker {
	return &ReadinessChecker{bus: bus, warehouse: warehouse, wsIngestor: wsIngestor}
}

// Ready returns nil if every wired dependency responds and the vendor
// feed hasn't given up for good, otherwise the first error encountered.
func (r *ReadinessChecker) Ready(ctx context.Context) error {
	if r.bus != nil {
		if err := r.bus.Ping(ctx); err != nil {
			return fmt.Errorf("bus unreachable: %w", err)
		}
	}
	if r.warehouse != nil {
		if err := r.warehouse.Ping(ctx); err != nil {
			return fmt.Errorf("warehouse unreachable: %w", err)
		}
	}
	if r.wsIngestor != nil {
		if failed, cause := r.wsIngestor.FailedPermanently(); failed {
			return fmt.Errorf("websocket ingestor closed permanently: %w", cause)
		}
	}
	return nil
}
