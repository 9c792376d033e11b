package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/equiscan/internal/events"
)

// streamedEventTypes is the set of in-process events forwarded to SSE
// clients, mirroring what external consumers of this system's state
// actually care about (trading status, anomalies, maintenance runs) —
// the domain events, not every internal housekeeping signal.
var streamedEventTypes = []events.EventType{
	events.CategoryUpdated,
	events.DeltaBatchEmitted,
	events.SessionChanged,
	events.DayRolled,
	events.VendorConnectionLost,
	events.VendorConnectionRestored,
	events.SubscriptionReconciled,
	events.AnomalyDetected,
	events.MaintenanceTaskStarted,
	events.MaintenanceTaskCompleted,
	events.MaintenanceTaskFailed,
	events.MaintenanceRunCompleted,
	events.ErrorOccurred,
}

// handleEventsStream serves GET /api/events/stream as Server-Sent
// Events, adapted from the teacher's EventsStreamHandler (its log-file
// tailing concern doesn't apply here and is dropped).
func (s *Server) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.eventBus == nil {
		http.Error(w, "event bus not configured", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var allowed map[events.EventType]bool
	if typesFilter := r.URL.Query().Get("types"); typesFilter != "" {
		allowed = make(map[events.EventType]bool)
		for _, t := range strings.Split(typesFilter, ",") {
			allowed[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	s.log.Info().Str("remote", r.RemoteAddr).Msg("client connected to event stream")

	eventCh := make(chan *events.Event, 100)
	handler := func(e *events.Event) {
		if allowed != nil && !allowed[e.Type] {
			return
		}
		select {
		case eventCh <- e:
		default:
			s.log.Warn().Str("event_type", string(e.Type)).Msg("event channel full, dropping")
		}
	}
	for _, t := range streamedEventTypes {
		if allowed == nil || allowed[t] {
			s.eventBus.Subscribe(t, handler)
		}
	}

	fmt.Fprintf(w, "data: %s\n\n", encodeSSE(map[string]interface{}{"type": "connected"}))
	flusher.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("client disconnected from event stream")
			return
		case e := <-eventCh:
			fmt.Fprintf(w, "data: %s\n\n", encodeSSE(map[string]interface{}{
				"type":      string(e.Type),
				"module":    e.Module,
				"timestamp": e.Timestamp.Format(time.RFC3339),
				"data":      e.Data,
			}))
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, "data: %s\n\n", encodeSSE(map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			}))
			flusher.Flush()
		}
	}
}

func encodeSSE(v map[string]interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `{"error":"failed to encode event"}`
	}
	return string(data)
}
