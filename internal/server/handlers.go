package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/equiscan/internal/bus"
	"github.com/aristath/equiscan/internal/domain"
)

// handleHealthz reports resource usage; never fails, matching the
// teacher's always-200 /health contract.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	var report interface{} = map[string]string{"status": "healthy"}
	if s.checker != nil {
		report = s.checker.Sample(r.Context())
	}
	s.writeJSON(w, http.StatusOK, report)
}

// handleReadyz reports 503 if the Bus or Warehouse is unreachable.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.readiness == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	if err := s.readiness.Ready(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// categorySnapshotResponse mirrors domain.CategoryRanking's Bus-stored
// shape, trimmed to what a polling client needs.
type categorySnapshotResponse struct {
	Category  string             `json:"category"`
	Sequence  int64              `json:"sequence"`
	Timestamp time.Time          `json:"timestamp"`
	Rows      []domain.RankedRow `json:"rows"`
}

// handleCategorySnapshot returns the latest full ranking for one
// category, read from the same ranking:{category} Bus key
// internal/delta writes (spec §9's sole-writer convention — this
// handler is a read-only consumer like internal/reconcile).
func (s *Server) handleCategorySnapshot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	category := domain.Category(name)
	if !s.categories[name] {
		http.Error(w, "unknown category", http.StatusNotFound)
		return
	}

	if s.bus == nil {
		http.Error(w, "bus not configured", http.StatusServiceUnavailable)
		return
	}

	var ranking domain.CategoryRanking
	key := "ranking:" + string(category)
	if err := s.bus.Get(r.Context(), key, &ranking); err != nil {
		if bus.IsMiss(err) {
			s.writeJSON(w, http.StatusOK, categorySnapshotResponse{Category: name})
			return
		}
		s.log.Error().Err(err).Str("category", name).Msg("category snapshot: bus read failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, categorySnapshotResponse{
		Category:  name,
		Sequence:  ranking.Sequence,
		Timestamp: ranking.Timestamp,
		Rows:      ranking.Rows,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode json response")
	}
}
