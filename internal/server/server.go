// Package server provides the HTTP operational surface: health/readiness
// probes, a read-only category snapshot endpoint, and an SSE event
// stream. Adapted from aristath-sentinel/internal/server/server.go's
// chi router/middleware shape, trimmed to this system's much smaller
// scope (no auth, no business endpoints — those belong to the excluded
// gateway).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/equiscan/internal/bus"
	"github.com/aristath/equiscan/internal/events"
	"github.com/aristath/equiscan/internal/health"
)

// Config holds everything the server needs to build its routes.
type Config struct {
	Log        zerolog.Logger
	Port       int
	DevMode    bool
	Checker    *health.Checker
	Readiness  *health.ReadinessChecker
	EventBus   *events.Bus
	Bus        *bus.Bus
	Categories []string
}

// Server is the operational HTTP surface.
type Server struct {
	router *chi.Mux
	http   *http.Server
	log    zerolog.Logger

	checker    *health.Checker
	readiness  *health.ReadinessChecker
	eventBus   *events.Bus
	bus        *bus.Bus
	categories map[string]bool
}

// New builds a Server and wires its routes. Call Start to begin serving.
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		checker:   cfg.Checker,
		readiness: cfg.Readiness,
		eventBus:  cfg.EventBus,
		bus:       cfg.Bus,
	}

	s.categories = make(map[string]bool, len(cfg.Categories))
	for _, c := range cfg.Categories {
		s.categories[c] = true
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // SSE connections hold the response open
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/scanner/categories/{name}", s.handleCategorySnapshot)
		r.Get("/events/stream", s.handleEventsStream)
	})
}

// Start begins serving and blocks until the server stops or ctx is
// cancelled, in which case it shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request handled")
	})
}
