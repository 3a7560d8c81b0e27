// internal/api/server.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kestrelhq/kestrel/internal/engine"
)

// Server is the query/update API over the agent's store, plus the manual
// scan trigger. It never writes events or alerts itself; alert status
// transitions are the one mutation it owns.
type Server struct {
	engine *engine.Engine
	log    zerolog.Logger
	server *http.Server
}

// NewServer builds the API server around a running engine.
func NewServer(addr string, eng *engine.Engine, log zerolog.Logger) *Server {
	s := &Server{
		engine: eng,
		log:    log.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/events", s.handleListEvents)
		r.Get("/events/{id}", s.handleGetEvent)
		r.Get("/alerts", s.handleListAlerts)
		r.Put("/alerts/{id}", s.handleUpdateAlert)
		r.Get("/system", s.handleSystemMetrics)
		r.Post("/scan", s.handleScan)
	})

	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info().Str("addr", s.server.Addr).Msg("api listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("api shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
