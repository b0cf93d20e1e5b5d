// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

// Package diagserver exposes the operational surface over HTTP: liveness,
// Prometheus metrics, the diagnostics snapshot and the manual refresh
// trigger. It is deliberately read-mostly; the only mutating endpoint is
// the forced refresh, which still rides the full resilience chain.
package diagserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rknightion/merakimirror/internal/coordinator"
	"github.com/rknightion/merakimirror/internal/hub"
	"github.com/rknightion/merakimirror/internal/logging"
)

// Server serves the diagnostics API.
type Server struct {
	addr string
	co   *coordinator.Coordinator
	srv  *http.Server
}

// New builds the server; Run starts it.
func New(addr string, co *coordinator.Coordinator) *Server {
	s := &Server{addr: addr, co: co}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/diagnostics", s.handleDiagnostics)
		r.Get("/partitions", s.handlePartitions)
		r.Post("/refresh", s.handleRefresh)
	})

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled, then drains with a short
// shutdown grace period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.addr).Msg("diagnostics server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.co.Diagnostics())
}

func (s *Server) handlePartitions(w http.ResponseWriter, _ *http.Request) {
	keys := s.co.Partitions()
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = key.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"partitions": out})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	tier := r.URL.Query().Get("tier")
	if tier != "" {
		if _, ok := hub.ParseTier(tier); !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown refresh tier " + tier})
			return
		}
	}
	if err := s.co.ForceRefresh(r.Context(), tier); err != nil {
		logging.Warn().Err(err).Str("tier", tier).Msg("forced refresh failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}
