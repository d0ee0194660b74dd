/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes metrics and a health probe on a local listener.
// There is no control API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/friendsincode/sessioncast/internal/logbuffer"
	"github.com/friendsincode/sessioncast/internal/telemetry"
	"github.com/friendsincode/sessioncast/internal/version"
)

// Health is the /healthz response body.
type Health struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	SessionNumber   int    `json:"session_number"`
	SessionName     string `json:"session_name"`
	PlaybackNumber  int    `json:"playback_number"`
	RunningTrigger  string `json:"running_trigger,omitempty"`
	PendingTriggers int    `json:"pending_triggers"`
}

// HealthSource reports engine health.
type HealthSource interface {
	Health(ctx context.Context) (Health, error)
}

// Server serves /metrics and /healthz.
type Server struct {
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	health     HealthSource
	logs       *logbuffer.Buffer
}

// New creates the listener for addr. health may be nil.
func New(addr string, health HealthSource, logger zerolog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.MetricsMiddleware)

	srv := &Server{
		logger: logger.With().Str("component", "http").Logger(),
		router: router,
		health: health,
	}
	srv.configureRoutes()

	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(srv.router, "sessioncast.http"),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// WithLogs serves buf on /logs.
func (s *Server) WithLogs(buf *logbuffer.Buffer) *Server {
	s.logs = buf
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("metrics listener started")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		body := Health{Status: "ok", Version: version.Version}
		code := http.StatusOK
		if s.health != nil {
			h, err := s.health.Health(r.Context())
			if err != nil {
				s.logger.Warn().Err(err).Msg("health check failed")
				body.Status = "degraded"
				code = http.StatusServiceUnavailable
			} else {
				body = h
				if body.Status == "" {
					body.Status = "ok"
				}
				body.Version = version.Version
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	})

	s.router.Get("/logs", s.handleLogs)
	s.router.Handle("/metrics", telemetry.Handler())
}

// handleLogs returns recent log entries, newest first. Query parameters:
// level, component, session, q, limit (default 200).
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		http.NotFound(w, r)
		return
	}

	params := r.URL.Query()
	q := logbuffer.Query{
		Level:       params.Get("level"),
		Component:   params.Get("component"),
		Search:      params.Get("q"),
		Limit:       200,
		NewestFirst: true,
	}
	if v := params.Get("session"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid session", http.StatusBadRequest)
			return
		}
		q.SessionID = id
	}
	if v := params.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		q.Limit = limit
	}

	entries := s.logs.Query(q)
	if entries == nil {
		entries = []logbuffer.LogEntry{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}
