// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpapi exposes the word-lookup pipeline over HTTP: a unary
// JSON endpoint, an SSE streaming endpoint, search, and health/metrics.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mkbabb/lexserve/pkg/observability"
	"github.com/mkbabb/lexserve/pkg/pipeline"
	"github.com/mkbabb/lexserve/pkg/resolver"
)

// Config wires a Server's dependencies and tunables. Provider selection
// defaults live on pipeline.Config.DefaultProviders, not here — the
// server only needs the pipeline and resolver handles.
type Config struct {
	Addr            string
	Pipeline        *pipeline.Pipeline
	Resolver        *resolver.Resolver
	ShutdownTimeout time.Duration // 0 defaults to 10s
	ChunkThreshold  int           // bytes; 0 defaults to 32*1024
	Logger          *slog.Logger
	Observability   *observability.Manager // nil disables /metrics and request tracing
}

// Server is the lexserve HTTP/SSE server.
type Server struct {
	cfg    Config
	server *http.Server

	shuttingDown atomic.Bool
}

// New builds a Server. Call Start to begin serving.
func New(cfg Config) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.ChunkThreshold <= 0 {
		cfg.ChunkThreshold = 32 * 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{cfg: cfg}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.shuttingDownMiddleware)

	if s.cfg.Observability != nil {
		r.Use(observability.HTTPMiddleware(s.cfg.Observability.Tracer(), s.cfg.Observability.Metrics()))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Handle(s.cfg.Observability.MetricsEndpoint(), s.cfg.Observability.MetricsHandler())

	r.Get("/search", s.handleSearch)
	r.Get("/search/{query}/suggestions", s.handleSuggestions)

	r.Get("/lookup/{word}", s.handleLookup)
	r.Get("/lookup/{word}/stream", s.handleLookupStream)

	return r
}

// Start begins serving and blocks until ctx is cancelled or the server
// errors; on ctx cancellation it drains via Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams can run indefinitely
		IdleTimeout:  120 * time.Second,
	}

	s.cfg.Logger.Info("http server starting", "addr", s.cfg.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown marks the server as draining (new requests get shutting_down),
// then gracefully shuts the underlying http.Server down within the
// configured deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shuttingDown.Store(true)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	s.cfg.Logger.Info("http server shutting down")
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) shuttingDownMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.shuttingDown.Load() {
			writeError(w, errShuttingDown("server is shutting down"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.cfg.Logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start),
		)
	})
}

// corsMiddleware mirrors the teacher's permissive development CORS policy.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
