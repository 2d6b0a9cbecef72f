// Copyright 2026 KPATH Authors
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

package facade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kpath-project/kpath-search/pkg/config"
	"github.com/kpath-project/kpath-search/pkg/observability"
)

// basePath is the API surface the facade serves under (§6.1).
const basePath = "/api/v1/search"

// Server wraps the facade's HTTP listener with a Start/Stop lifecycle
// (§5: "tear down on shutdown draining in-flight queries up to the query
// timeout"), the same shape the rest of this codebase uses for its
// network-facing components.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	timeout    time.Duration
}

// NewServer builds a Server bound to f, serving on cfg.Address() with the
// configured CORS policy and observability middleware. Each request's
// context carries the configured query timeout as its deadline.
func NewServer(f *Facade, cfg config.ServerConfig, tracer *observability.Tracer, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.QueryTimeoutMS) * time.Millisecond
	router := NewRouter(f, basePath, cfg.CORS, tracer, metrics)
	handler := router
	if timeout > 0 {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			router.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	return &Server{
		httpServer: &http.Server{
			Addr:    cfg.Address(),
			Handler: handler,
		},
		logger:  logger,
		timeout: timeout,
	}
}

// Start begins serving (blocking) until Stop is called or the listener
// fails for a reason other than a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("search facade listening", "addr", s.httpServer.Addr, "base_path", basePath)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("search facade server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down, draining in-flight queries up to
// the configured query timeout before giving up and closing connections.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Info("search facade shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("search facade shutdown: %w", err)
	}
	return nil
}
