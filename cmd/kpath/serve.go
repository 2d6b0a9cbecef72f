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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/kpath-project/kpath-search/pkg/facade"
)

// ServeCmd starts the search facade HTTP server.
type ServeCmd struct {
	Port int `help:"Override the configured listen port." default:"0"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	log := initLogger(cli)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// Load existing snapshots if present, falling back to a background
	// build; queries return IndexNotReady until that completes (§4.6).
	a.manager.Start(ctx)

	srv := facade.NewServer(a.facade, cfg.Server, a.obs.Tracer(), a.obs.Metrics(), log)

	var metricsSrv *http.Server
	if a.obs.MetricsEnabled() {
		mux := http.NewServeMux()
		mux.Handle(a.obs.MetricsEndpoint(), a.obs.MetricsHandler())
		metricsSrv = &http.Server{Addr: cfg.Observability.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	greenColor := "\033[38;2;16;185;129m"
	resetColor := "\033[0m"
	fmt.Printf("\n%skpath-search ready%s\n", greenColor, resetColor)
	fmt.Printf("   Search:  http://%s/api/v1/search\n", cfg.Server.Address())
	fmt.Printf("   Status:  http://%s/api/v1/search/status\n", cfg.Server.Address())
	if metricsSrv != nil {
		fmt.Printf("   Metrics: http://%s%s\n", cfg.Observability.MetricsAddr, a.obs.MetricsEndpoint())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.QueryTimeoutMS)*time.Millisecond)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return a.obs.Shutdown(context.Background())
}
