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
	"log/slog"
	"os"

	"github.com/kpath-project/kpath-search/pkg/config"
	"github.com/kpath-project/kpath-search/pkg/embedding"
	"github.com/kpath-project/kpath-search/pkg/facade"
	"github.com/kpath-project/kpath-search/pkg/logger"
	"github.com/kpath-project/kpath-search/pkg/observability"
	"github.com/kpath-project/kpath-search/pkg/planner"
	"github.com/kpath-project/kpath-search/pkg/registry"
	"github.com/kpath-project/kpath-search/pkg/search"
	"github.com/kpath-project/kpath-search/pkg/shaper"
)

// app holds the fully wired dependency chain for a running kpath process:
// registry reader, embedding provider, vector index manager, planner,
// shaper, and the facade that orchestrates them (§4.9).
type app struct {
	cfg     *config.Config
	reader  registry.Reader
	manager *search.Manager
	facade  *facade.Facade
	obs     *observability.Manager
	logger  *slog.Logger
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfigFile(context.Background(), path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newRegistryReader(cfg config.RegistryConfig) (registry.Reader, error) {
	switch cfg.Backend {
	case "fixture":
		return registry.NewFixtureReader(cfg.FixtureDir)
	default:
		return registry.NewSQLiteReader(cfg.DSN)
	}
}

// buildApp constructs the full dependency chain described by cfg, wiring
// observability through every layer that accepts it.
func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	reader, err := newRegistryReader(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}

	raw := embedding.NewProviderFromConfig(cfg.Embedding)
	bounded := embedding.NewBoundedProvider(raw, cfg.Embedding.QueueDepth)
	cached, err := embedding.NewCachedProvider(bounded, cfg.Embedding.QueryCacheSize)
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("wrapping embedding provider: %w", err)
	}

	manager := search.New(reader, bounded, cfg.Index.Dir, log)

	obsCfg := &observability.Config{}
	obsCfg.Tracing.Enabled = cfg.Observability.TracingEnabled
	obsCfg.Metrics.Enabled = true
	obs, err := observability.NewFromConfig(ctx, obsCfg)
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("initializing observability: %w", err)
	}

	p := planner.New(manager, cached, reader)
	s := shaper.New(reader)
	f := facade.New(p, s, manager, reader, obs.Tracer(), obs.Metrics(), log)

	return &app{
		cfg:     cfg,
		reader:  reader,
		manager: manager,
		facade:  f,
		obs:     obs,
		logger:  log,
	}, nil
}

func (a *app) Close() {
	if a.reader != nil {
		_ = a.reader.Close()
	}
}

func initLogger(cli *CLI) *slog.Logger {
	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	output := os.Stderr
	if cli.LogFile != "" {
		file, _, err := logger.OpenLogFile(cli.LogFile)
		if err == nil {
			output = file
		}
	}
	logger.Init(level, output, cli.LogFormat)
	return logger.GetLogger()
}
