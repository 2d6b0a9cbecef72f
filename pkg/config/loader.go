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

package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader loads configuration from a YAML file on disk and, optionally,
// watches it for changes so a running process can pick up an edited
// registry or index configuration without a restart.
type Loader struct {
	path     string
	onChange func(*Config)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOnChange sets a callback invoked whenever Watch detects a reload.
func WithOnChange(fn func(*Config)) LoaderOption {
	return func(l *Loader) {
		l.onChange = fn
	}
}

// NewLoader creates a Loader for the given file path.
func NewLoader(path string, opts ...LoaderOption) *Loader {
	l := &Loader{path: path}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads, expands, decodes, defaults, and validates the configuration
// file. A missing file is not an error: it yields a defaulted, validated
// zero-value configuration, matching the teacher's zero-config convention.
func (l *Loader) Load(_ context.Context) (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			cfg.SetDefaults()
			if verr := cfg.Validate(); verr != nil {
				return nil, fmt.Errorf("default config validation failed: %w", verr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", l.path, err)
	}

	cfg, err := decode(data)
	if err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// decode parses YAML bytes into a raw map, expands environment variable
// references, then re-marshals and unmarshals the result directly into a
// Config. The round trip through yaml.v3 keeps field decoding consistent
// with the `yaml:"..."` struct tags without pulling in a separate
// map-to-struct decoding library.
func decode(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expanded := expandEnvVars(raw)

	reencoded, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode expanded config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(reencoded, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Watch watches the config file for changes via fsnotify and invokes
// onChange with the freshly reloaded configuration. Blocks until ctx is
// cancelled.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", l.path, err)
	}

	slog.Info("watching config file for changes", "path", l.path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := l.Load(ctx)
			if err != nil {
				slog.Error("failed to reload config", "error", err)
				continue
			}
			slog.Info("configuration reloaded")
			if l.onChange != nil {
				l.onChange(cfg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

// LoadConfigFile is a convenience function for one-shot loading from a file.
func LoadConfigFile(ctx context.Context, path string) (*Config, error) {
	return NewLoader(path).Load(ctx)
}
