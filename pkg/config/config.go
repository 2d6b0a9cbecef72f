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

// Package config holds the configuration types for kpath-search: the
// embedding provider, the vector index backend, the registry reader, the
// HTTP server, and ambient observability. It follows the two-pass
// SetDefaults()/Validate() convention used throughout the teacher codebase
// this project is adapted from.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure for the kpath-search process.
type Config struct {
	// Name identifies this deployment (for logging/display).
	Name string `yaml:"name,omitempty"`

	// Embedding configures the embedding provider (§4.2).
	Embedding EmbeddingConfig `yaml:"embedding,omitempty"`

	// Index configures the vector index backend (§4.3, §6.3).
	Index IndexConfig `yaml:"index,omitempty"`

	// Registry configures the reference Registry Reader backend (§4.5).
	Registry RegistryConfig `yaml:"registry,omitempty"`

	// Server configures the HTTP search surface (§6.1).
	Server ServerConfig `yaml:"server,omitempty"`

	// Observability configures the ambient metrics/tracing surface.
	Observability ObservabilityConfig `yaml:"observability,omitempty"`

	// LogLevel is the slog level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level,omitempty"`

	// LogFormat is "simple", "verbose", or any other slog-native format.
	LogFormat string `yaml:"log_format,omitempty"`
}

// SetDefaults applies default values throughout the configuration tree.
func (c *Config) SetDefaults() {
	c.Embedding.SetDefaults()
	c.Index.SetDefaults()
	c.Registry.SetDefaults()
	c.Server.SetDefaults()
	c.Observability.SetDefaults()
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "simple"
	}
}

// Validate checks the entire configuration tree, accumulating every error
// found rather than stopping at the first one, matching the teacher's
// aggregate-and-join validation style.
func (c *Config) Validate() error {
	var errs []string

	if err := c.Embedding.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("embedding: %v", err))
	}
	if err := c.Index.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("index: %v", err))
	}
	if err := c.Registry.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("registry: %v", err))
	}
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server: %v", err))
	}
	if err := c.Observability.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("observability: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
