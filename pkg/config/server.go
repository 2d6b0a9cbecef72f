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

import "fmt"

// ServerConfig configures the search HTTP surface (§6.1).
type ServerConfig struct {
	// Host to bind to.
	Host string `yaml:"host,omitempty"`

	// Port to listen on.
	Port int `yaml:"port,omitempty"`

	// QueryTimeoutMS bounds a single query's end-to-end planner time (§5).
	QueryTimeoutMS int `yaml:"query_timeout_ms,omitempty"`

	// CORS configures cross-origin access for the search endpoints.
	CORS *CORSConfig `yaml:"cors,omitempty"`
}

// CORSConfig configures CORS for the HTTP surface.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	AllowedMethods []string `yaml:"allowed_methods,omitempty"`
	AllowedHeaders []string `yaml:"allowed_headers,omitempty"`
}

// SetDefaults applies default values to the server config.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.QueryTimeoutMS == 0 {
		c.QueryTimeoutMS = 30000
	}
	if c.CORS == nil {
		c.CORS = &CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		}
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.QueryTimeoutMS <= 0 {
		return fmt.Errorf("query_timeout_ms must be positive")
	}
	return nil
}

// Address returns the HTTP listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ObservabilityConfig configures the ambient metrics/tracing surface.
type ObservabilityConfig struct {
	// MetricsAddr is the address the /metrics Prometheus endpoint binds to.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	// TracingEnabled turns on OpenTelemetry tracing spans around planner steps.
	TracingEnabled bool `yaml:"tracing_enabled,omitempty"`
}

// SetDefaults applies default values to the observability config.
func (c *ObservabilityConfig) SetDefaults() {
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}
}

// Validate checks the observability configuration.
func (c *ObservabilityConfig) Validate() error {
	return nil
}
