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

// RegistryConfig configures the Registry Reader's reference backend (§4.5).
// Production deployments typically supply their own registry.Reader
// implementation against the real relational store; this config only
// describes the bundled reference implementations used for local
// development and tests.
type RegistryConfig struct {
	// Backend selects the reference implementation: "sqlite" (default) or
	// "fixture" (a directory of JSON files).
	Backend string `yaml:"backend,omitempty"`

	// DSN is the SQLite database path when Backend is "sqlite".
	DSN string `yaml:"dsn,omitempty"`

	// FixtureDir is the directory of JSON exports when Backend is "fixture".
	FixtureDir string `yaml:"fixture_dir,omitempty"`

	// Watch is parsed but not consulted: nothing starts FixtureReader.Watch,
	// so the fixture backend reads its files once, when the reader is built.
	Watch bool `yaml:"watch,omitempty"`
}

// SetDefaults applies default values to the registry config.
func (c *RegistryConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "sqlite"
	}
	if c.Backend == "sqlite" && c.DSN == "" {
		c.DSN = "data/kpath_registry.db"
	}
}

// Validate checks the registry configuration.
func (c *RegistryConfig) Validate() error {
	switch c.Backend {
	case "sqlite":
		if c.DSN == "" {
			return fmt.Errorf("dsn is required for sqlite backend")
		}
	case "fixture":
		if c.FixtureDir == "" {
			return fmt.Errorf("fixture_dir is required for fixture backend")
		}
	default:
		return fmt.Errorf("invalid backend %q (valid: sqlite, fixture)", c.Backend)
	}
	return nil
}
