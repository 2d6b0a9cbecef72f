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

// IndexConfig configures the vector index backend (§4.3) and its
// persistence layout (§6.3).
type IndexConfig struct {
	// Backend names the index implementation: "flat" (default, in-process
	// RCU flat index) or "qdrant" (external, after the §4.3 design note that
	// upgrading to an ANN index is a drop-in capacity change). It is
	// validated but not consulted: the Search Manager always uses flat.
	Backend string `yaml:"backend,omitempty"`

	// Dir is the snapshot directory for the flat backend (default data/indexes).
	Dir string `yaml:"dir,omitempty"`

	// Qdrant configures the optional Qdrant-backed index.
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig configures the Qdrant vector index backend.
type QdrantConfig struct {
	Host      string `yaml:"host,omitempty"`
	Port      int    `yaml:"port,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	EnableTLS bool   `yaml:"enable_tls,omitempty"`
}

// SetDefaults applies default values to the index config.
func (c *IndexConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "flat"
	}
	if c.Dir == "" {
		c.Dir = "data/indexes"
	}
	if c.Backend == "qdrant" {
		if c.Qdrant == nil {
			c.Qdrant = &QdrantConfig{}
		}
		if c.Qdrant.Host == "" {
			c.Qdrant.Host = "localhost"
		}
		if c.Qdrant.Port == 0 {
			c.Qdrant.Port = 6334
		}
	}
}

// Validate checks the index configuration.
func (c *IndexConfig) Validate() error {
	switch c.Backend {
	case "flat":
		if c.Dir == "" {
			return fmt.Errorf("dir is required for the flat backend")
		}
	case "qdrant":
		if c.Qdrant == nil || c.Qdrant.Host == "" {
			return fmt.Errorf("qdrant.host is required for the qdrant backend")
		}
	default:
		return fmt.Errorf("invalid backend %q (valid: flat, qdrant)", c.Backend)
	}
	return nil
}
