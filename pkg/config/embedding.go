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

// EmbeddingConfig configures the embedding provider (§4.2).
type EmbeddingConfig struct {
	// Backend selects the embedding backend: "neural" (default) or "lexical".
	Backend string `yaml:"backend,omitempty"`

	// Dim is the vector dimension. Required for the lexical backend; the
	// neural backend fixes its own dimension and ignores this field.
	Dim int `yaml:"dim,omitempty"`

	// Host is the neural backend's embedding server address.
	Host string `yaml:"host,omitempty"`

	// Model is the neural backend's model identifier.
	Model string `yaml:"model,omitempty"`

	// TimeoutSeconds bounds a single embed request.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`

	// MaxRetries bounds the exponential backoff retry count (§4.2). The
	// backoff schedule has three delays, so values above 3 retry three times.
	MaxRetries int `yaml:"max_retries,omitempty"`

	// BatchSize is defaulted to 64 and validated (§4.6), but not read: the
	// Search Manager embeds rebuilds in batches of its own fixed size, 64.
	BatchSize int `yaml:"batch_size,omitempty"`

	// QueueDepth is the bounded work queue depth in front of the backend (§5).
	QueueDepth int `yaml:"queue_depth,omitempty"`

	// QueryCacheSize is the LRU size for cached query embeddings (§4.7).
	QueryCacheSize int `yaml:"query_cache_size,omitempty"`
}

// SetDefaults applies default values to the embedding config.
func (c *EmbeddingConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "neural"
	}
	if c.Backend == "neural" {
		if c.Host == "" {
			c.Host = "http://localhost:11434"
		}
		if c.Model == "" {
			c.Model = "nomic-embed-text"
		}
		c.Dim = 384
	}
	if c.Backend == "lexical" && c.Dim == 0 {
		c.Dim = 2
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BatchSize == 0 {
		c.BatchSize = 64
	}
	if c.QueueDepth == 0 {
		c.QueueDepth = 256
	}
	if c.QueryCacheSize == 0 {
		c.QueryCacheSize = 1024
	}
}

// Validate checks the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	switch c.Backend {
	case "neural", "lexical":
	default:
		return fmt.Errorf("invalid backend %q (valid: neural, lexical)", c.Backend)
	}
	if c.Dim <= 0 {
		return fmt.Errorf("dim must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("queue_depth must be positive")
	}
	if c.QueryCacheSize <= 0 {
		return fmt.Errorf("query_cache_size must be positive")
	}
	return nil
}

// Identifier returns the model identity string recorded in snapshot
// metadata (§4.2, §4.4): a mismatch here forces a full rebuild.
func (c *EmbeddingConfig) Identifier() string {
	if c.Backend == "neural" {
		return fmt.Sprintf("neural:%s:%d", c.Model, c.Dim)
	}
	return fmt.Sprintf("lexical:svd:%d", c.Dim)
}
