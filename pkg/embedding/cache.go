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

package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru"

	"github.com/kpath-project/kpath-search/pkg/config"
)

// CachedProvider wraps a Provider with a fixed-size LRU keyed by the
// SHA-256 of the normalized query text (§4.7: reference 1024 entries),
// because query repetition is common in agent traffic.
type CachedProvider struct {
	inner Provider
	cache *lru.Cache
}

// NewCachedProvider wraps inner with an LRU of the given size.
func NewCachedProvider(inner Provider, size int) (*CachedProvider, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedProvider{inner: inner, cache: cache}, nil
}

func (p *CachedProvider) Dim() int { return p.inner.Dim() }

func (p *CachedProvider) Identifier() string { return p.inner.Identifier() }

// EmbedQuery embeds a single query string, serving from cache when present.
// Unlike Embed (used for batch rebuilds), single-query embeds are the ones
// worth caching: rebuild batches are each-document-once by construction.
func (p *CachedProvider) EmbedQuery(ctx context.Context, query string) (Vector, error) {
	key := cacheKey(query)
	if v, ok := p.cache.Get(key); ok {
		return v.(Vector), nil
	}

	vectors, err := p.inner.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	v := vectors[0]
	p.cache.Add(key, v)
	return v, nil
}

func (p *CachedProvider) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	return p.inner.Embed(ctx, texts)
}

// Fit delegates to inner if it implements Fitter, otherwise is a no-op.
func (p *CachedProvider) Fit(documents []string) error {
	if f, ok := p.inner.(Fitter); ok {
		return f.Fit(documents)
	}
	return nil
}

// cacheKey normalizes query text (trim, lowercase, collapse whitespace)
// then returns the hex SHA-256 digest used as the LRU key.
func cacheKey(query string) string {
	normalized := normalizeQuery(query)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func normalizeQuery(query string) string {
	fields := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(query)), unicode.IsSpace)
	return strings.Join(fields, " ")
}

// NewProviderFromConfig constructs the configured backend, unwrapped (no
// bounding or caching). Callers typically wrap the result with
// NewBoundedProvider and NewCachedProvider.
func NewProviderFromConfig(cfg config.EmbeddingConfig) Provider {
	if cfg.Backend == "lexical" {
		return NewLexicalProvider(cfg)
	}
	return NewNeuralProvider(cfg)
}
