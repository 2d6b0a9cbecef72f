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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kpath-project/kpath-search/pkg/apperrors"
	"github.com/kpath-project/kpath-search/pkg/config"
)

// embedRetryDelays are the fixed exponential backoff steps for a failed
// embedding batch (§4.2: 100ms, 400ms, 1.6s).
var embedRetryDelays = []time.Duration{
	100 * time.Millisecond,
	400 * time.Millisecond,
	1600 * time.Millisecond,
}

// neuralRequest mirrors the request body of an Ollama-compatible
// /api/embeddings endpoint.
type neuralRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type neuralResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NeuralProvider embeds text via a local transformer server. The reference
// backend at localhost:11434 crashes its runner when it receives concurrent
// embedding requests, so calls are serialized behind a mutex the same way
// the teacher's Ollama embedder does.
type NeuralProvider struct {
	cfg        config.EmbeddingConfig
	httpClient *http.Client

	mu sync.Mutex
}

// NewNeuralProvider constructs a NeuralProvider from configuration.
func NewNeuralProvider(cfg config.EmbeddingConfig) *NeuralProvider {
	return &NeuralProvider{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

func (p *NeuralProvider) Dim() int { return p.cfg.Dim }

func (p *NeuralProvider) Identifier() string { return p.cfg.Identifier() }

// Embed embeds each text independently (the reference backend has no native
// batch endpoint) but bounds concurrency with an errgroup so a large batch
// does not spawn unbounded goroutines against a single-request backend.
func (p *NeuralProvider) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	vectors := make([]Vector, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			v, err := p.embedOne(gctx, text)
			if err != nil {
				return err
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (p *NeuralProvider) embedOne(ctx context.Context, text string) (Vector, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	retries := len(embedRetryDelays)
	if p.cfg.MaxRetries >= 0 && p.cfg.MaxRetries < retries {
		retries = p.cfg.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		v, err := p.doEmbed(ctx, text)
		if err == nil {
			return normalizeL2(v), nil
		}
		lastErr = err
		slog.Debug("neural embed retry", "attempt", attempt+1, "error", err)

		if attempt < retries {
			select {
			case <-time.After(embedRetryDelays[attempt]):
			case <-ctx.Done():
				return nil, apperrors.Wrap(apperrors.Cancelled, ctx.Err(), "embed cancelled during backoff")
			}
		}
	}
	return nil, apperrors.Wrap(apperrors.EmbeddingFailed, lastErr, "embedding failed after %d retries", retries)
}

func (p *NeuralProvider) doEmbed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(neuralRequest{Model: p.cfg.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding backend returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out neuralResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embedding backend returned an empty vector")
	}
	return out.Embedding, nil
}

// normalizeL2 rescales v to unit length; a zero vector is returned as-is.
func normalizeL2(v []float32) Vector {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return Vector(v)
	}
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
