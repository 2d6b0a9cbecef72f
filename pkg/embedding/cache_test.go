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
	"testing"
)

type countingProvider struct {
	calls int
}

func (c *countingProvider) Dim() int           { return 2 }
func (c *countingProvider) Identifier() string { return "counting:2" }
func (c *countingProvider) Embed(_ context.Context, texts []string) ([]Vector, error) {
	c.calls++
	out := make([]Vector, len(texts))
	for i := range texts {
		out[i] = Vector{1, 0}
	}
	return out, nil
}

func TestCachedProviderServesRepeatedQueriesFromCache(t *testing.T) {
	inner := &countingProvider{}
	cached, err := NewCachedProvider(inner, 16)
	if err != nil {
		t.Fatalf("NewCachedProvider: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := cached.EmbedQuery(context.Background(), "  Payment   Processing "); err != nil {
			t.Fatalf("EmbedQuery: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 underlying embed call for repeated/normalized query, got %d", inner.calls)
	}

	if _, err := cached.EmbedQuery(context.Background(), "payment processing"); err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected normalization to fold case/whitespace variants, got %d calls", inner.calls)
	}

	if _, err := cached.EmbedQuery(context.Background(), "a completely different query"); err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected a new cache entry for a distinct query, got %d calls", inner.calls)
	}
}

func TestBoundedProviderRejectsWhenSaturated(t *testing.T) {
	inner := &blockingProvider{started: make(chan struct{}), release: make(chan struct{})}
	bounded := NewBoundedProvider(inner, 1)

	done := make(chan error, 1)
	go func() {
		_, err := bounded.Embed(context.Background(), []string{"x"})
		done <- err
	}()
	<-inner.started

	_, err := bounded.Embed(context.Background(), []string{"y"})
	if err == nil {
		t.Fatalf("expected Overloaded error when queue depth 1 is already in use")
	}

	close(inner.release)
	if err := <-done; err != nil {
		t.Fatalf("first embed should have succeeded: %v", err)
	}
}

func TestFitReachesInnerFitterThroughBoundedAndCachedWrappers(t *testing.T) {
	inner := &fittingProvider{}
	bounded := NewBoundedProvider(inner, 8)
	cached, err := NewCachedProvider(bounded, 16)
	if err != nil {
		t.Fatalf("NewCachedProvider: %v", err)
	}

	if err := cached.Fit([]string{"a document", "another document"}); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !inner.fit {
		t.Fatalf("expected Fit to reach the innermost Fitter through both wrappers")
	}

	if err := bounded.Fit([]string{"one more document"}); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// A non-Fitter inner provider makes Fit a no-op, not an error.
	plainBounded := NewBoundedProvider(&countingProvider{}, 8)
	if err := plainBounded.Fit([]string{"x"}); err != nil {
		t.Fatalf("Fit on a non-Fitter provider should be a no-op, got: %v", err)
	}
}

type fittingProvider struct {
	fit bool
}

func (f *fittingProvider) Dim() int           { return 2 }
func (f *fittingProvider) Identifier() string { return "fitting:2" }
func (f *fittingProvider) Embed(_ context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))
	for i := range texts {
		out[i] = Vector{1, 0}
	}
	return out, nil
}
func (f *fittingProvider) Fit(_ []string) error {
	f.fit = true
	return nil
}

type blockingProvider struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingProvider) Dim() int           { return 2 }
func (b *blockingProvider) Identifier() string { return "blocking:2" }
func (b *blockingProvider) Embed(_ context.Context, texts []string) ([]Vector, error) {
	close(b.started)
	<-b.release
	out := make([]Vector, len(texts))
	for i := range texts {
		out[i] = Vector{1, 0}
	}
	return out, nil
}
