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

	"golang.org/x/sync/semaphore"

	"github.com/kpath-project/kpath-search/pkg/apperrors"
)

// BoundedProvider wraps a Provider with a bounded work queue (§5: reference
// depth 256). A caller that arrives when the queue is saturated gets an
// Overloaded error immediately instead of queueing indefinitely.
type BoundedProvider struct {
	inner Provider
	sem   *semaphore.Weighted
}

// NewBoundedProvider wraps inner with a queue of the given depth.
func NewBoundedProvider(inner Provider, depth int) *BoundedProvider {
	return &BoundedProvider{
		inner: inner,
		sem:   semaphore.NewWeighted(int64(depth)),
	}
}

func (p *BoundedProvider) Dim() int { return p.inner.Dim() }

func (p *BoundedProvider) Identifier() string { return p.inner.Identifier() }

func (p *BoundedProvider) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	if !p.sem.TryAcquire(1) {
		return nil, apperrors.New(apperrors.Overloaded, "embedding queue saturated")
	}
	defer p.sem.Release(1)

	return p.inner.Embed(ctx, texts)
}

// Fit delegates to inner if it implements Fitter, otherwise is a no-op. It
// bypasses the queue semaphore: fitting happens once per rebuild, not per
// query, and must not compete with in-flight Embed calls for a queue slot.
func (p *BoundedProvider) Fit(documents []string) error {
	if f, ok := p.inner.(Fitter); ok {
		return f.Fit(documents)
	}
	return nil
}
