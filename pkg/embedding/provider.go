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

// Package embedding turns composed text into fixed-dimension vectors
// (§4.2). Two backends are pluggable behind the same Provider contract: a
// neural backend calling a local embedding server, and a lexical TF-IDF
// fallback that keeps the system usable without an ML stack.
package embedding

import "context"

// Vector is a fixed-length, L2-normalized embedding.
type Vector []float32

// Provider turns text into vectors of a fixed dimension D, shared by every
// vector produced over the provider's lifetime.
type Provider interface {
	// Embed embeds a batch of texts, returning one vector per input in order.
	Embed(ctx context.Context, texts []string) ([]Vector, error)

	// Identifier returns the model name and dimension, recorded in snapshot
	// metadata and checked for compatibility on load (§4.2, §4.4).
	Identifier() string

	// Dim returns the fixed output dimension D.
	Dim() int
}

// Fitter is implemented by a Provider whose vocabulary must be fit from a
// corpus before Embed is meaningful (the lexical backend, §4.2). Provider
// wrappers that hold an inner Provider implement Fitter by delegating to
// it, so a caller holding a BoundedProvider or CachedProvider can still
// reach the lexical backend underneath via a type assertion against this
// interface.
type Fitter interface {
	Fit(documents []string) error
}
