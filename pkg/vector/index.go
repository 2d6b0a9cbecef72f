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

// Package vector implements the in-memory dense vector store (§4.3): a
// flat index supporting add/remove/replace and top-k cosine search, with a
// read-copy-update discipline so queries never observe a half-applied
// mutation.
package vector

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/kpath-project/kpath-search/pkg/apperrors"
)

// Payload is the small struct carried alongside a vector so a result can be
// rendered without another registry read (§3: IndexEntry).
type Payload struct {
	Name        string
	Description string
	ParentID    int64 // 0 when the entry has no parent (a service)
	Tags        []string
}

// Result is a single top-k hit.
type Result struct {
	ExternalID int64
	Score      float64 // cosine similarity rescaled to [0,1]
	Payload    Payload
}

// snapshot is the immutable state a reader sees for the duration of one
// Search call. Every mutation builds a new snapshot and atomically swaps
// the index's pointer to it; no reader ever observes a torn write.
type snapshot struct {
	ids      []int64
	vectors  [][]float32
	payloads []Payload
	live     []bool
	idToRow  map[int64]int
}

func emptySnapshot() *snapshot {
	return &snapshot{idToRow: make(map[int64]int)}
}

// clone makes a shallow copy of the row slices (the vectors/payloads
// themselves are treated as immutable once added, so row-level copy is
// sufficient and cheap relative to copying every float32 slice).
func (s *snapshot) clone() *snapshot {
	n := len(s.ids)
	out := &snapshot{
		ids:      make([]int64, n),
		vectors:  make([][]float32, n),
		payloads: make([]Payload, n),
		live:     make([]bool, n),
		idToRow:  make(map[int64]int, len(s.idToRow)),
	}
	copy(out.ids, s.ids)
	copy(out.vectors, s.vectors)
	copy(out.payloads, s.payloads)
	copy(out.live, s.live)
	for k, v := range s.idToRow {
		out.idToRow[k] = v
	}
	return out
}

// Index is a flat, RCU-synchronized vector store. A flat L2/IP index is
// sufficient for corpora up to low-tens-of-thousands of entries; an
// ANN/IVF backend is a drop-in capacity upgrade that does not alter this
// contract (§4.3).
type Index struct {
	model string
	dim   int

	writeMu sync.Mutex // single-writer discipline (§5)
	ptr     atomic.Pointer[snapshot]
}

// New constructs an empty Index bound to model/dim for the lifetime of the
// index (§3: dimension invariant).
func New(model string, dim int) *Index {
	idx := &Index{model: model, dim: dim}
	idx.ptr.Store(emptySnapshot())
	return idx
}

func (idx *Index) Model() string { return idx.model }
func (idx *Index) Dim() int      { return idx.dim }

// Size returns the number of live entries.
func (idx *Index) Size() int {
	s := idx.ptr.Load()
	return len(s.idToRow)
}

// Entry is a single live (id, vector, payload) triple, used when exporting
// the index for persistence.
type Entry struct {
	ExternalID int64
	Vector     []float32
	Payload    Payload
}

// Export returns every live entry, in an unspecified but stable-for-the-
// duration-of-the-call order, for the persistence layer to serialize.
func (idx *Index) Export() []Entry {
	s := idx.ptr.Load()
	entries := make([]Entry, 0, len(s.idToRow))
	for row, id := range s.ids {
		if !s.live[row] {
			continue
		}
		entries = append(entries, Entry{ExternalID: id, Vector: s.vectors[row], Payload: s.payloads[row]})
	}
	return entries
}

// Load replaces the index's contents wholesale with entries, used when
// restoring from a snapshot and at the end of each rebuild. The new
// contents are swapped in with one atomic pointer store, so a concurrent
// Search sees either the old contents or the new ones, never a mix (§5).
func (idx *Index) Load(entries []Entry) {
	next := emptySnapshot()
	for _, e := range entries {
		next.ids = append(next.ids, e.ExternalID)
		next.vectors = append(next.vectors, e.Vector)
		next.payloads = append(next.payloads, e.Payload)
		next.live = append(next.live, true)
		next.idToRow[e.ExternalID] = len(next.ids) - 1
	}
	idx.ptr.Store(next)
}

// Add inserts a new entry, failing with an InvalidRequest-coded
// "duplicate id" error if externalID is already present.
func (idx *Index) Add(externalID int64, vec []float32, payload Payload) error {
	if len(vec) != idx.dim {
		return apperrors.New(apperrors.Internal, "vector dim %d does not match index dim %d", len(vec), idx.dim)
	}

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	cur := idx.ptr.Load()
	if _, exists := cur.idToRow[externalID]; exists {
		return apperrors.New(apperrors.InvalidRequest, "duplicate id %d", externalID)
	}

	next := cur.clone()
	next.ids = append(next.ids, externalID)
	next.vectors = append(next.vectors, vec)
	next.payloads = append(next.payloads, payload)
	next.live = append(next.live, true)
	next.idToRow[externalID] = len(next.ids) - 1

	idx.ptr.Store(next)
	return nil
}

// Remove tombstones externalID. Idempotent: removing an absent id is a
// no-op. Rows are compacted lazily on the next rebuild, not on every
// delete (§4.3).
func (idx *Index) Remove(externalID int64) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	cur := idx.ptr.Load()
	row, exists := cur.idToRow[externalID]
	if !exists {
		return nil
	}

	next := cur.clone()
	next.live[row] = false
	delete(next.idToRow, externalID)
	idx.ptr.Store(next)
	return nil
}

// Replace upserts externalID: if present its row is updated in place; if
// absent a new row is appended. Either way the change is atomic from a
// reader's perspective (§4.3).
func (idx *Index) Replace(externalID int64, vec []float32, payload Payload) error {
	if len(vec) != idx.dim {
		return apperrors.New(apperrors.Internal, "vector dim %d does not match index dim %d", len(vec), idx.dim)
	}

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	cur := idx.ptr.Load()
	next := cur.clone()

	if row, exists := next.idToRow[externalID]; exists {
		next.vectors[row] = vec
		next.payloads[row] = payload
		next.live[row] = true
	} else {
		next.ids = append(next.ids, externalID)
		next.vectors = append(next.vectors, vec)
		next.payloads = append(next.payloads, payload)
		next.live = append(next.live, true)
		next.idToRow[externalID] = len(next.ids) - 1
	}

	idx.ptr.Store(next)
	return nil
}

// Compact rewrites the backing arrays, dropping tombstoned rows. Nothing in
// this module calls it: a rebuild replaces the contents through Load, which
// carries no tombstones.
func (idx *Index) Compact() {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	cur := idx.ptr.Load()
	next := emptySnapshot()
	for row, id := range cur.ids {
		if !cur.live[row] {
			continue
		}
		next.ids = append(next.ids, id)
		next.vectors = append(next.vectors, cur.vectors[row])
		next.payloads = append(next.payloads, cur.payloads[row])
		next.live = append(next.live, true)
		next.idToRow[id] = len(next.ids) - 1
	}
	idx.ptr.Store(next)
}

// Search returns up to k entries ordered by descending cosine score. Ties
// are broken by lower external_id for determinism (§4.3, §8.1).
func (idx *Index) Search(queryVec []float32, k int) ([]Result, error) {
	if len(queryVec) != idx.dim {
		return nil, apperrors.New(apperrors.Internal, "query vector dim %d does not match index dim %d", len(queryVec), idx.dim)
	}

	s := idx.ptr.Load() // lock-free read; s is immutable for this call's duration

	results := make([]Result, 0, len(s.idToRow))
	for row, id := range s.ids {
		if !s.live[row] {
			continue
		}
		score := rescaleCosine(cosineSimilarity(queryVec, s.vectors[row]))
		results = append(results, Result{ExternalID: id, Score: score, Payload: s.payloads[row]})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ExternalID < results[j].ExternalID
	})

	if k >= 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rescaleCosine maps cosine similarity in [-1,1] linearly to [0,1] (§4.3).
func rescaleCosine(cosine float64) float64 {
	return (cosine + 1) / 2
}
