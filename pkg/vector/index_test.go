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

package vector

import (
	"sync"
	"testing"

	"github.com/kpath-project/kpath-search/pkg/apperrors"
)

func TestAddRejectsDuplicateID(t *testing.T) {
	idx := New("test-model", 2)
	if err := idx.Add(1, []float32{1, 0}, Payload{Name: "a"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := idx.Add(1, []float32{0, 1}, Payload{Name: "b"})
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Code != apperrors.InvalidRequest {
		t.Fatalf("expected InvalidRequest-coded duplicate error, got %v", err)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	idx := New("test-model", 2)
	if err := idx.Add(1, []float32{1, 0}, Payload{Name: "a"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Remove(1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := idx.Remove(1); err != nil {
		t.Fatalf("second Remove should be a no-op, got %v", err)
	}
	if err := idx.Remove(999); err != nil {
		t.Fatalf("Remove of absent id should be a no-op, got %v", err)
	}
	if idx.Size() != 0 {
		t.Fatalf("expected size 0 after remove, got %d", idx.Size())
	}
}

func TestSearchOrdersByScoreDescendingTieBrokenByID(t *testing.T) {
	idx := New("test-model", 2)
	mustAdd(t, idx, 3, []float32{1, 0}, Payload{Name: "c"})
	mustAdd(t, idx, 1, []float32{1, 0}, Payload{Name: "a"})
	mustAdd(t, idx, 2, []float32{0, 1}, Payload{Name: "b"})

	results, err := idx.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	// ids 1 and 3 tie on score (both perfectly aligned with the query);
	// the tie must break toward the lower external_id.
	if results[0].ExternalID != 1 || results[1].ExternalID != 3 {
		t.Fatalf("expected tie-break order [1,3,...], got %+v", results)
	}
	for i := 0; i+1 < len(results); i++ {
		if results[i].Score < results[i+1].Score {
			t.Fatalf("scores not monotonically descending: %+v", results)
		}
	}
}

func TestSearchRejectsMismatchedDimension(t *testing.T) {
	idx := New("test-model", 3)
	if _, err := idx.Search([]float32{1, 0}, 5); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestReplaceUpsertsInPlace(t *testing.T) {
	idx := New("test-model", 2)
	mustAdd(t, idx, 1, []float32{1, 0}, Payload{Name: "old"})

	if err := idx.Replace(1, []float32{0, 1}, Payload{Name: "new"}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if idx.Size() != 1 {
		t.Fatalf("expected size 1 after replacing existing id, got %d", idx.Size())
	}

	results, err := idx.Search([]float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].Payload.Name != "new" {
		t.Fatalf("expected replaced payload, got %+v", results[0].Payload)
	}
}

func TestIdempotentUpsert(t *testing.T) {
	idx := New("test-model", 2)
	for i := 0; i < 2; i++ {
		if err := idx.Replace(1, []float32{1, 0}, Payload{Name: "svc"}); err != nil {
			t.Fatalf("Replace: %v", err)
		}
	}
	if idx.Size() != 1 {
		t.Fatalf("expected size 1 after repeated upsert, got %d", idx.Size())
	}
}

func TestReadDuringConcurrentMutation(t *testing.T) {
	idx := New("test-model", 2)
	for i := int64(0); i < 50; i++ {
		mustAdd(t, idx, i, []float32{1, 0}, Payload{Name: "svc"})
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := int64(50); i < 150; i++ {
			_ = idx.Replace(i%50, []float32{0, 1}, Payload{Name: "updated"})
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			results, err := idx.Search([]float32{1, 0}, 10)
			if err != nil {
				t.Errorf("Search during concurrent mutation: %v", err)
				return
			}
			if len(results) > 50 {
				t.Errorf("search observed more entries than ever existed: %d", len(results))
				return
			}
		}
	}()

	wg.Wait()
}

func mustAdd(t *testing.T, idx *Index, id int64, vec []float32, p Payload) {
	t.Helper()
	if err := idx.Add(id, vec, p); err != nil {
		t.Fatalf("Add(%d): %v", id, err)
	}
}
