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

package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kpath-project/kpath-search/pkg/apperrors"
	"github.com/kpath-project/kpath-search/pkg/vector"
)

func buildIndex(t *testing.T) *vector.Index {
	t.Helper()
	idx := vector.New("test-model", 3)
	entries := []struct {
		id  int64
		vec []float32
		p   vector.Payload
	}{
		{1, []float32{1, 0, 0}, vector.Payload{Name: "svc-a", Description: "first"}},
		{2, []float32{0, 1, 0}, vector.Payload{Name: "svc-b", Description: "second"}},
		{3, []float32{0, 0, 1}, vector.Payload{Name: "svc-c", Description: "third", ParentID: 1}},
	}
	for _, e := range entries {
		if err := idx.Add(e.id, e.vec, e.p); err != nil {
			t.Fatalf("Add(%d): %v", e.id, err)
		}
	}
	return idx
}

func TestSaveLoadRoundTripPreservesSearch(t *testing.T) {
	dir := t.TempDir()
	idx := buildIndex(t)
	builtAt := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	if err := Save(dir, "services", idx, builtAt); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, meta, err := Load(dir, "services", idx.Model(), idx.Dim())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if meta.VectorCount != 3 {
		t.Fatalf("expected 3 vectors in meta, got %d", meta.VectorCount)
	}
	if !meta.BuiltAt.Equal(builtAt) {
		t.Fatalf("expected built_at %v, got %v", builtAt, meta.BuiltAt)
	}

	restored := vector.New(idx.Model(), idx.Dim())
	restored.Load(entries)

	before, err := idx.Search([]float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search before: %v", err)
	}
	after, err := restored.Search([]float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search after: %v", err)
	}
	if len(before) != len(after) {
		t.Fatalf("result count mismatch: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ExternalID != after[i].ExternalID || before[i].Score != after[i].Score {
			t.Fatalf("result %d mismatch: %+v vs %+v", i, before[i], after[i])
		}
		if before[i].Payload.Name != after[i].Payload.Name {
			t.Fatalf("payload %d mismatch: %+v vs %+v", i, before[i].Payload, after[i].Payload)
		}
	}
}

func TestLoadDetectsModelMismatch(t *testing.T) {
	dir := t.TempDir()
	idx := buildIndex(t)
	if err := Save(dir, "services", idx, time.Now().UTC()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, _, err := Load(dir, "services", "a-different-model", idx.Dim())
	if err == nil {
		t.Fatalf("expected ModelMismatch error")
	}
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Code != apperrors.ModelMismatch {
		t.Fatalf("expected ModelMismatch-coded error, got %v", err)
	}

	_, _, err = Load(dir, "services", idx.Model(), idx.Dim()+1)
	if err == nil {
		t.Fatalf("expected ModelMismatch error for dim mismatch")
	}
	appErr, ok = apperrors.As(err)
	if !ok || appErr.Code != apperrors.ModelMismatch {
		t.Fatalf("expected ModelMismatch-coded error, got %v", err)
	}
}

func TestSaveWritesViaTempRenameNotPartialFile(t *testing.T) {
	dir := t.TempDir()
	idx := buildIndex(t)
	if err := Save(dir, "services", idx, time.Now().UTC()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	for _, name := range []string{"services.vec", "services.meta.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
		if _, err := os.Stat(filepath.Join(dir, name+".tmp")); !os.IsNotExist(err) {
			t.Fatalf("expected no leftover %s.tmp, got err=%v", name, err)
		}
	}
}

func TestLoadRejectsTruncatedVecFile(t *testing.T) {
	dir := t.TempDir()
	idx := buildIndex(t)
	if err := Save(dir, "services", idx, time.Now().UTC()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	vecPath := filepath.Join(dir, "services.vec")
	data, err := os.ReadFile(vecPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := os.WriteFile(vecPath, data[:len(data)-4], 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, _, err := Load(dir, "services", idx.Model(), idx.Dim()); err == nil {
		t.Fatalf("expected error reading truncated vec file")
	}
}
