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

// Package snapshot implements the atomic on-disk persistence of a vector
// index (§4.4, §6.3): a <name>.vec binary file of raw vectors plus a
// <name>.meta.json sidecar. Writes go to *.tmp siblings, fsync, then
// rename, so a reader never observes a half-written snapshot.
package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/kpath-project/kpath-search/pkg/apperrors"
	"github.com/kpath-project/kpath-search/pkg/vector"
)

const (
	magic         = "KPVI" // KPath Vector Index
	formatVersion = 1
	dtypeFloat32  = 1
	headerSize    = 32
)

// Meta is the sidecar JSON describing a persisted index (§3: IndexSnapshot).
type Meta struct {
	ModelName   string           `json:"model_name"`
	Dim         int              `json:"dim"`
	VectorCount int              `json:"vector_count"`
	IDMap       []int64          `json:"id_map"`
	PayloadMap  []vector.Payload `json:"payload_map"`
	BuiltAt     time.Time        `json:"built_at"`
}

// Save atomically persists idx under dir/<name>.vec and dir/<name>.meta.json.
func Save(dir, name string, idx *vector.Index, builtAt time.Time) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}

	entries := idx.Export()
	meta := Meta{
		ModelName:   idx.Model(),
		Dim:         idx.Dim(),
		VectorCount: len(entries),
		IDMap:       make([]int64, len(entries)),
		PayloadMap:  make([]vector.Payload, len(entries)),
		BuiltAt:     builtAt,
	}
	for i, e := range entries {
		meta.IDMap[i] = e.ExternalID
		meta.PayloadMap[i] = e.Payload
	}

	vecPath := filepath.Join(dir, name+".vec")
	if err := writeVecFile(vecPath, idx.Dim(), entries); err != nil {
		return fmt.Errorf("write %s: %w", vecPath, err)
	}

	metaPath := filepath.Join(dir, name+".meta.json")
	if err := writeMetaFile(metaPath, meta); err != nil {
		return fmt.Errorf("write %s: %w", metaPath, err)
	}
	return nil
}

func writeVecFile(path string, dim int, entries []vector.Entry) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, headerSize)
	copy(header[0:4], magic)
	header[4] = formatVersion
	header[5] = dtypeFloat32
	binary.LittleEndian.PutUint16(header[6:8], uint16(dim))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(entries)))
	if _, err := f.Write(header); err != nil {
		return err
	}

	buf := make([]byte, 4)
	for _, e := range entries {
		for _, x := range e.Vector {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
			if _, err := f.Write(buf); err != nil {
				return err
			}
		}
	}

	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeMetaFile(path string, meta Meta) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a persisted index from dir/<name>.{vec,meta.json} and checks
// it against expectedModel and expectedDim. A model or dim mismatch returns
// a ModelMismatch error so the Search Manager can schedule a rebuild rather
// than silently mixing models (§4.2, §4.4); a missing or unreadable
// snapshot returns the underlying read or parse error.
func Load(dir, name, expectedModel string, expectedDim int) ([]vector.Entry, Meta, error) {
	metaPath := filepath.Join(dir, name+".meta.json")
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("read %s: %w", metaPath, err)
	}
	var meta Meta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, Meta{}, fmt.Errorf("parse %s: %w", metaPath, err)
	}

	if meta.ModelName != expectedModel || meta.Dim != expectedDim {
		return nil, meta, apperrors.New(apperrors.ModelMismatch,
			"snapshot model %q/dim %d incompatible with current %q/dim %d",
			meta.ModelName, meta.Dim, expectedModel, expectedDim)
	}

	vecPath := filepath.Join(dir, name+".vec")
	vectors, err := readVecFile(vecPath, meta.Dim, meta.VectorCount)
	if err != nil {
		return nil, meta, fmt.Errorf("read %s: %w", vecPath, err)
	}

	if len(meta.IDMap) != meta.VectorCount || len(meta.PayloadMap) != meta.VectorCount {
		return nil, meta, fmt.Errorf("%s: id_map/payload_map length mismatch with vector_count", metaPath)
	}

	entries := make([]vector.Entry, meta.VectorCount)
	for i := range entries {
		entries[i] = vector.Entry{ExternalID: meta.IDMap[i], Vector: vectors[i], Payload: meta.PayloadMap[i]}
	}
	return entries, meta, nil
}

func readVecFile(path string, dim, count int) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("truncated header")
	}
	if string(data[0:4]) != magic {
		return nil, fmt.Errorf("bad magic %q", data[0:4])
	}
	version := data[4]
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported format version %d", version)
	}
	fileDim := int(binary.LittleEndian.Uint16(data[6:8]))
	fileCount := int(binary.LittleEndian.Uint32(data[8:12]))
	if fileDim != dim || fileCount != count {
		return nil, fmt.Errorf("header dim/count %d/%d does not match metadata %d/%d", fileDim, fileCount, dim, count)
	}

	want := headerSize + count*dim*4
	if len(data) != want {
		return nil, fmt.Errorf("expected %d bytes, got %d", want, len(data))
	}

	vectors := make([][]float32, count)
	offset := headerSize
	for i := 0; i < count; i++ {
		v := make([]float32, dim)
		for d := 0; d < dim; d++ {
			v[d] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset : offset+4]))
			offset += 4
		}
		vectors[i] = v
	}
	return vectors, nil
}
