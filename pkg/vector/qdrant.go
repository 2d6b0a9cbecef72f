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
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/kpath-project/kpath-search/pkg/apperrors"
	"github.com/kpath-project/kpath-search/pkg/config"
)

// QdrantIndex is the externally-hosted alternative to the in-process flat
// Index (§4.3 design note: "upgrade to IVF/HNSW is a drop-in capacity
// change and does not alter the contract"). It implements Add, Replace,
// Remove and Search against a remote Qdrant collection, addressing points
// by the string form of external_id. It has no Load, Export, Compact or
// Size, and nothing in this module constructs one.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	model      string
	dim        int
}

// NewQdrantIndex connects to Qdrant and binds to the named collection.
func NewQdrantIndex(cfg config.QdrantConfig, collection, model string, dim int) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.EnableTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &QdrantIndex{client: client, collection: collection, model: model, dim: dim}, nil
}

func (q *QdrantIndex) Model() string { return q.model }
func (q *QdrantIndex) Dim() int      { return q.dim }

// EnsureCollection creates the backing collection if it does not exist yet.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check qdrant collection %s: %w", q.collection, err)
	}
	if exists {
		return nil
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (q *QdrantIndex) Add(ctx context.Context, externalID int64, vec []float32, payload Payload) error {
	return q.upsert(ctx, externalID, vec, payload)
}

func (q *QdrantIndex) Replace(ctx context.Context, externalID int64, vec []float32, payload Payload) error {
	return q.upsert(ctx, externalID, vec, payload)
}

func (q *QdrantIndex) upsert(ctx context.Context, externalID int64, vec []float32, payload Payload) error {
	fields := map[string]interface{}{
		"external_id": externalID,
		"name":        payload.Name,
		"description": payload.Description,
		"parent_id":   payload.ParentID,
		"tags":        payload.Tags,
	}
	values := make(map[string]*qdrant.Value, len(fields))
	for key, raw := range fields {
		v, err := qdrant.NewValue(raw)
		if err != nil {
			return fmt.Errorf("qdrant payload field %s: %w", key, err)
		}
		values[key] = v
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(strconv.FormatInt(externalID, 10)),
		Vectors: qdrant.NewVectors(vec...),
		Payload: values,
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert %d: %w", externalID, err)
	}
	return nil
}

func (q *QdrantIndex) Remove(ctx context.Context, externalID int64) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{qdrant.NewID(strconv.FormatInt(externalID, 10))},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete %d: %w", externalID, err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, queryVec []float32, k int) ([]Result, error) {
	if len(queryVec) != q.dim {
		return nil, apperrors.New(apperrors.Internal, "query vector dim %d does not match index dim %d", len(queryVec), q.dim)
	}

	points, err := q.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         queryVec,
		Limit:          uint64(k),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	results := make([]Result, 0, len(points.Result))
	for _, p := range points.Result {
		results = append(results, Result{
			ExternalID: payloadExternalID(p.Payload),
			Score:      rescaleCosine(float64(p.Score)),
			Payload:    payloadFromQdrant(p.Payload),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ExternalID < results[j].ExternalID
	})
	return results, nil
}

// payloadExternalID recovers external_id from the point payload rather
// than the Qdrant point id, since points are addressed by a string form of
// external_id and parsing it back out of payload keeps the two paths (UUID
// vs numeric point id schemes across Qdrant client versions) decoupled
// from this package's int64 identity space.
func payloadExternalID(fields map[string]*qdrant.Value) int64 {
	v, ok := fields["external_id"]
	if !ok {
		return 0
	}
	return v.GetIntegerValue()
}

func payloadFromQdrant(fields map[string]*qdrant.Value) Payload {
	var p Payload
	if v, ok := fields["name"]; ok {
		p.Name = v.GetStringValue()
	}
	if v, ok := fields["description"]; ok {
		p.Description = v.GetStringValue()
	}
	if v, ok := fields["parent_id"]; ok {
		p.ParentID = v.GetIntegerValue()
	}
	return p
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
