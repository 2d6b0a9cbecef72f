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

package facade

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kpath-project/kpath-search/pkg/embedding"
	"github.com/kpath-project/kpath-search/pkg/planner"
	"github.com/kpath-project/kpath-search/pkg/registry"
	"github.com/kpath-project/kpath-search/pkg/search"
	"github.com/kpath-project/kpath-search/pkg/shaper"
)

// fixedProvider embeds every text to the same unit vector, so cosine
// similarity is always 1 regardless of content; fine for exercising the
// facade's plumbing without a real embedding backend.
type fixedProvider struct{ dim int }

func (p fixedProvider) Dim() int           { return p.dim }
func (p fixedProvider) Identifier() string { return "fixed-test:4" }
func (p fixedProvider) Embed(_ context.Context, texts []string) ([]embedding.Vector, error) {
	vecs := make([]embedding.Vector, len(texts))
	for i := range texts {
		v := make(embedding.Vector, p.dim)
		v[0] = 1
		vecs[i] = v
	}
	return vecs, nil
}

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	dir := t.TempDir()

	services := []registry.ServiceRecord{
		{ID: 1, Name: "PaymentGatewayAPI", Description: "processes payments", Status: "active", Domains: []string{"Finance"}},
		{ID: 2, Name: "InventoryAPI", Description: "tracks warehouse stock", Status: "active", Domains: []string{"Logistics"}},
	}
	tools := []registry.ToolRecord{
		{
			ID: 10, ServiceID: 1, ToolName: "process_payment", ToolDescription: "charge a card", IsActive: true,
			InputSchema:  json.RawMessage(`{"type":"object","properties":{"amount":{"type":"number"}}}`),
			OutputSchema: json.RawMessage(`{"type":"object","properties":{"status":{"type":"string"}}}`),
			ExampleCalls: mustExampleCalls(t, `{"basic": {"amount": 100}}`),
		},
	}
	servicesJSON, _ := json.Marshal(services)
	toolsJSON, _ := json.Marshal(tools)
	if err := os.WriteFile(filepath.Join(dir, "services.json"), servicesJSON, 0o644); err != nil {
		t.Fatalf("write services.json: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tools.json"), toolsJSON, 0o644); err != nil {
		t.Fatalf("write tools.json: %v", err)
	}

	reader, err := registry.NewFixtureReader(dir)
	if err != nil {
		t.Fatalf("NewFixtureReader: %v", err)
	}

	provider := fixedProvider{dim: 4}
	cached, err := embedding.NewCachedProvider(provider, 16)
	if err != nil {
		t.Fatalf("NewCachedProvider: %v", err)
	}

	manager := search.New(reader, provider, t.TempDir(), nil)
	if err := manager.BuildAll(context.Background()); err != nil {
		t.Fatalf("BuildAll: %v", err)
	}

	p := planner.New(manager, cached, reader)
	s := shaper.New(reader)
	return New(p, s, manager, reader, nil, nil, nil)
}

func mustExampleCalls(t *testing.T, raw string) registry.ExampleCalls {
	t.Helper()
	var ec registry.ExampleCalls
	if err := json.Unmarshal([]byte(raw), &ec); err != nil {
		t.Fatalf("unmarshal example calls: %v", err)
	}
	return ec
}

func TestFacadeSearchReturnsRankedResults(t *testing.T) {
	f := newTestFacade(t)
	env, err := f.Search(context.Background(), SearchRequest{Query: "charge a credit card", Mode: string(planner.AgentsOnly)}, "caller-1")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if env.TotalResults == 0 {
		t.Fatalf("expected at least one result, got %+v", env)
	}
}

func TestFacadeSearchPropagatesValidationErrors(t *testing.T) {
	f := newTestFacade(t)
	_, err := f.Search(context.Background(), SearchRequest{Query: ""}, "caller-1")
	if err == nil {
		t.Fatal("expected an error for an empty query")
	}
}

func TestFacadeSimilarExcludesSourceService(t *testing.T) {
	f := newTestFacade(t)
	env, err := f.Similar(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	for _, item := range env.Results {
		if item.ServiceID == 1 {
			t.Fatalf("expected the source service to be excluded from its own similarity results")
		}
	}
}

func TestFacadeToolDetailSchemaCanonicalizes(t *testing.T) {
	f := newTestFacade(t)
	proj, err := f.ToolDetail(context.Background(), 10, ToolSchema)
	if err != nil {
		t.Fatalf("ToolDetail: %v", err)
	}
	if proj.InputSchema == nil {
		t.Fatal("expected a canonicalized input schema")
	}
	var decoded map[string]any
	if err := json.Unmarshal(proj.InputSchema, &decoded); err != nil {
		t.Fatalf("canonical schema is not valid JSON: %v", err)
	}
}

func TestFacadeToolDetailSummaryOmitsSchema(t *testing.T) {
	f := newTestFacade(t)
	proj, err := f.ToolDetail(context.Background(), 10, ToolSummary)
	if err != nil {
		t.Fatalf("ToolDetail: %v", err)
	}
	if proj.InputSchema != nil {
		t.Fatalf("expected summary to omit the schema, got %s", proj.InputSchema)
	}
}

func TestFacadeToolDetailUnknownToolIsNotFound(t *testing.T) {
	f := newTestFacade(t)
	_, err := f.ToolDetail(context.Background(), 9999, ToolDetails)
	if err == nil {
		t.Fatal("expected an error for an unknown tool id")
	}
}

func TestFacadeStatusReflectsBuiltIndexes(t *testing.T) {
	f := newTestFacade(t)
	status := f.Status()
	if status.State != search.Ready {
		t.Fatalf("expected state Ready after BuildAll, got %s", status.State)
	}
	if status.ServiceCount != 2 {
		t.Errorf("expected 2 services indexed, got %d", status.ServiceCount)
	}
}

func TestFacadeInitializeIsNoopWhenAlreadyReady(t *testing.T) {
	f := newTestFacade(t)
	before := f.Status()
	f.Initialize()
	time.Sleep(10 * time.Millisecond)
	after := f.Status()
	if !after.LastBuiltAt.Equal(before.LastBuiltAt) {
		t.Fatal("expected Initialize to be a no-op once the manager is already ready")
	}
}
