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

package planner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kpath-project/kpath-search/pkg/embedding"
	"github.com/kpath-project/kpath-search/pkg/registry"
	"github.com/kpath-project/kpath-search/pkg/search"
)

type stubProvider struct{}

func (stubProvider) Dim() int           { return 2 }
func (stubProvider) Identifier() string { return "stub/2" }

func (stubProvider) Embed(_ context.Context, texts []string) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		switch {
		case strings.Contains(lower, "payment"):
			out[i] = embedding.Vector{1, 0}
		case strings.Contains(lower, "inventory"):
			out[i] = embedding.Vector{0, 1}
		default:
			out[i] = embedding.Vector{0.5, 0.5}
		}
	}
	return out, nil
}

func writeFixtures(t *testing.T, dir string) {
	t.Helper()
	services := []registry.ServiceRecord{
		{ID: 1, Name: "PaymentGatewayAPI", Description: "handles payment processing", Status: "active", Domains: []string{"Finance"},
			Capabilities: []registry.Capability{{ID: 100, Name: "charge_card", Description: "charges a credit card"}}},
		{ID: 2, Name: "InventoryManagementAPI", Description: "tracks warehouse inventory", Status: "active", Domains: []string{"Operations"}},
	}
	tools := []registry.ToolRecord{
		{ID: 10, ServiceID: 1, ToolName: "process_payment", ToolDescription: "charge a card", IsActive: true},
		{ID: 11, ServiceID: 2, ToolName: "check_inventory", ToolDescription: "check stock levels", IsActive: true},
	}
	servicesJSON, _ := json.Marshal(services)
	toolsJSON, _ := json.Marshal(tools)
	if err := os.WriteFile(filepath.Join(dir, "services.json"), servicesJSON, 0o644); err != nil {
		t.Fatalf("write services.json: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tools.json"), toolsJSON, 0o644); err != nil {
		t.Fatalf("write tools.json: %v", err)
	}
}

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	fixtureDir := t.TempDir()
	writeFixtures(t, fixtureDir)
	reader, err := registry.NewFixtureReader(fixtureDir)
	if err != nil {
		t.Fatalf("NewFixtureReader: %v", err)
	}

	mgr := search.New(reader, stubProvider{}, t.TempDir(), nil)
	if err := mgr.BuildAll(context.Background()); err != nil {
		t.Fatalf("BuildAll: %v", err)
	}

	cached, err := embedding.NewCachedProvider(stubProvider{}, 16)
	if err != nil {
		t.Fatalf("NewCachedProvider: %v", err)
	}
	return New(mgr, cached, reader)
}

func TestPlanAgentsOnlyRanksPaymentQueryTop(t *testing.T) {
	p := newTestPlanner(t)
	results, err := p.Plan(context.Background(), Query{Text: "payment processing", Limit: 10, Mode: AgentsOnly})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(results) == 0 || results[0].ServiceID != 1 {
		t.Fatalf("expected service 1 (payment) top-1, got %+v", results)
	}
	if results[0].Rank != 1 {
		t.Fatalf("expected rank 1, got %d", results[0].Rank)
	}
}

func TestPlanToolsOnlyAttachesRecommendedTool(t *testing.T) {
	p := newTestPlanner(t)
	results, err := p.Plan(context.Background(), Query{Text: "payment processing", Limit: 10, Mode: ToolsOnly})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(results) == 0 || results[0].RecommendedTool != 10 {
		t.Fatalf("expected recommended tool 10, got %+v", results)
	}
}

func TestPlanAgentsAndToolsMergeLawCombinesWithMax(t *testing.T) {
	p := newTestPlanner(t)
	results, err := p.Plan(context.Background(), Query{Text: "payment processing", Limit: 10, Mode: AgentsAndTools})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected at least one result")
	}
	top := results[0]
	if top.ServiceID != 1 {
		t.Fatalf("expected service 1 top-1, got %+v", top)
	}
	if top.Evidence != EvidenceBoth && top.Evidence != EvidenceDirect {
		t.Fatalf("expected direct or both evidence for a service with both a direct and tool hit, got %s", top.Evidence)
	}
}

func TestPlanDomainFilterExcludesNonMatching(t *testing.T) {
	p := newTestPlanner(t)
	results, err := p.Plan(context.Background(), Query{
		Text: "reporting", Limit: 10, Mode: AgentsOnly, DomainFilter: []string{"Finance"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for _, r := range results {
		if r.ServiceID != 1 {
			t.Fatalf("expected only Finance-domain service 1, got %+v", r)
		}
	}
}

func TestPlanCapabilityFilterMatchesByName(t *testing.T) {
	p := newTestPlanner(t)
	results, err := p.Plan(context.Background(), Query{
		Text: "payment processing", Limit: 10, Mode: AgentsOnly, CapabilityFilter: []string{"charge_card"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(results) != 1 || results[0].ServiceID != 1 {
		t.Fatalf("expected only service 1 to match capability filter, got %+v", results)
	}
}

func TestPlanMinScoreThresholdExcludesLowScores(t *testing.T) {
	p := newTestPlanner(t)
	results, err := p.Plan(context.Background(), Query{
		Text: "payment processing", Limit: 10, Mode: AgentsOnly, MinScore: 0.99,
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for _, r := range results {
		if r.Score < 0.99 {
			t.Fatalf("expected no results below min_score, got %+v", r)
		}
	}
}

func TestPlanWorkflowsAttachesToolBundle(t *testing.T) {
	p := newTestPlanner(t)
	results, err := p.Plan(context.Background(), Query{Text: "payment processing", Limit: 10, Mode: Workflows})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(results) == 0 || len(results[0].WorkflowTools) == 0 {
		t.Fatalf("expected a workflow bundle attached, got %+v", results)
	}
}

func TestPlanScoresMonotonicallyDescending(t *testing.T) {
	p := newTestPlanner(t)
	results, err := p.Plan(context.Background(), Query{Text: "card", Limit: 10, Mode: AgentsAndTools})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for i := 0; i+1 < len(results); i++ {
		if results[i].Score < results[i+1].Score {
			t.Fatalf("scores not monotonically descending: %+v", results)
		}
	}
}

// capabilityBoostProvider embeds services so that, absent any lexical
// signal, InventoryManagementAPI slightly outranks PaymentGatewayAPI; a
// query naming one of PaymentGatewayAPI's capabilities should then boost
// it ahead of the otherwise-closer semantic hit.
type capabilityBoostProvider struct{}

func (capabilityBoostProvider) Dim() int           { return 2 }
func (capabilityBoostProvider) Identifier() string { return "capability-boost-stub/2" }

func (capabilityBoostProvider) Embed(_ context.Context, texts []string) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		switch {
		case strings.Contains(lower, "paymentgatewayapi"):
			out[i] = embedding.Vector{0.9063, 0.4226} // 25 degrees off the query axis
		case strings.Contains(lower, "inventorymanagementapi"):
			out[i] = embedding.Vector{0.9962, 0.0872} // 5 degrees off the query axis, ranks higher unboosted
		default:
			out[i] = embedding.Vector{1, 0} // the query vector itself
		}
	}
	return out, nil
}

func TestPlanCapabilitiesBoostsMatchingServiceAheadOfCloserSemanticHit(t *testing.T) {
	fixtureDir := t.TempDir()
	writeFixtures(t, fixtureDir)
	reader, err := registry.NewFixtureReader(fixtureDir)
	if err != nil {
		t.Fatalf("NewFixtureReader: %v", err)
	}

	mgr := search.New(reader, capabilityBoostProvider{}, t.TempDir(), nil)
	if err := mgr.BuildAll(context.Background()); err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	cached, err := embedding.NewCachedProvider(capabilityBoostProvider{}, 16)
	if err != nil {
		t.Fatalf("NewCachedProvider: %v", err)
	}
	p := New(mgr, cached, reader)

	baseline, err := p.Plan(context.Background(), Query{Text: "unrelated query text", Limit: 10, Mode: Capabilities})
	if err != nil {
		t.Fatalf("Plan (baseline): %v", err)
	}
	if len(baseline) == 0 || baseline[0].ServiceID != 2 {
		t.Fatalf("expected baseline (no capability mention) to rank service 2 first, got %+v", baseline)
	}

	results, err := p.Plan(context.Background(), Query{Text: "I need to charge_card right now", Limit: 10, Mode: Capabilities})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(results) == 0 || results[0].ServiceID != 1 {
		t.Fatalf("expected the capability mention to boost service 1 to the top, got %+v", results)
	}
}

func TestPlanSimilarExcludesSourceAndRanksRelatedService(t *testing.T) {
	p := newTestPlanner(t)
	results, err := p.PlanSimilar(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("PlanSimilar: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected at least one similar service, got none")
	}
	for _, r := range results {
		if r.ServiceID == 1 {
			t.Fatalf("expected source service 1 excluded from its own similarity results, got %+v", results)
		}
	}
	if results[0].ServiceID != 2 {
		t.Errorf("expected the only other service (2) to rank first, got %d", results[0].ServiceID)
	}
}

func TestPlanSimilarRespectsLimit(t *testing.T) {
	p := newTestPlanner(t)
	results, err := p.PlanSimilar(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("PlanSimilar: %v", err)
	}
	if len(results) > 1 {
		t.Fatalf("expected at most the one other fixture service, got %d", len(results))
	}
}
