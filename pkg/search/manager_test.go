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

package search

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kpath-project/kpath-search/pkg/config"
	"github.com/kpath-project/kpath-search/pkg/embedding"
	"github.com/kpath-project/kpath-search/pkg/registry"
)

// hashingProvider deterministically maps text to a 2-dim vector based on
// whether it contains one of a fixed set of keywords, so tests can assert
// on ranking without a real model.
type hashingProvider struct{}

func (hashingProvider) Dim() int           { return 2 }
func (hashingProvider) Identifier() string { return "test-hashing-model/2" }

func (hashingProvider) Embed(_ context.Context, texts []string) ([]embedding.Vector, error) {
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
		{ID: 1, Name: "PaymentGatewayAPI", Description: "handles payment processing", Status: "active", Domains: []string{"Finance"}},
		{ID: 2, Name: "InventoryManagementAPI", Description: "tracks warehouse inventory", Status: "active", Domains: []string{"Operations"}},
	}
	tools := []registry.ToolRecord{
		{ID: 10, ServiceID: 1, ToolName: "process_payment", ToolDescription: "charge a card", IsActive: true},
		{ID: 11, ServiceID: 2, ToolName: "check_inventory", ToolDescription: "check stock levels", IsActive: true},
	}

	servicesJSON, err := json.Marshal(services)
	if err != nil {
		t.Fatalf("marshal services: %v", err)
	}
	toolsJSON, err := json.Marshal(tools)
	if err != nil {
		t.Fatalf("marshal tools: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "services.json"), servicesJSON, 0o644); err != nil {
		t.Fatalf("write services.json: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tools.json"), toolsJSON, 0o644); err != nil {
		t.Fatalf("write tools.json: %v", err)
	}
}

func newTestManager(t *testing.T) (*Manager, registry.Reader) {
	t.Helper()
	fixtureDir := t.TempDir()
	writeFixtures(t, fixtureDir)

	reader, err := registry.NewFixtureReader(fixtureDir)
	if err != nil {
		t.Fatalf("NewFixtureReader: %v", err)
	}

	snapDir := t.TempDir()
	mgr := New(reader, hashingProvider{}, snapDir, nil)
	if err := mgr.BuildAll(context.Background()); err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	return mgr, reader
}

func TestBuildAllPopulatesBothIndexesAndBecomesReady(t *testing.T) {
	mgr, _ := newTestManager(t)

	status := mgr.Status()
	if status.State != Ready {
		t.Fatalf("expected Ready, got %s", status.State)
	}
	if status.ServiceCount != 2 || status.ToolCount != 2 {
		t.Fatalf("expected 2/2 counts, got %+v", status)
	}
}

func TestSearchServicesRanksPaymentQueryTop(t *testing.T) {
	mgr, _ := newTestManager(t)

	results, err := mgr.SearchServices([]float32{1, 0}, 10, Filter{})
	if err != nil {
		t.Fatalf("SearchServices: %v", err)
	}
	if len(results) == 0 || results[0].Payload.Name != "PaymentGatewayAPI" {
		t.Fatalf("expected PaymentGatewayAPI top-1, got %+v", results)
	}
}

func TestDomainFilterRetainsOnlyMatchingDomains(t *testing.T) {
	mgr, _ := newTestManager(t)

	results, err := mgr.SearchServices([]float32{0.5, 0.5}, 10, Filter{Domains: []string{"Finance"}})
	if err != nil {
		t.Fatalf("SearchServices: %v", err)
	}
	for _, r := range results {
		if r.Payload.Name != "PaymentGatewayAPI" {
			t.Fatalf("expected only Finance-domain results, got %+v", r)
		}
	}
}

func TestUpsertServiceKeepsServiceCount(t *testing.T) {
	mgr, _ := newTestManager(t)

	if err := mgr.UpsertService(context.Background(), 1); err != nil {
		t.Fatalf("UpsertService: %v", err)
	}
	if mgr.Status().ServiceCount != 2 {
		t.Fatalf("expected upsert to be idempotent on count, got %d", mgr.Status().ServiceCount)
	}
}

func TestDeleteServiceCascadesToItsTools(t *testing.T) {
	mgr, _ := newTestManager(t)

	if err := mgr.DeleteService(1); err != nil {
		t.Fatalf("DeleteService: %v", err)
	}
	status := mgr.Status()
	if status.ServiceCount != 1 {
		t.Fatalf("expected 1 service remaining, got %d", status.ServiceCount)
	}
	if status.ToolCount != 1 {
		t.Fatalf("expected cascade to remove the deleted service's tool, got %d tools", status.ToolCount)
	}

	results, err := mgr.SearchTools([]float32{1, 0}, 10, Filter{})
	if err != nil {
		t.Fatalf("SearchTools: %v", err)
	}
	for _, r := range results {
		if r.Payload.ParentID == 1 {
			t.Fatalf("expected no tools left referencing deleted service 1, got %+v", r)
		}
	}
}

// TestBuildAllFitsLexicalProviderBeforeEmbedding reproduces the lexical
// backend's production wiring: a raw LexicalProvider behind the same
// BoundedProvider/CachedProvider wrappers the CLI builds (cmd/kpath/build.go),
// handed to the manager as the bounded provider the way buildApp does. A
// manager that embeds without first fitting the provider fails every
// build with "lexical provider not fit"; this asserts the manager reaches
// Ready instead.
func TestBuildAllFitsLexicalProviderBeforeEmbedding(t *testing.T) {
	fixtureDir := t.TempDir()
	writeFixtures(t, fixtureDir)
	reader, err := registry.NewFixtureReader(fixtureDir)
	if err != nil {
		t.Fatalf("NewFixtureReader: %v", err)
	}

	cfg := config.EmbeddingConfig{Backend: "lexical", Dim: 2}
	raw := embedding.NewProviderFromConfig(cfg)
	bounded := embedding.NewBoundedProvider(raw, 256)
	if _, err := embedding.NewCachedProvider(bounded, 16); err != nil {
		t.Fatalf("NewCachedProvider: %v", err)
	}

	mgr := New(reader, bounded, t.TempDir(), nil)
	if err := mgr.BuildAll(context.Background()); err != nil {
		t.Fatalf("BuildAll with lexical backend: %v", err)
	}

	status := mgr.Status()
	if status.State != Ready {
		t.Fatalf("expected Ready, got %s (last error: %s)", status.State, status.LastError)
	}
	if status.ServiceCount != 2 || status.ToolCount != 2 {
		t.Fatalf("expected 2/2 counts, got %+v", status)
	}
}

func TestQueryBeforeBuildReturnsIndexNotReady(t *testing.T) {
	fixtureDir := t.TempDir()
	writeFixtures(t, fixtureDir)
	reader, err := registry.NewFixtureReader(fixtureDir)
	if err != nil {
		t.Fatalf("NewFixtureReader: %v", err)
	}

	mgr := New(reader, hashingProvider{}, t.TempDir(), nil)
	_, err = mgr.SearchServices([]float32{1, 0}, 10, Filter{})
	if err == nil {
		t.Fatalf("expected IndexNotReady before any build")
	}
}
