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

package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
}

func TestFixtureReaderFiltersInactive(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "services.json", `[
		{"id": 1, "name": "PaymentGatewayAPI", "status": "active", "domains": ["Finance"]},
		{"id": 2, "name": "RetiredAPI", "status": "deprecated"}
	]`)
	writeFixture(t, dir, "tools.json", `[
		{"id": 10, "service_id": 1, "tool_name": "process_payment", "is_active": true},
		{"id": 11, "service_id": 1, "tool_name": "old_tool", "is_active": false},
		{"id": 12, "service_id": 2, "tool_name": "orphan_tool", "is_active": true}
	]`)

	r, err := NewFixtureReader(dir)
	if err != nil {
		t.Fatalf("NewFixtureReader: %v", err)
	}
	defer r.Close()

	var services []ServiceRecord
	if err := r.IterActiveServices(context.Background(), func(s ServiceRecord) error {
		services = append(services, s)
		return nil
	}); err != nil {
		t.Fatalf("IterActiveServices: %v", err)
	}
	if len(services) != 1 || services[0].Name != "PaymentGatewayAPI" {
		t.Fatalf("expected only PaymentGatewayAPI, got %+v", services)
	}

	var tools []ToolRecord
	if err := r.IterActiveTools(context.Background(), func(tr ToolRecord) error {
		tools = append(tools, tr)
		return nil
	}); err != nil {
		t.Fatalf("IterActiveTools: %v", err)
	}
	if len(tools) != 1 || tools[0].ToolName != "process_payment" {
		t.Fatalf("expected only process_payment (inactive tool and orphan of inactive service excluded), got %+v", tools)
	}
}

func TestFixtureReaderGetNotFound(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "services.json", `[]`)
	writeFixture(t, dir, "tools.json", `[]`)

	r, err := NewFixtureReader(dir)
	if err != nil {
		t.Fatalf("NewFixtureReader: %v", err)
	}
	defer r.Close()

	if _, err := r.GetService(context.Background(), 999); err == nil {
		t.Fatalf("expected NotFound error for unknown service")
	}
	if _, err := r.GetTool(context.Background(), 999); err == nil {
		t.Fatalf("expected NotFound error for unknown tool")
	}
}

func TestExampleCallsAcceptsMapOrList(t *testing.T) {
	var mapShape ToolRecord
	if err := json.Unmarshal([]byte(`{"id":1,"example_calls":{"b":{},"a":{}}}`), &mapShape); err != nil {
		t.Fatalf("unmarshal map shape: %v", err)
	}
	if !mapShape.ExampleCalls.IsMap() {
		t.Fatalf("expected map shape")
	}
	if keys := mapShape.ExampleCalls.SortedKeys(); len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("expected sorted keys [a b], got %v", keys)
	}

	var listShape ToolRecord
	if err := json.Unmarshal([]byte(`{"id":2,"example_calls":[{},{},{}]}`), &listShape); err != nil {
		t.Fatalf("unmarshal list shape: %v", err)
	}
	if listShape.ExampleCalls.IsMap() {
		t.Fatalf("expected list shape")
	}
	if listShape.ExampleCalls.Count() != 3 {
		t.Fatalf("expected count 3, got %d", listShape.ExampleCalls.Count())
	}
}
