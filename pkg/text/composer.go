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

// Package text deterministically composes the text blob that gets
// embedded for a service or tool (§4.1). The composition is pure: the same
// record always yields the same string, and any change to the rule
// requires a full reindex.
package text

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/kpath-project/kpath-search/pkg/registry"
)

// ComposeService emits the service's name three times (weighting), its
// description, each capability description, then each domain string.
func ComposeService(s registry.ServiceRecord) string {
	var parts []string

	if s.Name != "" {
		parts = append(parts, s.Name, s.Name, s.Name)
	}
	if s.Description != "" {
		parts = append(parts, s.Description)
	}
	for _, c := range s.Capabilities {
		if c.Description != "" {
			parts = append(parts, c.Description)
		}
	}
	parts = append(parts, s.Domains...)

	return strings.Join(parts, " ")
}

// ComposeTool emits the tool's name three times, its description, the
// sorted keys (or count) of example_calls, the top-level keys of its
// input/output schemas, then the parent service's name once.
func ComposeTool(t registry.ToolRecord, parentServiceName string) string {
	var parts []string

	if t.ToolName != "" {
		parts = append(parts, t.ToolName, t.ToolName, t.ToolName)
	}
	if t.ToolDescription != "" {
		parts = append(parts, t.ToolDescription)
	}

	parts = append(parts, exampleCallsToken(t.ExampleCalls)...)
	parts = append(parts, topLevelKeys(t.InputSchema)...)
	parts = append(parts, topLevelKeys(t.OutputSchema)...)

	if parentServiceName != "" {
		parts = append(parts, parentServiceName)
	}

	return strings.Join(parts, " ")
}

func exampleCallsToken(ec registry.ExampleCalls) []string {
	if ec.IsMap() {
		return ec.SortedKeys()
	}
	if ec.Count() == 0 {
		return nil
	}
	return []string{strconv.Itoa(ec.Count())}
}

// topLevelKeys extracts the sorted top-level keys of a JSON object schema.
// Non-object or empty schemas contribute nothing.
func topLevelKeys(schema json.RawMessage) []string {
	if len(schema) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(schema, &obj); err != nil {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
