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

// Package registry models the read-only projection over the external
// service/tool registry. The core never writes to the registry; it only
// consumes the record shapes defined here (§3, §4.5).
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Capability is a tagged function of a service, used for filtering (§GLOSSARY).
type Capability struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema,omitempty"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`
}

// ServiceRecord is the read projection of an invokable capability provider.
// Only Status == "active" services participate in indexing (§3).
type ServiceRecord struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`

	ToolType         string   `json:"tool_type,omitempty"`
	Visibility       string   `json:"visibility,omitempty"`
	Endpoint         string   `json:"endpoint,omitempty"`
	Version          string   `json:"version,omitempty"`
	InteractionModes []string `json:"interaction_modes,omitempty"`

	AgentProtocol         json.RawMessage `json:"agent_protocol,omitempty"`
	AuthType              string          `json:"auth_type,omitempty"`
	AuthConfig            json.RawMessage `json:"auth_config,omitempty"`
	ToolRecommendations   json.RawMessage `json:"tool_recommendations,omitempty"`
	AgentCapabilities     json.RawMessage `json:"agent_capabilities,omitempty"`
	CommunicationPatterns json.RawMessage `json:"communication_patterns,omitempty"`
	OrchestrationMetadata json.RawMessage `json:"orchestration_metadata,omitempty"`
	IntegrationDetails    json.RawMessage `json:"integration_details,omitempty"`

	Capabilities []Capability `json:"capabilities,omitempty"`
	Domains      []string     `json:"domains,omitempty"`
}

// IsActive reports whether this service is eligible for indexing (§3).
func (s *ServiceRecord) IsActive() bool {
	return s.Status == "active"
}

// ExampleCalls is a dynamic payload shape: the registry stores it as either
// a keyed map (named examples) or a plain list. §9 requires both shapes to
// be accepted without error.
type ExampleCalls struct {
	asMap  map[string]json.RawMessage
	asList []json.RawMessage
}

// UnmarshalJSON accepts either a JSON object or a JSON array.
func (e *ExampleCalls) UnmarshalJSON(data []byte) error {
	trimmed := trimLeadingSpace(data)
	if len(trimmed) == 0 {
		*e = ExampleCalls{}
		return nil
	}
	switch trimmed[0] {
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("example_calls: invalid object: %w", err)
		}
		*e = ExampleCalls{asMap: m}
	case '[':
		var l []json.RawMessage
		if err := json.Unmarshal(data, &l); err != nil {
			return fmt.Errorf("example_calls: invalid array: %w", err)
		}
		*e = ExampleCalls{asList: l}
	default:
		return fmt.Errorf("example_calls: expected object or array")
	}
	return nil
}

// MarshalJSON re-emits whichever shape was parsed.
func (e ExampleCalls) MarshalJSON() ([]byte, error) {
	if e.asMap != nil {
		return json.Marshal(e.asMap)
	}
	if e.asList != nil {
		return json.Marshal(e.asList)
	}
	return []byte("null"), nil
}

// SortedKeys returns the sorted keys when example_calls is a map, or nil
// when it is a list (§4.1: composer emits sorted keys or count).
func (e *ExampleCalls) SortedKeys() []string {
	if e.asMap == nil {
		return nil
	}
	keys := make([]string, 0, len(e.asMap))
	for k := range e.asMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of examples regardless of shape.
func (e *ExampleCalls) Count() int {
	if e.asMap != nil {
		return len(e.asMap)
	}
	return len(e.asList)
}

// IsMap reports whether the parsed shape was a keyed map.
func (e *ExampleCalls) IsMap() bool {
	return e.asMap != nil
}

func trimLeadingSpace(data []byte) []byte {
	i := 0
	for i < len(data) {
		switch data[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		break
	}
	return data[i:]
}

// ToolRecord is the read projection of a single invokable operation of a
// service. Only IsActive tools of active services participate in indexing.
type ToolRecord struct {
	ID              int64  `json:"id"`
	ServiceID       int64  `json:"service_id"`
	ToolName        string `json:"tool_name"`
	ToolDescription string `json:"tool_description"`

	InputSchema  json.RawMessage `json:"input_schema,omitempty"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`
	ExampleCalls ExampleCalls    `json:"example_calls,omitempty"`
	ToolVersion  string          `json:"tool_version,omitempty"`
	IsActive     bool            `json:"is_active"`
}
