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

// Package shaper projects a planner.RankedResult list into the full,
// compact, or minimal envelope shape within the per-result token budget
// (§4.8), looking up the full record via the Registry Reader since the
// vector index payload deliberately carries only a compact subset (§9).
package shaper

import "encoding/json"

// ResponseMode selects the projection applied to each result (§4.8).
type ResponseMode string

const (
	Full    ResponseMode = "full"
	Compact ResponseMode = "compact"
	Minimal ResponseMode = "minimal"
)

// tokenBudget is the per-result token cap (§4.8), counted with the
// cl100k_base encoding, or with the char/4 proxy when it cannot be loaded.
var tokenBudget = map[ResponseMode]int{
	Full:    6000,
	Compact: 1800,
	Minimal: 300,
}

// ServiceProjection is the service-shaped part of a result, with fields
// present or omitted depending on ResponseMode.
type ServiceProjection struct {
	ServiceID   int64    `json:"service_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Endpoint    string   `json:"endpoint,omitempty"`
	AuthType    string   `json:"auth_type,omitempty"`
	Domains     []string `json:"domains,omitempty"`
	Version     string   `json:"version,omitempty"`
	Status      string   `json:"status,omitempty"`

	// Full-mode-only orchestration blobs.
	AgentProtocol         json.RawMessage `json:"agent_protocol,omitempty"`
	AuthConfig            json.RawMessage `json:"auth_config,omitempty"`
	ToolRecommendations   json.RawMessage `json:"tool_recommendations,omitempty"`
	AgentCapabilities     json.RawMessage `json:"agent_capabilities,omitempty"`
	CommunicationPatterns json.RawMessage `json:"communication_patterns,omitempty"`
	OrchestrationMetadata json.RawMessage `json:"orchestration_metadata,omitempty"`
	IntegrationDetails    json.RawMessage `json:"integration_details,omitempty"`

	Capabilities []CapabilityProjection `json:"capabilities,omitempty"`
}

// CapabilityProjection is a service's capability, name/description only
// (schemas are never carried at the service level).
type CapabilityProjection struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ToolProjection is the tool-shaped part of a result.
type ToolProjection struct {
	ToolID          int64  `json:"tool_id"`
	ToolName        string `json:"tool_name"`
	ToolDescription string `json:"tool_description,omitempty"`
	ToolVersion     string `json:"tool_version,omitempty"`

	RecommendationScore float64 `json:"recommendation_score,omitempty"`
	DetailsURL          string  `json:"details_url,omitempty"`

	InputSchemaKeys  []string        `json:"input_schema_keys,omitempty"`
	OutputSchemaKeys []string        `json:"output_schema_keys,omitempty"`
	InputSchema      json.RawMessage `json:"input_schema,omitempty"`
	OutputSchema     json.RawMessage `json:"output_schema,omitempty"`

	ExampleCallCount int             `json:"example_call_count,omitempty"`
	ExampleCalls     json.RawMessage `json:"example_calls,omitempty"`
}

// Item is one shaped result in the envelope (§4.8).
type Item struct {
	ServiceID       int64              `json:"service_id"`
	Score           float64            `json:"score"`
	Rank            int                `json:"rank"`
	Evidence        string             `json:"evidence"`
	Service         *ServiceProjection `json:"service,omitempty"`
	RecommendedTool *ToolProjection    `json:"recommended_tool,omitempty"`
	WorkflowTools   []ToolProjection   `json:"workflow_tools,omitempty"`
}

// Envelope is the top-level response shape (§4.8).
type Envelope struct {
	Query        string `json:"query"`
	SearchMode   string `json:"search_mode"`
	Results      []Item `json:"results"`
	TotalResults int    `json:"total_results"`
	SearchTimeMS int64  `json:"search_time_ms"`
	Timestamp    string `json:"timestamp"`
}
