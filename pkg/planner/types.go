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

// Package planner implements the five search modes (§4.7): it embeds the
// query (via a cached provider), calls the Search Manager for one or both
// indexes, merges and re-ranks heterogeneous results, applies domain and
// capability filters, and returns a flat, ranked result list for the
// Response Shaper to project.
package planner

import "fmt"

// Mode selects which indexes are searched and how results are combined.
type Mode string

const (
	AgentsOnly     Mode = "agents_only"
	ToolsOnly      Mode = "tools_only"
	AgentsAndTools Mode = "agents_and_tools"
	Workflows      Mode = "workflows"
	Capabilities   Mode = "capabilities"
)

// ValidModes lists every mode accepted by the grammar (§6.2).
var ValidModes = map[Mode]bool{
	AgentsOnly:     true,
	ToolsOnly:      true,
	AgentsAndTools: true,
	Workflows:      true,
	Capabilities:   true,
}

// Evidence tags how a result was found, for transparency in the response.
type Evidence string

const (
	EvidenceDirect Evidence = "direct"
	EvidenceBoth   Evidence = "both"
)

// EvidenceViaTool formats the evidence tag for a tool-derived hit.
func EvidenceViaTool(toolID int64) Evidence {
	return Evidence(fmt.Sprintf("via_tool:%d", toolID))
}

// Query is the planner's input, already validated by the facade (§3:
// SearchQuery, §6.2). ResponseMode is carried through unused by the planner
// itself; it only governs the Response Shaper's projection, which is also
// where include_orchestration/include_schemas/include_examples collapse to
// (full mode carries everything, compact carries schema keys, minimal
// carries neither — see facade/query.go).
type Query struct {
	Text             string
	Limit            int
	MinScore         float64
	DomainFilter     []string
	CapabilityFilter []string
	Mode             Mode
	ResponseMode     string
}

// RankedResult is the planner's output unit (§3). ServiceID is always
// populated; RecommendedTool is non-zero for tool-derived entries, and
// WorkflowTools holds a workflows-mode tool bundle.
type RankedResult struct {
	ServiceID       int64
	Score           float64
	Rank            int
	Evidence        Evidence
	RecommendedTool int64
	WorkflowTools   []int64
}
