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

package shaper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kpath-project/kpath-search/pkg/planner"
	"github.com/kpath-project/kpath-search/pkg/registry"
)

const descriptionTruncateLen = 240
const capabilityListCap = 8

// Shaper projects planner output into a response envelope, enforcing the
// per-mode token budget (§4.8).
type Shaper struct {
	reader  registry.Reader
	counter *tokenCounter
}

// New constructs a Shaper backed by reader for the record lookups a
// projection needs (the index payload alone is insufficient, §9).
func New(reader registry.Reader) *Shaper {
	return &Shaper{reader: reader, counter: newTokenCounter()}
}

// Shape builds the response envelope for a search mode/query pair and its
// ranked results.
func (s *Shaper) Shape(ctx context.Context, query string, mode planner.Mode, responseMode ResponseMode, results []planner.RankedResult, searchTime time.Duration) (Envelope, error) {
	items := make([]Item, 0, len(results))
	for _, r := range results {
		item, err := s.shapeOne(ctx, r, responseMode)
		if err != nil {
			continue // a single unresolvable record must not fail the whole query
		}
		items = append(items, item)
	}

	return Envelope{
		Query:        query,
		SearchMode:   string(mode),
		Results:      items,
		TotalResults: len(items),
		SearchTimeMS: searchTime.Milliseconds(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (s *Shaper) shapeOne(ctx context.Context, r planner.RankedResult, mode ResponseMode) (Item, error) {
	svc, err := s.reader.GetService(ctx, r.ServiceID)
	if err != nil {
		return Item{}, fmt.Errorf("resolve service %d: %w", r.ServiceID, err)
	}

	item := Item{
		ServiceID: r.ServiceID,
		Score:     r.Score,
		Rank:      r.Rank,
		Evidence:  string(r.Evidence),
		Service:   projectService(svc, mode),
	}

	if r.RecommendedTool != 0 {
		tool, err := s.reader.GetTool(ctx, r.RecommendedTool)
		if err == nil {
			proj := projectTool(tool, mode)
			proj.RecommendationScore = r.Score
			item.RecommendedTool = &proj
		}
	}

	for _, toolID := range r.WorkflowTools {
		tool, err := s.reader.GetTool(ctx, toolID)
		if err != nil {
			continue
		}
		proj := projectTool(tool, mode)
		item.WorkflowTools = append(item.WorkflowTools, proj)
	}

	enforceBudget(&item, mode, s.counter)
	return item, nil
}

func projectService(svc registry.ServiceRecord, mode ResponseMode) *ServiceProjection {
	switch mode {
	case Minimal:
		return &ServiceProjection{ServiceID: svc.ID, Name: svc.Name}
	case Compact:
		return &ServiceProjection{
			ServiceID:          svc.ID,
			Name:               svc.Name,
			Description:        svc.Description,
			Endpoint:           svc.Endpoint,
			AuthType:           svc.AuthType,
			Domains:            svc.Domains,
			IntegrationDetails: svc.IntegrationDetails,
		}
	default: // Full
		proj := &ServiceProjection{
			ServiceID:             svc.ID,
			Name:                  svc.Name,
			Description:           svc.Description,
			Endpoint:              svc.Endpoint,
			AuthType:              svc.AuthType,
			Domains:               svc.Domains,
			Version:               svc.Version,
			Status:                svc.Status,
			AgentProtocol:         svc.AgentProtocol,
			AuthConfig:            svc.AuthConfig,
			ToolRecommendations:   svc.ToolRecommendations,
			AgentCapabilities:     svc.AgentCapabilities,
			CommunicationPatterns: svc.CommunicationPatterns,
			OrchestrationMetadata: svc.OrchestrationMetadata,
			IntegrationDetails:    svc.IntegrationDetails,
		}
		for _, c := range svc.Capabilities {
			proj.Capabilities = append(proj.Capabilities, CapabilityProjection{Name: c.Name, Description: c.Description})
		}
		return proj
	}
}

func projectTool(t registry.ToolRecord, mode ResponseMode) ToolProjection {
	detailsURL := fmt.Sprintf("/search/tools/%d/details", t.ID)

	switch mode {
	case Minimal:
		return ToolProjection{
			ToolID:              t.ID,
			ToolName:            t.ToolName,
			ToolDescription:     t.ToolDescription,
			RecommendationScore: 0,
			DetailsURL:          detailsURL,
		}
	case Compact:
		return ToolProjection{
			ToolID:           t.ID,
			ToolName:         t.ToolName,
			ToolDescription:  t.ToolDescription,
			ToolVersion:      t.ToolVersion,
			InputSchemaKeys:  topLevelSchemaKeys(t.InputSchema),
			OutputSchemaKeys: topLevelSchemaKeys(t.OutputSchema),
			ExampleCallCount: t.ExampleCalls.Count(),
			DetailsURL:       detailsURL,
		}
	default: // Full
		examples, _ := t.ExampleCalls.MarshalJSON()
		return ToolProjection{
			ToolID:          t.ID,
			ToolName:        t.ToolName,
			ToolDescription: t.ToolDescription,
			ToolVersion:     t.ToolVersion,
			InputSchema:     t.InputSchema,
			OutputSchema:    t.OutputSchema,
			ExampleCalls:    examples,
		}
	}
}

func topLevelSchemaKeys(schema json.RawMessage) []string {
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
	return keys
}

// enforceBudget applies the §4.8 truncation priority order until the
// serialized item fits tokenBudget[mode], or nothing further can be cut.
func enforceBudget(item *Item, mode ResponseMode, counter *tokenCounter) {
	budget, ok := tokenBudget[mode]
	if !ok {
		return
	}

	steps := []func(*Item) bool{
		dropExampleCalls,
		dropSchemas,
		truncateDescription,
		capCapabilityList,
	}

	for _, step := range steps {
		if fits(item, budget, counter) {
			return
		}
		if !step(item) {
			continue
		}
	}
}

func fits(item *Item, budget int, counter *tokenCounter) bool {
	data, err := json.Marshal(item)
	if err != nil {
		return true
	}
	return counter.count(data) <= budget
}

func dropExampleCalls(item *Item) bool {
	changed := false
	if item.RecommendedTool != nil && item.RecommendedTool.ExampleCalls != nil {
		item.RecommendedTool.ExampleCalls = nil
		changed = true
	}
	for i := range item.WorkflowTools {
		if item.WorkflowTools[i].ExampleCalls != nil {
			item.WorkflowTools[i].ExampleCalls = nil
			changed = true
		}
	}
	return changed
}

func dropSchemas(item *Item) bool {
	changed := false
	if item.RecommendedTool != nil {
		if item.RecommendedTool.InputSchema != nil || item.RecommendedTool.OutputSchema != nil {
			item.RecommendedTool.InputSchema = nil
			item.RecommendedTool.OutputSchema = nil
			changed = true
		}
	}
	for i := range item.WorkflowTools {
		if item.WorkflowTools[i].InputSchema != nil || item.WorkflowTools[i].OutputSchema != nil {
			item.WorkflowTools[i].InputSchema = nil
			item.WorkflowTools[i].OutputSchema = nil
			changed = true
		}
	}
	return changed
}

func truncateDescription(item *Item) bool {
	if item.Service == nil || len(item.Service.Description) <= descriptionTruncateLen {
		return false
	}
	item.Service.Description = item.Service.Description[:descriptionTruncateLen]
	return true
}

func capCapabilityList(item *Item) bool {
	if item.Service == nil || len(item.Service.Capabilities) <= capabilityListCap {
		return false
	}
	item.Service.Capabilities = item.Service.Capabilities[:capabilityListCap]
	return true
}
