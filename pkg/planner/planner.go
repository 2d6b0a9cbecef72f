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
	"math"
	"sort"
	"strings"

	"github.com/kpath-project/kpath-search/pkg/apperrors"
	"github.com/kpath-project/kpath-search/pkg/embedding"
	"github.com/kpath-project/kpath-search/pkg/registry"
	"github.com/kpath-project/kpath-search/pkg/search"
	"github.com/kpath-project/kpath-search/pkg/text"
	"github.com/kpath-project/kpath-search/pkg/vector"
)

// toolsPerWorkflowBundle caps how many tools are attached to a workflows-
// mode result (§4.7: "top-3 tools per service attached").
const toolsPerWorkflowBundle = 3

// overFetchMultiplier controls how many extra candidates are pulled from
// each index before the merge step truncates to the requested limit
// (§4.7: "take top 2·limit from each index").
const overFetchMultiplier = 2

// capabilityBoost is added to a service's vector score when the query
// text also mentions one of its capability names or descriptions, the
// lexical half of the capabilities mode's blend (§4.7 mode 5).
const capabilityBoost = 0.15

// capabilityWordMinLen excludes short, low-signal words (articles,
// prepositions) from the capability-description half of the blend.
const capabilityWordMinLen = 4

// Manager is the subset of *search.Manager the planner depends on.
type Manager interface {
	SearchServices(queryVec []float32, k int, filter search.Filter) ([]vector.Result, error)
	SearchTools(queryVec []float32, k int, filter search.Filter) ([]vector.Result, error)
	ToolsForService(parentID int64) []int64
}

// Planner dispatches a validated Query to the right search mode.
type Planner struct {
	manager  Manager
	provider *embedding.CachedProvider
	reader   registry.Reader
}

// New constructs a Planner bound to the Search Manager, a cached embedding
// provider (for query-vector reuse, §4.7), and the Registry Reader (used
// only for capability-filter lookups).
func New(manager Manager, provider *embedding.CachedProvider, reader registry.Reader) *Planner {
	return &Planner{manager: manager, provider: provider, reader: reader}
}

// Plan executes q and returns a ranked, filtered, limit-truncated result
// list, or an error (including a propagated Cancelled if ctx is done).
func (p *Planner) Plan(ctx context.Context, q Query) ([]RankedResult, error) {
	if ctx.Err() != nil {
		return nil, apperrors.New(apperrors.Cancelled, "query cancelled before embedding")
	}

	queryVec, err := p.provider.EmbedQuery(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return nil, apperrors.New(apperrors.Cancelled, "query cancelled after embedding")
	}

	filter := search.Filter{Domains: q.DomainFilter}

	var results []RankedResult
	switch q.Mode {
	case ToolsOnly:
		results, err = p.planToolsOnly(queryVec, q, filter)
	case AgentsAndTools:
		results, err = p.planAgentsAndTools(ctx, queryVec, q, filter)
	case Workflows:
		results, err = p.planWorkflows(queryVec, q, filter)
	case Capabilities:
		results, err = p.planCapabilities(ctx, queryVec, q, filter)
	default:
		results, err = p.planAgentsOnly(queryVec, q, filter)
	}
	if err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return nil, apperrors.New(apperrors.Cancelled, "query cancelled before filtering")
	}

	results = p.applyCapabilityFilter(ctx, results, q.CapabilityFilter)
	results = applyMinScore(results, q.MinScore)
	results = truncate(results, q.Limit)
	assignRanks(results)
	return results, nil
}

// PlanSimilar re-embeds the composed text of serviceID and returns the
// top-limit services by cosine similarity to it, excluding serviceID itself
// (§6.1: "GET /similar/{service_id} ... excluding itself from results").
func (p *Planner) PlanSimilar(ctx context.Context, serviceID int64, limit int) ([]RankedResult, error) {
	svc, err := p.reader.GetService(ctx, serviceID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.NotFound, err, "service %d", serviceID)
	}

	if ctx.Err() != nil {
		return nil, apperrors.New(apperrors.Cancelled, "query cancelled before embedding")
	}

	queryVec, err := p.provider.EmbedQuery(ctx, text.ComposeService(svc))
	if err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return nil, apperrors.New(apperrors.Cancelled, "query cancelled after embedding")
	}

	// Over-fetch by one so excluding the source service still leaves limit results.
	fetch := limit + 1
	hits, err := p.manager.SearchServices(queryVec, fetch, search.Filter{})
	if err != nil {
		return nil, err
	}

	out := make([]RankedResult, 0, limit)
	for _, h := range hits {
		if h.ExternalID == serviceID {
			continue
		}
		out = append(out, RankedResult{ServiceID: h.ExternalID, Score: h.Score, Evidence: EvidenceDirect})
		if len(out) == limit {
			break
		}
	}
	assignRanks(out)
	return out, nil
}

func (p *Planner) planAgentsOnly(queryVec []float32, q Query, filter search.Filter) ([]RankedResult, error) {
	hits, err := p.manager.SearchServices(queryVec, q.Limit, filter)
	if err != nil {
		return nil, err
	}
	out := make([]RankedResult, len(hits))
	for i, h := range hits {
		out[i] = RankedResult{ServiceID: h.ExternalID, Score: h.Score, Evidence: EvidenceDirect}
	}
	return out, nil
}

func (p *Planner) planToolsOnly(queryVec []float32, q Query, filter search.Filter) ([]RankedResult, error) {
	hits, err := p.manager.SearchTools(queryVec, q.Limit, search.Filter{})
	if err != nil {
		return nil, err
	}
	out := make([]RankedResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, RankedResult{
			ServiceID:       h.Payload.ParentID,
			Score:           h.Score,
			Evidence:        EvidenceDirect,
			RecommendedTool: h.ExternalID,
		})
	}
	return out, nil
}

// planAgentsAndTools implements the merge/re-rank law (§4.7, §8 property
// 7): pull 2·limit from each index, propagate each tool's score reduced by
// 0.9 to its parent service, combine same-service hits with max, sort
// descending with service_id tie-break, and tag evidence accordingly.
func (p *Planner) planAgentsAndTools(ctx context.Context, queryVec []float32, q Query, filter search.Filter) ([]RankedResult, error) {
	fetch := q.Limit * overFetchMultiplier
	if fetch <= 0 {
		fetch = overFetchMultiplier
	}

	serviceHits, err := p.manager.SearchServices(queryVec, fetch, filter)
	if err != nil {
		return nil, err
	}
	toolHits, err := p.manager.SearchTools(queryVec, fetch, search.Filter{})
	if err != nil {
		return nil, err
	}

	type merged struct {
		score         float64
		direct        bool
		bestToolID    int64
		bestToolScore float64
	}
	byService := make(map[int64]*merged)

	for _, h := range serviceHits {
		byService[h.ExternalID] = &merged{score: h.Score, direct: true}
	}
	for _, h := range toolHits {
		reduced := 0.9 * h.Score
		m, ok := byService[h.Payload.ParentID]
		if !ok {
			byService[h.Payload.ParentID] = &merged{score: reduced, bestToolID: h.ExternalID, bestToolScore: h.Score}
			continue
		}
		if h.Score > m.bestToolScore {
			m.bestToolID = h.ExternalID
			m.bestToolScore = h.Score
		}
		if reduced > m.score {
			m.score = reduced
		}
	}

	if len(q.DomainFilter) > 0 {
		direct := make(map[int64]bool, len(serviceHits))
		for _, h := range serviceHits {
			direct[h.ExternalID] = true
		}
		wanted := make(map[string]bool, len(q.DomainFilter))
		for _, d := range q.DomainFilter {
			wanted[d] = true
		}
		for id := range byService {
			if direct[id] {
				continue // already passed the services-index domain filter
			}
			svc, err := p.reader.GetService(ctx, id)
			if err != nil || !domainsIntersect(svc.Domains, wanted) {
				delete(byService, id)
			}
		}
	}

	out := make([]RankedResult, 0, len(byService))
	for serviceID, m := range byService {
		evidence := EvidenceDirect
		switch {
		case m.direct && m.bestToolID != 0:
			evidence = EvidenceBoth
		case !m.direct && m.bestToolID != 0:
			evidence = EvidenceViaTool(m.bestToolID)
		}
		out = append(out, RankedResult{
			ServiceID:       serviceID,
			Score:           m.score,
			Evidence:        evidence,
			RecommendedTool: m.bestToolID,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ServiceID < out[j].ServiceID
	})
	return out, nil
}

// planWorkflows groups tool hits by parent service and attaches up to
// toolsPerWorkflowBundle tools per service (§4.7: "same ranking as
// tools_only but with top-3 tools per service attached").
func (p *Planner) planWorkflows(queryVec []float32, q Query, filter search.Filter) ([]RankedResult, error) {
	fetch := q.Limit * overFetchMultiplier
	if fetch <= 0 {
		fetch = overFetchMultiplier
	}
	hits, err := p.manager.SearchTools(queryVec, fetch, search.Filter{})
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	out := make([]RankedResult, 0)
	for _, h := range hits {
		serviceID := h.Payload.ParentID
		if seen[serviceID] {
			continue
		}
		seen[serviceID] = true

		bundle := p.manager.ToolsForService(serviceID)
		if len(bundle) > toolsPerWorkflowBundle {
			bundle = bundle[:toolsPerWorkflowBundle]
		}
		out = append(out, RankedResult{
			ServiceID:     serviceID,
			Score:         h.Score,
			Evidence:      EvidenceDirect,
			WorkflowTools: bundle,
		})
	}
	return out, nil
}

// planCapabilities blends the services index's semantic score with a
// lexical match over each candidate's capability names and descriptions,
// producing a service-centric result (§4.7 mode 5: "ad-hoc blend of
// services and capability descriptions"). Over-fetches like
// planAgentsAndTools/planWorkflows so the lexical boost can move a
// capability-matching service ahead of a purely semantic one before the
// caller's limit truncates the list.
func (p *Planner) planCapabilities(ctx context.Context, queryVec []float32, q Query, filter search.Filter) ([]RankedResult, error) {
	fetch := q.Limit * overFetchMultiplier
	if fetch <= 0 {
		fetch = overFetchMultiplier
	}

	hits, err := p.manager.SearchServices(queryVec, fetch, filter)
	if err != nil {
		return nil, err
	}

	lowerQuery := strings.ToLower(q.Text)
	out := make([]RankedResult, len(hits))
	for i, h := range hits {
		score := h.Score
		if svc, err := p.reader.GetService(ctx, h.ExternalID); err == nil && capabilityTextMatches(svc, lowerQuery) {
			score = math.Min(1.0, score+capabilityBoost)
		}
		out[i] = RankedResult{ServiceID: h.ExternalID, Score: score, Evidence: EvidenceDirect}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ServiceID < out[j].ServiceID
	})
	return out, nil
}

// capabilityTextMatches reports whether the query text mentions svc's
// capability names or any sufficiently long word from their descriptions.
func capabilityTextMatches(svc registry.ServiceRecord, lowerQuery string) bool {
	for _, c := range svc.Capabilities {
		if strings.Contains(lowerQuery, strings.ToLower(c.Name)) {
			return true
		}
		for _, word := range strings.Fields(strings.ToLower(c.Description)) {
			if len(word) >= capabilityWordMinLen && strings.Contains(lowerQuery, word) {
				return true
			}
		}
	}
	return false
}

// applyCapabilityFilter retains results carrying at least one capability
// whose name case-insensitively equals a filter term, or whose
// description contains it as a substring (§4.7).
func (p *Planner) applyCapabilityFilter(ctx context.Context, results []RankedResult, terms []string) []RankedResult {
	if len(terms) == 0 {
		return results
	}
	lowerTerms := make([]string, len(terms))
	for i, t := range terms {
		lowerTerms[i] = strings.ToLower(t)
	}

	out := results[:0]
	for _, r := range results {
		svc, err := p.reader.GetService(ctx, r.ServiceID)
		if err != nil {
			continue
		}
		if matchesAnyCapability(svc, lowerTerms) {
			out = append(out, r)
		}
	}
	return out
}

func domainsIntersect(domains []string, wanted map[string]bool) bool {
	for _, d := range domains {
		if wanted[d] {
			return true
		}
	}
	return false
}

func matchesAnyCapability(svc registry.ServiceRecord, lowerTerms []string) bool {
	for _, c := range svc.Capabilities {
		lowerName := strings.ToLower(c.Name)
		lowerDesc := strings.ToLower(c.Description)
		for _, term := range lowerTerms {
			if lowerName == term || strings.Contains(lowerDesc, term) {
				return true
			}
		}
	}
	return false
}

func applyMinScore(results []RankedResult, minScore float64) []RankedResult {
	if minScore <= 0 {
		return results
	}
	out := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out
}

func truncate(results []RankedResult, limit int) []RankedResult {
	if limit > 0 && limit < len(results) {
		return results[:limit]
	}
	return results
}

func assignRanks(results []RankedResult) {
	for i := range results {
		results[i].Rank = i + 1
	}
}
