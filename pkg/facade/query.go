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

// Package facade assembles the Search Manager, Planner, and Response Shaper
// behind one HTTP surface (§4.9, §6.1): it validates and normalizes every
// query, dispatches it, shapes the result, and emits the one structured log
// record and metric/trace pair each query produces.
package facade

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/kpath-project/kpath-search/pkg/apperrors"
	"github.com/kpath-project/kpath-search/pkg/planner"
	"github.com/kpath-project/kpath-search/pkg/shaper"
)

const (
	minLimit      = 1
	maxLimit      = 100
	defaultLimit  = 10
	maxQueryBytes = 1024
	minQueryBytes = 1
)

// SearchRequest is the wire shape of a search query (§3: SearchQuery,
// §6.2), before it is validated and turned into a planner.Query.
type SearchRequest struct {
	Query            string   `json:"query"`
	Limit            int      `json:"limit,omitempty"`
	MinScore         float64  `json:"min_score,omitempty"`
	DomainFilter     []string `json:"domain_filter,omitempty"`
	CapabilityFilter []string `json:"capability_filter,omitempty"`
	Mode             string   `json:"mode,omitempty"`
	ResponseMode     string   `json:"response_mode,omitempty"`

	// IncludeOrchestration is accepted on the wire for forward compatibility
	// but not separately wired: response_mode=full already carries every
	// orchestration field, and compact/minimal never do.
	IncludeOrchestration *bool `json:"include_orchestration,omitempty"`
}

// decodeSearchRequest reads a POST body into a SearchRequest, rejecting
// unknown fields so a caller's typo fails loudly instead of being silently
// ignored (§6.2).
func decodeSearchRequest(body io.Reader) (SearchRequest, error) {
	var req SearchRequest
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return SearchRequest{}, apperrors.Wrap(apperrors.InvalidRequest, err, "malformed request body")
	}
	return req, nil
}

// searchRequestFromValues builds a SearchRequest from a GET query string,
// where array-valued fields arrive comma-separated (§6.1).
func searchRequestFromValues(values map[string][]string) (SearchRequest, error) {
	get := func(key string) string {
		if v, ok := values[key]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}

	req := SearchRequest{
		Query:        get("query"),
		Mode:         get("mode"),
		ResponseMode: get("response_mode"),
	}

	if v := get("domain_filter"); v != "" {
		req.DomainFilter = splitCSV(v)
	}
	if v := get("capability_filter"); v != "" {
		req.CapabilityFilter = splitCSV(v)
	}
	if v := get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return SearchRequest{}, apperrors.New(apperrors.InvalidRequest, "limit must be an integer, got %q", v)
		}
		req.Limit = n
	}
	if v := get("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return SearchRequest{}, apperrors.New(apperrors.InvalidRequest, "min_score must be a number, got %q", v)
		}
		req.MinScore = f
	}
	if v := get("include_orchestration"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return SearchRequest{}, apperrors.New(apperrors.InvalidRequest, "include_orchestration must be a boolean, got %q", v)
		}
		req.IncludeOrchestration = &b
	}

	return req, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// defaultResponseMode picks the mode's default when the caller doesn't name
// one (§6.2): tools_only defaults to compact, everything else to full.
func defaultResponseMode(mode planner.Mode) shaper.ResponseMode {
	if mode == planner.ToolsOnly {
		return shaper.Compact
	}
	return shaper.Full
}

// toQuery validates req and normalizes it into a planner.Query. All
// rejections surface as apperrors with the codes §7 assigns them.
func (r SearchRequest) toQuery() (planner.Query, error) {
	text := normalizeQueryText(r.Query)
	if len(text) < minQueryBytes {
		return planner.Query{}, apperrors.New(apperrors.QueryEmpty, "query must not be empty")
	}
	if len(text) > maxQueryBytes {
		return planner.Query{}, apperrors.New(apperrors.InvalidRequest, "query exceeds %d bytes", maxQueryBytes)
	}

	mode := planner.Mode(r.Mode)
	if mode == "" {
		mode = planner.AgentsOnly
	}
	if !planner.ValidModes[mode] {
		return planner.Query{}, apperrors.New(apperrors.InvalidRequest, "unknown mode %q", r.Mode)
	}

	responseMode := shaper.ResponseMode(r.ResponseMode)
	if responseMode == "" {
		responseMode = defaultResponseMode(mode)
	}
	if responseMode != shaper.Full && responseMode != shaper.Compact && responseMode != shaper.Minimal {
		return planner.Query{}, apperrors.New(apperrors.InvalidRequest, "unknown response_mode %q", r.ResponseMode)
	}

	limit := r.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < minLimit {
		limit = minLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	minScore := r.MinScore
	if minScore < 0 {
		minScore = 0
	}
	if minScore > 1 {
		minScore = 1
	}

	return planner.Query{
		Text:             text,
		Limit:            limit,
		MinScore:         minScore,
		DomainFilter:     r.DomainFilter,
		CapabilityFilter: r.CapabilityFilter,
		Mode:             mode,
		ResponseMode:     string(responseMode),
	}, nil
}

// normalizeQueryText trims surrounding whitespace and normalizes to NFC
// (§6.2) so visually identical queries with different Unicode
// representations hit the same cache entry and compose the same way.
func normalizeQueryText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func (r SearchRequest) String() string {
	return fmt.Sprintf("SearchRequest{query=%q, mode=%q}", r.Query, r.Mode)
}
