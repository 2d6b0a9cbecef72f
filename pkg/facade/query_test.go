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

package facade

import (
	"strings"
	"testing"

	"github.com/kpath-project/kpath-search/pkg/apperrors"
	"github.com/kpath-project/kpath-search/pkg/planner"
	"github.com/kpath-project/kpath-search/pkg/shaper"
)

func TestToQueryRejectsEmptyQuery(t *testing.T) {
	req := SearchRequest{Query: "   "}
	_, err := req.toQuery()
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Code != apperrors.QueryEmpty {
		t.Fatalf("expected QueryEmpty, got %v", err)
	}
}

func TestToQueryRejectsOversizedQuery(t *testing.T) {
	req := SearchRequest{Query: strings.Repeat("a", maxQueryBytes+1)}
	_, err := req.toQuery()
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Code != apperrors.InvalidRequest {
		t.Fatalf("expected InvalidRequest, got %v", err)
	}
}

func TestToQueryRejectsUnknownMode(t *testing.T) {
	req := SearchRequest{Query: "find a payments agent", Mode: "sorcery"}
	_, err := req.toQuery()
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Code != apperrors.InvalidRequest {
		t.Fatalf("expected InvalidRequest, got %v", err)
	}
}

func TestToQueryDefaultsModeToAgentsOnly(t *testing.T) {
	req := SearchRequest{Query: "find a payments agent"}
	q, err := req.toQuery()
	if err != nil {
		t.Fatalf("toQuery: %v", err)
	}
	if q.Mode != planner.AgentsOnly {
		t.Errorf("expected default mode agents_only, got %s", q.Mode)
	}
	if q.ResponseMode != string(shaper.Full) {
		t.Errorf("expected default response_mode full for agents_only, got %s", q.ResponseMode)
	}
}

func TestToQueryDefaultsResponseModeCompactForToolsOnly(t *testing.T) {
	req := SearchRequest{Query: "charge a card", Mode: string(planner.ToolsOnly)}
	q, err := req.toQuery()
	if err != nil {
		t.Fatalf("toQuery: %v", err)
	}
	if q.ResponseMode != string(shaper.Compact) {
		t.Errorf("expected default response_mode compact for tools_only, got %s", q.ResponseMode)
	}
}

func TestToQueryClampsLimitAndMinScore(t *testing.T) {
	req := SearchRequest{Query: "find a payments agent", Limit: 999, MinScore: 5}
	q, err := req.toQuery()
	if err != nil {
		t.Fatalf("toQuery: %v", err)
	}
	if q.Limit != maxLimit {
		t.Errorf("expected limit clamped to %d, got %d", maxLimit, q.Limit)
	}
	if q.MinScore != 1 {
		t.Errorf("expected min_score clamped to 1, got %v", q.MinScore)
	}
}

func TestToQueryNegativeLimitClampsToMin(t *testing.T) {
	req := SearchRequest{Query: "find a payments agent", Limit: -5}
	q, err := req.toQuery()
	if err != nil {
		t.Fatalf("toQuery: %v", err)
	}
	if q.Limit != minLimit {
		t.Errorf("expected limit clamped to %d, got %d", minLimit, q.Limit)
	}
}

func TestToQueryNormalizesQueryToNFC(t *testing.T) {
	decomposed := "café" // "café" with a combining acute accent
	req := SearchRequest{Query: decomposed}
	q, err := req.toQuery()
	if err != nil {
		t.Fatalf("toQuery: %v", err)
	}
	if q.Text != "café" {
		t.Errorf("expected NFC-normalized text %q, got %q", "café", q.Text)
	}
}

func TestDecodeSearchRequestRejectsUnknownFields(t *testing.T) {
	body := strings.NewReader(`{"query": "charge a card", "bogus_field": true}`)
	_, err := decodeSearchRequest(body)
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Code != apperrors.InvalidRequest {
		t.Fatalf("expected InvalidRequest for an unknown field, got %v", err)
	}
}

func TestSearchRequestFromValuesSplitsCSVFilters(t *testing.T) {
	req, err := searchRequestFromValues(map[string][]string{
		"query":         {"charge a card"},
		"domain_filter": {"Finance, Payments"},
		"limit":         {"5"},
	})
	if err != nil {
		t.Fatalf("searchRequestFromValues: %v", err)
	}
	if len(req.DomainFilter) != 2 || req.DomainFilter[0] != "Finance" || req.DomainFilter[1] != "Payments" {
		t.Fatalf("expected trimmed domain filter list, got %+v", req.DomainFilter)
	}
	if req.Limit != 5 {
		t.Errorf("expected limit 5, got %d", req.Limit)
	}
}

func TestSearchRequestFromValuesRejectsNonIntegerLimit(t *testing.T) {
	_, err := searchRequestFromValues(map[string][]string{"query": {"x"}, "limit": {"five"}})
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Code != apperrors.InvalidRequest {
		t.Fatalf("expected InvalidRequest for a non-integer limit, got %v", err)
	}
}
