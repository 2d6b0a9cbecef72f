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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kpath-project/kpath-search/pkg/config"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	f := newTestFacade(t)
	return NewRouter(f, basePath, &config.CORSConfig{AllowedOrigins: []string{"*"}}, nil, nil)
}

func TestRouterPostSearchReturnsOK(t *testing.T) {
	router := newTestRouter(t)
	body := strings.NewReader(`{"query": "charge a credit card"}`)
	req := httptest.NewRequest(http.MethodPost, basePath+"/", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouterPostSearchEmptyQueryReturns400(t *testing.T) {
	router := newTestRouter(t)
	body := strings.NewReader(`{"query": ""}`)
	req := httptest.NewRequest(http.MethodPost, basePath+"/", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty query, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected a JSON error body: %v", err)
	}
	if payload["code"] != "QueryEmpty" {
		t.Errorf("expected code QueryEmpty, got %v", payload["code"])
	}
}

func TestRouterGetSearchUsesQueryString(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, basePath+"/?query=charge+a+card&mode=tools_only", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouterStatusReturnsManagerState(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, basePath+"/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("expected a JSON status body: %v", err)
	}
	if status["state"] != "ready" {
		t.Errorf("expected state ready, got %v", status["state"])
	}
}

func TestRouterRebuildRespondsAccepted(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, basePath+"/rebuild", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
}

func TestRouterToolSchemaEndpoint(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, basePath+"/tools/10/schema", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouterToolNotFoundReturns404(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, basePath+"/tools/9999/details", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
