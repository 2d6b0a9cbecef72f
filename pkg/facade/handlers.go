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
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kpath-project/kpath-search/pkg/apperrors"
)

// callerIDHeader is the header an outer auth middleware is expected to set
// before a request reaches the facade (§6.1: "the core trusts the
// caller_id passed in").
const callerIDHeader = "X-KPath-Caller-ID"

func callerID(r *http.Request) string {
	if id := r.Header.Get(callerIDHeader); id != "" {
		return id
	}
	return "anonymous"
}

func (f *Facade) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSearchRequest(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	env, err := f.Search(r.Context(), req, callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (f *Facade) handleSearchGet(w http.ResponseWriter, r *http.Request) {
	req, err := searchRequestFromValues(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	env, err := f.Search(r.Context(), req, callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (f *Facade) handleSimilar(w http.ResponseWriter, r *http.Request) {
	serviceID, err := parseID(chi.URLParam(r, "service_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	env, err := f.Similar(r.Context(), serviceID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (f *Facade) handleToolDetail(kind ToolDetailKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		toolID, err := parseID(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		proj, err := f.ToolDetail(r.Context(), toolID, kind)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, proj)
	}
}

func (f *Facade) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, f.Status())
}

func (f *Facade) handleRebuild(w http.ResponseWriter, r *http.Request) {
	target := RebuildTarget(r.URL.Query().Get("target"))
	if target == "" {
		target = RebuildAll
	}
	f.Rebuild(target)
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (f *Facade) handleInitialize(w http.ResponseWriter, r *http.Request) {
	f.Initialize()
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.New(apperrors.InvalidRequest, "invalid id %q", raw)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Wrap(apperrors.Internal, err, "unexpected error")
	}
	writeJSON(w, appErr.Status(), appErr)
}
