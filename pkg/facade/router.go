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
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kpath-project/kpath-search/pkg/config"
	"github.com/kpath-project/kpath-search/pkg/observability"
)

// NewRouter wires every endpoint in §6.1 under basePath (typically
// "/api/v1/search"), with CORS, panic recovery, and the observability
// middleware applied ambiently to all of them.
func NewRouter(f *Facade, basePath string, cors *config.CORSConfig, tracer *observability.Tracer, metrics *observability.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cors))
	r.Use(observability.HTTPMiddleware(tracer, metrics))

	r.Route(basePath, func(r chi.Router) {
		r.Post("/", f.handleSearch)
		r.Get("/", f.handleSearchGet)
		r.Get("/similar/{service_id}", f.handleSimilar)
		r.Get("/tools/{id}/details", f.handleToolDetail(ToolDetails))
		r.Get("/tools/{id}/schema", f.handleToolDetail(ToolSchema))
		r.Get("/tools/{id}/examples", f.handleToolDetail(ToolExamples))
		r.Get("/tools/{id}/summary", f.handleToolDetail(ToolSummary))
		r.Get("/status", f.handleStatus)
		r.Post("/rebuild", f.handleRebuild)
		r.Post("/initialize", f.handleInitialize)
	})

	return r
}

// corsMiddleware applies the configured CORS policy, mirroring the
// allow-list shape of config.CORSConfig rather than allowing everything.
func corsMiddleware(cors *config.CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cors != nil {
				if origin := allowedOrigin(cors.AllowedOrigins, r.Header.Get("Origin")); origin != "" {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", joinOrDefault(cors.AllowedMethods, "GET, POST, OPTIONS"))
					w.Header().Set("Access-Control-Allow-Headers", joinOrDefault(cors.AllowedHeaders, "Content-Type, Authorization"))
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func allowedOrigin(allowed []string, origin string) string {
	for _, a := range allowed {
		if a == "*" {
			return "*"
		}
		if a == origin {
			return origin
		}
	}
	return ""
}

func joinOrDefault(values []string, def string) string {
	if len(values) == 0 {
		return def
	}
	out := values[0]
	for _, v := range values[1:] {
		out += ", " + v
	}
	return out
}
