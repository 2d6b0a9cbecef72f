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

package observability

// =============================================================================
// Service Attributes (OpenTelemetry Semantic Conventions)
// =============================================================================

const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"
)

// =============================================================================
// KPATH-Specific Attributes
// =============================================================================

const (
	// AttrCallerID identifies the caller issuing a search query, for
	// correlating a request across planner/shaper spans (§6.1).
	AttrCallerID = "kpath.caller_id"

	// AttrSearchMode is the requested search mode (agents_only, tools_only, ...).
	AttrSearchMode = "kpath.search.mode"

	// AttrResponseMode is the requested response shape (full, compact, minimal).
	AttrResponseMode = "kpath.search.response_mode"

	// AttrSearchResultCount is the number of results returned by a query.
	AttrSearchResultCount = "kpath.search.result_count"

	// AttrSearchLimit is the requested result limit.
	AttrSearchLimit = "kpath.search.limit"

	// AttrIndexName distinguishes the services index from the tools index.
	AttrIndexName = "kpath.index.name"

	// AttrEmbeddingCacheHit is the span attribute for whether a query
	// embedding was served from the LRU cache (§4.7). The facade sets it to
	// false on every query, since CachedProvider does not report hits.
	AttrEmbeddingCacheHit = "kpath.embedding.cache_hit"
)

// =============================================================================
// HTTP Attributes
// =============================================================================

const (
	AttrHTTPMethod       = "http.method"
	AttrHTTPPath         = "http.route"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPRequestSize  = "http.request.body.size"
	AttrHTTPResponseSize = "http.response.body.size"
)

// =============================================================================
// Error Attributes
// =============================================================================

const (
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// =============================================================================
// Span Names
// =============================================================================

const (
	// SpanSearch wraps a full Plan+Shape query (§6.1).
	SpanSearch = "kpath.search"

	// SpanEmbed wraps a single embedding provider call.
	SpanEmbed = "kpath.embed"

	// SpanRebuild wraps a Search Manager index rebuild (§4.6).
	SpanRebuild = "kpath.rebuild"

	// SpanHTTPRequest wraps HTTP request handling.
	SpanHTTPRequest = "kpath.http.request"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	DefaultServiceName  = "kpath-search"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
)
