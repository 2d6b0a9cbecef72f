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

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// No-op Manager
// =============================================================================

// NoopManager returns a no-operation Manager that does nothing.
// Use this when observability is completely disabled.
func NoopManager() *Manager {
	return &Manager{}
}

// =============================================================================
// No-op Tracer
// =============================================================================

// NoopTracer returns a no-operation Tracer.
type NoopTracer struct{}

// Start returns a no-op span.
func (NoopTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

// StartSearch returns a no-op span.
func (NoopTracer) StartSearch(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

// StartRebuild returns a no-op span.
func (NoopTracer) StartRebuild(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

// StartEmbed returns a no-op span.
func (NoopTracer) StartEmbed(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

// RecordError is a no-op.
func (NoopTracer) RecordError(_ trace.Span, _ error) {}

// DebugExporter returns nil.
func (NoopTracer) DebugExporter() *DebugExporter { return nil }

// Shutdown is a no-op.
func (NoopTracer) Shutdown(_ context.Context) error { return nil }

// =============================================================================
// No-op Metrics
// =============================================================================

// NoopMetrics is a metrics implementation that does nothing.
type NoopMetrics struct{}

// Search metrics - no-op
func (NoopMetrics) RecordSearch(_, _ string, _ time.Duration, _ int) {}
func (NoopMetrics) RecordSearchError(_, _ string)                    {}

// Rebuild metrics - no-op
func (NoopMetrics) RecordRebuild(_ string, _ time.Duration, _ error) {}
func (NoopMetrics) SetIndexSize(_ string, _ int)                     {}

// Embedding metrics - no-op
func (NoopMetrics) RecordEmbeddingCall(_ string, _ time.Duration) {}
func (NoopMetrics) RecordEmbeddingCacheLookup(_ bool)             {}

// HTTP metrics - no-op
func (NoopMetrics) RecordHTTPRequest(_, _ string, _ int, _ time.Duration, _, _ int64) {}

// Handler returns a handler that returns 503 Service Unavailable.
func (NoopMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled"))
	})
}

// =============================================================================
// Recorder Interface
// =============================================================================

// Recorder defines the interface for recording metrics. Used for dependency
// injection and easier testing of the facade and search manager.
type Recorder interface {
	RecordSearch(mode, responseMode string, duration time.Duration, resultCount int)
	RecordSearchError(mode, code string)

	RecordRebuild(index string, duration time.Duration, err error)
	SetIndexSize(index string, size int)

	RecordEmbeddingCall(backend string, duration time.Duration)
	RecordEmbeddingCacheLookup(hit bool)

	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, reqSize, respSize int64)
}

// Ensure implementations satisfy the interface.
var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = NoopMetrics{}
)
