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
	"testing"
	"time"
)

func TestMetricsRecordSearch(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.RecordSearch("hybrid", "full", 20*time.Millisecond, 5)
	m.RecordSearchError("hybrid", "invalid_request")
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics

	m.RecordSearch("hybrid", "full", time.Millisecond, 1)
	m.RecordSearchError("hybrid", "internal_error")
	m.RecordRebuild("services", time.Second, nil)
	m.SetIndexSize("services", 10)
	m.RecordEmbeddingCall("openai", time.Millisecond)
	m.RecordEmbeddingCacheLookup(true)
	m.RecordHTTPRequest("GET", "/search", 200, time.Millisecond, 100, 200)

	if m.Handler() == nil {
		t.Error("Handler() on nil *Metrics must still return a handler")
	}
	if m.Registry() != nil {
		t.Error("Registry() on nil *Metrics must be nil")
	}
}

func TestMetricsDisabledReturnsNil(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m != nil {
		t.Error("disabled metrics config must produce a nil *Metrics")
	}
}

func TestStatusCodeLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{500, "5xx"},
		{0, "unknown"},
	}

	for _, tt := range tests {
		if got := statusCodeLabel(tt.code); got != tt.want {
			t.Errorf("statusCodeLabel(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestNoopMetricsSatisfiesRecorder(t *testing.T) {
	var r Recorder = NoopMetrics{}

	r.RecordSearch("vector", "compact", time.Millisecond, 3)
	r.RecordSearchError("vector", "timeout")
	r.RecordRebuild("tools", time.Millisecond, nil)
	r.SetIndexSize("tools", 4)
	r.RecordEmbeddingCall("local", time.Millisecond)
	r.RecordEmbeddingCacheLookup(false)
	r.RecordHTTPRequest("POST", "/rebuild", 202, time.Millisecond, 0, 0)
}

func TestNoopTracerReturnsUsableSpan(t *testing.T) {
	var tr NoopTracer

	ctx, span := tr.StartSearch(context.Background(), "hybrid", "full")
	if ctx == nil {
		t.Fatal("StartSearch must return a non-nil context")
	}
	defer span.End()

	tr.RecordError(span, nil)
	if tr.DebugExporter() != nil {
		t.Error("NoopTracer.DebugExporter() must be nil")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestMetricsConfigDefaults(t *testing.T) {
	cfg := &MetricsConfig{}
	cfg.SetDefaults()

	if cfg.Namespace != "kpath" {
		t.Errorf("Namespace default = %q, want %q", cfg.Namespace, "kpath")
	}
	if cfg.Endpoint != DefaultMetricsPath {
		t.Errorf("Endpoint default = %q, want %q", cfg.Endpoint, DefaultMetricsPath)
	}
}

func TestTracingConfigValidateRejectsUnknownExporter(t *testing.T) {
	cfg := &TracingConfig{Enabled: true, Endpoint: "localhost:4317", Exporter: "carrier-pigeon"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an unrecognized exporter")
	}
}

func TestManagerNilConfigIsNoop(t *testing.T) {
	m, err := NewManager(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewManager(nil): %v", err)
	}
	if m.TracingEnabled() || m.MetricsEnabled() {
		t.Error("a Manager built from a nil config must have nothing enabled")
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
