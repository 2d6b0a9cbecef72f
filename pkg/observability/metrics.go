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
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics collection for the search service.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	// Search metrics
	searchTotal    *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	searchResults  *prometheus.HistogramVec
	searchErrors   *prometheus.CounterVec

	// Rebuild metrics
	rebuildTotal    *prometheus.CounterVec
	rebuildDuration *prometheus.HistogramVec
	rebuildErrors   *prometheus.CounterVec
	indexSize       *prometheus.GaugeVec

	// Embedding cache metrics
	embeddingCalls     *prometheus.CounterVec
	embeddingDuration  *prometheus.HistogramVec
	embeddingCacheHits *prometheus.CounterVec

	// HTTP metrics
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpRequestSize  *prometheus.HistogramVec
	httpResponseSize *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance from configuration.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	cfg.SetDefaults()

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}

	m.initSearchMetrics()
	m.initRebuildMetrics()
	m.initEmbeddingMetrics()
	m.initHTTPMetrics()

	return m, nil
}

func (m *Metrics) initSearchMetrics() {
	m.searchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Total number of search queries by mode and response mode",
		},
		[]string{"mode", "response_mode"},
	)

	m.searchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "End-to-end query duration (embed + plan + shape)",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to 8s
		},
		[]string{"mode"},
	)

	m.searchResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "search",
			Name:      "result_count",
			Help:      "Number of results returned per query",
			Buckets:   prometheus.LinearBuckets(0, 5, 21), // 0..100
		},
		[]string{"mode"},
	)

	m.searchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "search",
			Name:      "errors_total",
			Help:      "Total number of search queries that returned an error",
		},
		[]string{"mode", "code"},
	)

	m.registry.MustRegister(m.searchTotal, m.searchDuration, m.searchResults, m.searchErrors)
}

func (m *Metrics) initRebuildMetrics() {
	m.rebuildTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "rebuild",
			Name:      "total",
			Help:      "Total number of index rebuilds by index name",
		},
		[]string{"index"},
	)

	m.rebuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "rebuild",
			Name:      "duration_seconds",
			Help:      "Index rebuild duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16), // 10ms to 5m
		},
		[]string{"index"},
	)

	m.rebuildErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "rebuild",
			Name:      "errors_total",
			Help:      "Total number of failed index rebuilds",
		},
		[]string{"index"},
	)

	m.indexSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.config.Namespace,
			Subsystem: "rebuild",
			Name:      "index_size",
			Help:      "Number of entries currently held by an index",
		},
		[]string{"index"},
	)

	m.registry.MustRegister(m.rebuildTotal, m.rebuildDuration, m.rebuildErrors, m.indexSize)
}

func (m *Metrics) initEmbeddingMetrics() {
	m.embeddingCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "embedding",
			Name:      "calls_total",
			Help:      "Total number of embedding provider calls",
		},
		[]string{"backend"},
	)

	m.embeddingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "embedding",
			Name:      "duration_seconds",
			Help:      "Embedding provider call duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 2s
		},
		[]string{"backend"},
	)

	m.embeddingCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "embedding",
			Name:      "cache_lookups_total",
			Help:      "Total number of query-embedding cache lookups by outcome",
		},
		[]string{"outcome"}, // "hit" or "miss"
	)

	m.registry.MustRegister(m.embeddingCalls, m.embeddingDuration, m.embeddingCacheHits)
}

func (m *Metrics) initHTTPMetrics() {
	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.httpRequestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
		},
		[]string{"method", "path"},
	)

	m.httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
		},
		[]string{"method", "path"},
	)

	m.registry.MustRegister(m.httpRequests, m.httpDuration, m.httpRequestSize, m.httpResponseSize)
}

// =============================================================================
// Search Metrics
// =============================================================================

// RecordSearch records a completed search query.
func (m *Metrics) RecordSearch(mode, responseMode string, duration time.Duration, resultCount int) {
	if m == nil {
		return
	}
	m.searchTotal.WithLabelValues(mode, responseMode).Inc()
	m.searchDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.searchResults.WithLabelValues(mode).Observe(float64(resultCount))
}

// RecordSearchError records a search query that returned a discriminated error.
func (m *Metrics) RecordSearchError(mode, code string) {
	if m == nil {
		return
	}
	m.searchErrors.WithLabelValues(mode, code).Inc()
}

// =============================================================================
// Rebuild Metrics
// =============================================================================

// RecordRebuild records a completed index rebuild.
func (m *Metrics) RecordRebuild(index string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.rebuildTotal.WithLabelValues(index).Inc()
	m.rebuildDuration.WithLabelValues(index).Observe(duration.Seconds())
	if err != nil {
		m.rebuildErrors.WithLabelValues(index).Inc()
	}
}

// SetIndexSize records the current entry count of an index.
func (m *Metrics) SetIndexSize(index string, size int) {
	if m == nil {
		return
	}
	m.indexSize.WithLabelValues(index).Set(float64(size))
}

// =============================================================================
// Embedding Metrics
// =============================================================================

// RecordEmbeddingCall records a call to the embedding provider.
func (m *Metrics) RecordEmbeddingCall(backend string, duration time.Duration) {
	if m == nil {
		return
	}
	m.embeddingCalls.WithLabelValues(backend).Inc()
	m.embeddingDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordEmbeddingCacheLookup records a query-embedding cache lookup outcome.
func (m *Metrics) RecordEmbeddingCacheLookup(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.embeddingCacheHits.WithLabelValues(outcome).Inc()
}

// =============================================================================
// HTTP Metrics
// =============================================================================

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	status := statusCodeLabel(statusCode)
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if reqSize > 0 {
		m.httpRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	}
	if respSize > 0 {
		m.httpResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
	}
}

func statusCodeLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// =============================================================================
// HTTP Handler
// =============================================================================

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
