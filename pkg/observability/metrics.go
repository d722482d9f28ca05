// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
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

// Metrics provides Prometheus metrics collection for lexserve.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	// Cache metrics
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheWrites    *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec

	// Provider fetch metrics
	providerFetches *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	providerErrors  *prometheus.CounterVec

	// LLM metrics
	llmCalls        *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	llmTokensInput  *prometheus.CounterVec
	llmTokensOutput *prometheus.CounterVec
	llmErrors       *prometheus.CounterVec

	// Resolver metrics
	resolverSearches  *prometheus.CounterVec
	resolverSearchDur *prometheus.HistogramVec

	// Pipeline metrics
	pipelineRuns      *prometheus.CounterVec
	pipelineStageDur  *prometheus.HistogramVec
	pipelineErrors    *prometheus.CounterVec

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

	m.initCacheMetrics()
	m.initProviderMetrics()
	m.initLLMMetrics()
	m.initResolverMetrics()
	m.initPipelineMetrics()
	m.initHTTPMetrics()

	return m, nil
}

func (m *Metrics) initCacheMetrics() {
	m.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	m.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"namespace"},
	)

	m.cacheWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "cache",
			Name:      "writes_total",
			Help:      "Total number of cache writes",
		},
		[]string{"namespace"},
	)

	m.cacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total number of cache entries evicted",
		},
		[]string{"namespace"},
	)

	m.registry.MustRegister(m.cacheHits, m.cacheMisses, m.cacheWrites, m.cacheEvictions)
}

func (m *Metrics) initProviderMetrics() {
	m.providerFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "provider",
			Name:      "fetches_total",
			Help:      "Total number of upstream provider fetches",
		},
		[]string{"provider"},
	)

	m.providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "provider",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream provider fetch duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to 20s
		},
		[]string{"provider"},
	)

	m.providerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "provider",
			Name:      "errors_total",
			Help:      "Total number of upstream provider fetch errors",
		},
		[]string{"provider", "error_type"},
	)

	m.registry.MustRegister(m.providerFetches, m.providerLatency, m.providerErrors)
}

func (m *Metrics) initLLMMetrics() {
	m.llmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total number of LLM API calls",
		},
		[]string{"tier", "model", "provider"},
	)

	m.llmCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "LLM API call duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to 204s
		},
		[]string{"tier", "model", "provider"},
	)

	m.llmTokensInput = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "llm",
			Name:      "tokens_input_total",
			Help:      "Total number of input tokens consumed",
		},
		[]string{"tier", "model", "provider"},
	)

	m.llmTokensOutput = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "llm",
			Name:      "tokens_output_total",
			Help:      "Total number of output tokens generated",
		},
		[]string{"tier", "model", "provider"},
	)

	m.llmErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "llm",
			Name:      "errors_total",
			Help:      "Total number of LLM API errors",
		},
		[]string{"tier", "model", "provider", "error_type"},
	)

	m.registry.MustRegister(m.llmCalls, m.llmCallDuration, m.llmTokensInput, m.llmTokensOutput, m.llmErrors)
}

func (m *Metrics) initResolverMetrics() {
	m.resolverSearches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "resolver",
			Name:      "searches_total",
			Help:      "Total number of vocabulary resolutions",
		},
		[]string{"strategy"},
	)

	m.resolverSearchDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "resolver",
			Name:      "search_duration_seconds",
			Help:      "Vocabulary resolution duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 2s
		},
		[]string{"strategy"},
	)

	m.registry.MustRegister(m.resolverSearches, m.resolverSearchDur)
}

func (m *Metrics) initPipelineMetrics() {
	m.pipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of lookup pipeline runs",
		},
		[]string{"stage"},
	)

	m.pipelineStageDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Lookup pipeline stage duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to 16s
		},
		[]string{"stage"},
	)

	m.pipelineErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "pipeline",
			Name:      "errors_total",
			Help:      "Total number of lookup pipeline stage errors",
		},
		[]string{"stage", "error_type"},
	)

	m.registry.MustRegister(m.pipelineRuns, m.pipelineStageDur, m.pipelineErrors)
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
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7), // 100B to 100MB
		},
		[]string{"method", "path"},
	)

	m.httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7), // 100B to 100MB
		},
		[]string{"method", "path"},
	)

	m.registry.MustRegister(m.httpRequests, m.httpDuration, m.httpRequestSize, m.httpResponseSize)
}

// =============================================================================
// Cache Metrics
// =============================================================================

// RecordCacheHit records a cache hit for the given namespace.
func (m *Metrics) RecordCacheHit(namespace string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(namespace).Inc()
}

// RecordCacheMiss records a cache miss for the given namespace.
func (m *Metrics) RecordCacheMiss(namespace string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(namespace).Inc()
}

// RecordCacheWrite records a cache write for the given namespace.
func (m *Metrics) RecordCacheWrite(namespace string) {
	if m == nil {
		return
	}
	m.cacheWrites.WithLabelValues(namespace).Inc()
}

// RecordCacheEviction records an eviction for the given namespace.
func (m *Metrics) RecordCacheEviction(namespace string) {
	if m == nil {
		return
	}
	m.cacheEvictions.WithLabelValues(namespace).Inc()
}

// =============================================================================
// Provider Metrics
// =============================================================================

// RecordProviderFetch records an upstream provider fetch.
func (m *Metrics) RecordProviderFetch(provider string, duration time.Duration) {
	if m == nil {
		return
	}
	m.providerFetches.WithLabelValues(provider).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordProviderError records an upstream provider fetch error.
func (m *Metrics) RecordProviderError(provider, errorType string) {
	if m == nil {
		return
	}
	m.providerErrors.WithLabelValues(provider, errorType).Inc()
}

// =============================================================================
// LLM Metrics
// =============================================================================

// RecordLLMCall records an LLM API call.
func (m *Metrics) RecordLLMCall(tier, model, provider string, duration time.Duration) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(tier, model, provider).Inc()
	m.llmCallDuration.WithLabelValues(tier, model, provider).Observe(duration.Seconds())
}

// RecordLLMTokens records token usage.
func (m *Metrics) RecordLLMTokens(tier, model, provider string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmTokensInput.WithLabelValues(tier, model, provider).Add(float64(inputTokens))
	m.llmTokensOutput.WithLabelValues(tier, model, provider).Add(float64(outputTokens))
}

// RecordLLMError records an LLM error.
func (m *Metrics) RecordLLMError(tier, model, provider, errorType string) {
	if m == nil {
		return
	}
	m.llmErrors.WithLabelValues(tier, model, provider, errorType).Inc()
}

// =============================================================================
// Resolver Metrics
// =============================================================================

// RecordResolverSearch records a vocabulary resolution attempt.
func (m *Metrics) RecordResolverSearch(strategy string, duration time.Duration) {
	if m == nil {
		return
	}
	m.resolverSearches.WithLabelValues(strategy).Inc()
	m.resolverSearchDur.WithLabelValues(strategy).Observe(duration.Seconds())
}

// =============================================================================
// Pipeline Metrics
// =============================================================================

// RecordPipelineStage records a lookup pipeline stage's duration.
func (m *Metrics) RecordPipelineStage(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(stage).Inc()
	m.pipelineStageDur.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordPipelineError records a lookup pipeline stage error.
func (m *Metrics) RecordPipelineError(stage, errorType string) {
	if m == nil {
		return
	}
	m.pipelineErrors.WithLabelValues(stage, errorType).Inc()
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

// statusCodeLabel converts a status code to a label string.
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
