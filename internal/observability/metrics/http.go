package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

const namespace = "steward"

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	providerCallsTotal    *prometheus.CounterVec
	providerCallDuration  *prometheus.HistogramVec
	llmTokensTotal        *prometheus.CounterVec
	providerFallbackTotal *prometheus.CounterVec
	breakerTransitions    *prometheus.CounterVec
	runsTotal             *prometheus.CounterVec
	runSteps              *prometheus.HistogramVec
	toolCallsTotal        *prometheus.CounterVec
	decisionsTotal        *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	providerCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Completion provider calls by operation and status.",
		},
		[]string{"service", "provider", "operation", "status"},
	)
	providerCallDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Completion provider call duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"service", "provider", "operation"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Token usage reported by providers, by direction.",
		},
		[]string{"service", "provider", "direction", "model"},
	)
	providerFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "fallbacks_total",
			Help:      "Completions retried on the secondary provider.",
		},
		[]string{"service", "from", "to"},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions.",
		},
		[]string{"service", "operation", "from", "to"},
	)
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "steward",
			Name:      "runs_total",
			Help:      "Completed chat runs by module and outcome.",
		},
		[]string{"service", "module", "outcome"},
	)
	runSteps := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "steward",
			Name:      "steps",
			Help:      "Provider calls per chat run.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
		[]string{"service", "module"},
	)
	toolCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "steward",
			Name:      "tool_calls_total",
			Help:      "Tool calls executed during chat runs.",
		},
		[]string{"service", "tool", "status"},
	)
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "decisions_total",
			Help:      "Human decisions recorded through the review API.",
		},
		[]string{"service", "module", "decision"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		providerCallsTotal,
		providerCallDuration,
		llmTokensTotal,
		providerFallbackTotal,
		breakerTransitions,
		runsTotal,
		runSteps,
		toolCallsTotal,
		decisionsTotal,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		service:               service,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		providerCallsTotal:    providerCallsTotal,
		providerCallDuration:  providerCallDuration,
		llmTokensTotal:        llmTokensTotal,
		providerFallbackTotal: providerFallbackTotal,
		breakerTransitions:    breakerTransitions,
		runsTotal:             runsTotal,
		runSteps:              runSteps,
		toolCallsTotal:        toolCallsTotal,
		decisionsTotal:        decisionsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds ids out of paths to keep label cardinality bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/steward/conversations/"):
		return "/v1/steward/conversations/{id}"
	case strings.HasPrefix(path, "/v1/actions/") && strings.HasSuffix(path, "/decision"):
		return "/v1/actions/{id}/decision"
	case strings.HasPrefix(path, "/mcp"):
		return "/mcp"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordProviderCall(provider domain.ProviderType, operation, status string, duration time.Duration) {
	m.providerCallsTotal.WithLabelValues(m.service, string(provider), operation, status).Inc()
	m.providerCallDuration.WithLabelValues(m.service, string(provider), operation).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordTokenUsage(provider domain.ProviderType, model string, usage domain.Usage) {
	if model == "" {
		model = "unknown"
	}
	if usage.PromptTokens > 0 {
		m.llmTokensTotal.WithLabelValues(m.service, string(provider), "in", model).Add(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		m.llmTokensTotal.WithLabelValues(m.service, string(provider), "out", model).Add(float64(usage.CompletionTokens))
	}
}

func (m *HTTPServerMetrics) RecordFallback(from, to domain.ProviderType) {
	m.providerFallbackTotal.WithLabelValues(m.service, string(from), string(to)).Inc()
}

func (m *HTTPServerMetrics) RecordBreakerTransition(operation, from, to string) {
	m.breakerTransitions.WithLabelValues(m.service, operation, from, to).Inc()
}

// ObserveRun and ObserveToolCall satisfy usecase.StewardObserver.
func (m *HTTPServerMetrics) ObserveRun(module string, steps int, outcome string) {
	if module == "" {
		module = domain.ModuleSteward
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.runsTotal.WithLabelValues(m.service, module, outcome).Inc()
	if steps > 0 {
		m.runSteps.WithLabelValues(m.service, module).Observe(float64(steps))
	}
}

func (m *HTTPServerMetrics) ObserveToolCall(tool string, failed bool) {
	if tool == "" {
		tool = "unknown"
	}
	status := "success"
	if failed {
		status = "error"
	}
	m.toolCallsTotal.WithLabelValues(m.service, tool, status).Inc()
}

func (m *HTTPServerMetrics) RecordDecision(module string, decision domain.HumanDecision) {
	m.decisionsTotal.WithLabelValues(m.service, module, string(decision)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
