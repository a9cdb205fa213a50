package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

// WorkerMetrics tracks the audit consumer that reads action lifecycle events.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	eventsTotal     *prometheus.CounterVec
	eventDuration   *prometheus.HistogramVec
	eventsInFlight  prometheus.Gauge
	eventLag        *prometheus.HistogramVec
	decisionsTotal  *prometheus.CounterVec
	failedResponses *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "action_events_total",
			Help:      "Consumed action events by type and handling status.",
		},
		[]string{"service", "type", "status"},
	)
	eventDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "action_event_duration_seconds",
			Help:      "Action event handling duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	eventsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "action_events_in_flight",
			Help:      "Number of action events being handled.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between an action event occurring and its consumption.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service"},
	)
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "decided_total",
			Help:      "Terminal decisions by module, action type and automation level.",
		},
		[]string{"service", "module", "action_type", "automation_level", "decision"},
	)
	failedResponses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "failed_responses_total",
			Help:      "Actions whose model call failed.",
		},
		[]string{"service", "module", "action_type"},
	)
	tokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "tokens_total",
			Help:      "Tokens spent per module.",
		},
		[]string{"service", "module"},
	)

	registry.MustRegister(eventsTotal, eventDuration, eventsInFlight, eventLag, decisionsTotal, failedResponses, tokensTotal)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		eventsTotal:     eventsTotal,
		eventDuration:   eventDuration,
		eventsInFlight:  eventsInFlight,
		eventLag:        eventLag,
		decisionsTotal:  decisionsTotal,
		failedResponses: failedResponses,
		tokensTotal:     tokensTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartEvent() {
	m.eventsInFlight.Inc()
}

func (m *WorkerMetrics) FinishEvent(eventType domain.ActionEventType, duration time.Duration, err error) {
	m.eventsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.eventsTotal.WithLabelValues(m.service, string(eventType), status).Inc()
	m.eventDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveEventLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.eventLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

// RecordActionEvent folds one lifecycle event into the audit counters.
func (m *WorkerMetrics) RecordActionEvent(event domain.ActionEvent) {
	switch event.Type {
	case domain.ActionEventResponded:
		if event.Failed {
			m.failedResponses.WithLabelValues(m.service, event.Module, event.ActionType).Inc()
		}
		if event.TokensUsed > 0 {
			m.tokensTotal.WithLabelValues(m.service, event.Module).Add(float64(event.TokensUsed))
		}
	case domain.ActionEventDecided:
		m.decisionsTotal.WithLabelValues(
			m.service,
			event.Module,
			event.ActionType,
			string(event.AutomationLevel),
			string(event.Decision),
		).Inc()
	}
}
