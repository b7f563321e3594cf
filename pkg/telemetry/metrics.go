package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for task execution. The zero
// Metrics (or one built from a disabled config) is a no-op, so callers
// never need to branch on whether metrics are on.
type Metrics struct {
	config MetricsConfig

	invocations        *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	retries            *prometheus.CounterVec
	escalationFailures *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of task invocations by category and terminal status",
			},
			[]string{"category", "status"},
		),
		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_seconds",
				Help:      "Duration of task invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"category"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Total number of retry attempts after transient failures",
			},
			[]string{"category"},
		),
		escalationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "escalation_failures_total",
				Help:      "Total number of refused privilege escalations",
			},
			[]string{"target"},
		),
	}

	registry.MustRegister(
		m.invocations,
		m.invocationDuration,
		m.retries,
		m.escalationFailures,
	)
	return m, nil
}

// ObserveInvocation records one finished invocation.
func (m *Metrics) ObserveInvocation(category, status string, d time.Duration) {
	if m.invocations == nil {
		return
	}
	m.invocations.WithLabelValues(category, status).Inc()
	m.invocationDuration.WithLabelValues(category).Observe(d.Seconds())
}

// CountRetry records one retry attempt.
func (m *Metrics) CountRetry(category string) {
	if m.retries == nil {
		return
	}
	m.retries.WithLabelValues(category).Inc()
}

// CountEscalationFailure records a refused privilege escalation.
func (m *Metrics) CountEscalationFailure(target string) {
	if m.escalationFailures == nil {
		return
	}
	m.escalationFailures.WithLabelValues(target).Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint, or nil
// when metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts the metrics HTTP endpoint. It blocks, so run it in its
// own goroutine.
func (m *Metrics) Serve() error {
	h := m.Handler()
	if h == nil {
		return nil
	}
	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, h)
	return http.ListenAndServe(m.config.ListenAddress, mux)
}
