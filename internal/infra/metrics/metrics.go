// Package metrics wires Prometheus collectors for the auth service.
package metrics

import (
	"cookbook/internal/domain/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "cookbook"

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return reg
}

// authMetrics counts auth operations by outcome.
type authMetrics struct {
	operations *prometheus.CounterVec
}

// NewAuthMetrics registers the auth operation counter on reg.
func NewAuthMetrics(reg *prometheus.Registry) service.AuthMetrics {
	m := &authMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_operations_total",
				Help:      "Total number of authentication operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
	}
	reg.MustRegister(m.operations)

	return m
}

func (m *authMetrics) RecordAttempt(operation, outcome string) {
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// HTTPMetrics holds the request counters used by the HTTP middleware.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics registers HTTP request metrics on reg.
func NewHTTPMetrics(reg *prometheus.Registry) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "path"},
		),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration)

	return m
}

// EventMetrics counts session events consumed by the worker.
type EventMetrics struct {
	Received *prometheus.CounterVec
}

// NewEventMetrics registers the worker's event counter on reg.
func NewEventMetrics(reg *prometheus.Registry) *EventMetrics {
	m := &EventMetrics{
		Received: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_events_received_total",
				Help:      "Total number of session events received by type and result",
			},
			[]string{"type", "result"},
		),
	}
	reg.MustRegister(m.Received)

	return m
}

// NoopAuthMetrics discards every observation.
type NoopAuthMetrics struct{}

func (NoopAuthMetrics) RecordAttempt(string, string) {}
