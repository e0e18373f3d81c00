// Package observability holds Prometheus metrics and OpenTelemetry tracing setup.
package observability

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels recorded for domain operations.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

var (
	// OperationsTotal counts domain operations by name and outcome.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repohub_operations_total",
		Help: "Total number of domain operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// CacheRequestsTotal counts cache lookups by result (hit, miss, error).
	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repohub_cache_requests_total",
		Help: "Total number of cache lookups by result",
	}, []string{"result"})

	// EventsPublishedTotal counts published domain events by type and status.
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repohub_events_published_total",
		Help: "Total number of domain events published by type and status",
	}, []string{"type", "status"})
)

// RecordOperation increments OperationsTotal.
func RecordOperation(operation, outcome string) {
	OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

var (
	httpMetrics     *fiberprometheus.FiberPrometheus
	httpMetricsOnce sync.Once
)

// HTTPMetrics returns the process-wide fiberprometheus middleware.
// It registers its collectors on the default registry only once.
func HTTPMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	httpMetricsOnce.Do(func() {
		httpMetrics = fiberprometheus.New(serviceName)
	})
	return httpMetrics
}
