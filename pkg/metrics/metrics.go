// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GraphWritesTotal tracks entity graph mutations by record kind and operation
	GraphWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "graph",
			Name:      "writes_total",
			Help:      "Total number of entity graph mutations by kind and operation",
		},
		[]string{"kind", "operation"},
	)

	// IsolationViolationsTotal tracks rejected cross-group operations
	IsolationViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "graph",
			Name:      "isolation_violations_total",
			Help:      "Total number of operations rejected by the isolation guard",
		},
		[]string{"reason"},
	)

	// DeliveryAttemptsTotal tracks outbound delivery attempts by status class
	DeliveryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "delivery",
			Name:      "attempts_total",
			Help:      "Total number of outbound HTTP delivery attempts",
		},
		[]string{"outcome"},
	)

	// DeliveryDuration tracks outbound delivery attempt duration
	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "delivery",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of outbound HTTP delivery attempts in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"outcome"},
	)

	// DispatchesTotal tracks per-integration dispatch outcomes
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "dispatch",
			Name:      "integrations_total",
			Help:      "Total number of per-integration dispatch outcomes",
		},
		[]string{"kind", "status"},
	)

	// DLQPushedTotal tracks entries pushed to the delivery dead letter stream
	DLQPushedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "dispatch",
			Name:      "dlq_pushed_total",
			Help:      "Total number of failed deliveries pushed to the dead letter stream",
		},
	)
)
