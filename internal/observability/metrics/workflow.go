package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/lease-lens/internal/core/domain"
)

// WorkflowMetrics counts committed workflow transitions and remote-call
// retries. It is registered on the registry of the process that runs the
// controller.
type WorkflowMetrics struct {
	service string

	transitionsTotal *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
	retriesTotal     *prometheus.CounterVec
}

func NewWorkflowMetrics(service string, registry prometheus.Registerer) *WorkflowMetrics {
	transitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Committed workflow transitions by resulting state.",
		},
		[]string{"service", "state"},
	)
	failuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "analysis_failures_total",
			Help:      "Analyses that ended in the failed state, by failure kind.",
		},
		[]string{"service", "kind"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Retried remote call attempts by operation.",
		},
		[]string{"service", "operation"},
	)
	registry.MustRegister(transitionsTotal, failuresTotal, retriesTotal)

	return &WorkflowMetrics{
		service:          service,
		transitionsTotal: transitionsTotal,
		failuresTotal:    failuresTotal,
		retriesTotal:     retriesTotal,
	}
}

func (m *WorkflowMetrics) WorkflowChanged(_ context.Context, w *domain.Workflow) {
	m.transitionsTotal.WithLabelValues(m.service, string(w.State())).Inc()
	if failed, ok := w.Phase.(domain.Failed); ok {
		m.failuresTotal.WithLabelValues(m.service, string(failed.Failure.Kind)).Inc()
	}
}

// RecordRetry matches resilience.RetryObserver.
func (m *WorkflowMetrics) RecordRetry(operation string, _ int) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}
