// Package metrics counts catalog operations and event handler failures.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mesh-intelligence/larder/internal/events"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// Metrics owns a private registry so that several instances (one per test,
// for example) never collide.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
}

// New registers the larder collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "larder_operations_total",
			Help: "Catalog operations by operation, reference kind and result.",
		}, []string{"op", "kind", "result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "larder_event_failures_total",
			Help: "Post-commit event handler failures by event and handler.",
		}, []string{"event", "handler"}),
	}
	m.registry.MustRegister(m.operations, m.failures)
	return m
}

// Registry returns the registry holding the larder collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Operations exposes the operation counter (for tests and exporters).
func (m *Metrics) Operations() *prometheus.CounterVec { return m.operations }

// Failures exposes the handler failure counter.
func (m *Metrics) Failures() *prometheus.CounterVec { return m.failures }

// ObserveOperation counts one operation. A nil receiver is a no-op.
func (m *Metrics) ObserveOperation(op, kind string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, kind, Result(err)).Inc()
}

// ObserveFailure counts one post-commit handler failure. A nil receiver is
// a no-op.
func (m *Metrics) ObserveFailure(f events.HandlerFailure) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(f.Event, f.Handler).Inc()
}

// WriteTextfile writes the current values in the text exposition format,
// for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Result classifies err into a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	case errors.Is(err, types.ErrValidation):
		return "invalid"
	case errors.Is(err, types.ErrDuplicateKey):
		return "duplicate"
	case errors.Is(err, types.ErrReferentialIntegrity):
		return "referenced"
	case errors.Is(err, types.ErrVetoed):
		return "vetoed"
	case errors.Is(err, types.ErrUnknownReferenceKind):
		return "unknown_kind"
	default:
		return "error"
	}
}
