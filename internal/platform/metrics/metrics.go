package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "crossledger/pkg/domain-errors"
)

// Metrics holds the Prometheus collectors shared by the ledger components and
// the dispatcher. All methods are safe on a nil receiver so components can
// run without metrics in tests.
type Metrics struct {
	Operations       *prometheus.CounterVec
	Dispatched       *prometheus.CounterVec
	DispatchFailures *prometheus.CounterVec
	DispatchDuration prometheus.Histogram
	OutboxPending    prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crossledger_operations_total",
			Help: "Component operations by outcome (ok or error code)",
		}, []string{"component", "operation", "outcome"}),
		Dispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crossledger_operations_dispatched_total",
			Help: "Outbox operations anchored and notarized",
		}, []string{"module", "kind"}),
		DispatchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crossledger_dispatch_failures_total",
			Help: "Dispatch failures by stage (submit, notarize, mint, skipped)",
		}, []string{"stage"}),
		DispatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "crossledger_dispatch_duration_seconds",
			Help:    "Duration of dispatching one outbox operation",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		OutboxPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "crossledger_outbox_pending",
			Help: "Operations waiting for dispatch",
		}),
	}
}

// ObserveOperation counts one component operation.
func (m *Metrics) ObserveOperation(component, operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	m.Operations.WithLabelValues(component, operation, outcome).Inc()
}

// ObserveDispatched counts a dispatched operation and its duration.
func (m *Metrics) ObserveDispatched(module, kind string, start time.Time) {
	if m == nil {
		return
	}
	m.Dispatched.WithLabelValues(module, kind).Inc()
	m.DispatchDuration.Observe(time.Since(start).Seconds())
}

// IncDispatchFailure counts a failed dispatch stage.
func (m *Metrics) IncDispatchFailure(stage string) {
	if m == nil {
		return
	}
	m.DispatchFailures.WithLabelValues(stage).Inc()
}

// SetOutboxPending publishes the outbox depth.
func (m *Metrics) SetOutboxPending(n int) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(n))
}
