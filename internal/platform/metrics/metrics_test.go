package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	dErrors "crossledger/pkg/domain-errors"
)

func TestObserveOperation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOperation("registry", "register", nil)
	m.ObserveOperation("registry", "register", dErrors.New(dErrors.CodeAlreadyExists, "dup"))
	m.ObserveOperation("registry", "register", errors.New("plain"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("registry", "register", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("registry", "register", "already_exists")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("registry", "register", "internal")))
}

func TestDispatchMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveDispatched("agriculture", "harvest.recorded", time.Now())
	m.IncDispatchFailure("submit")
	m.SetOutboxPending(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatched.WithLabelValues("agriculture", "harvest.recorded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchFailures.WithLabelValues("submit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OutboxPending))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("x", "y", nil)
		m.ObserveDispatched("x", "y", time.Now())
		m.IncDispatchFailure("submit")
		m.SetOutboxPending(1)
	})
}
