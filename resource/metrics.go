package resource

// metrics.go is a thin abstraction over Prometheus, same shape as
// Voskan-arena-cache/pkg/metrics.go: a metricsSink-like interface with a
// no-op default so the hot path never pays for metric updates unless the
// caller opts in via WithMetrics.

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the internal metrics sink interface. It is unexported-by-use:
// callers only ever obtain one indirectly via WithMetrics.
type Metrics interface {
	setSlotCount(n int)
	incBorrowConflict()
}

type noopMetrics struct{}

func (noopMetrics) setSlotCount(int)   {}
func (noopMetrics) incBorrowConflict() {}

type promMetrics struct {
	slots           prometheus.Gauge
	borrowConflicts prometheus.Counter
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	m := &promMetrics{
		slots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecsrt_resource_slots",
			Help: "Number of registered resource slots in the store.",
		}),
		borrowConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecsrt_resource_borrow_conflicts_total",
			Help: "Number of borrow attempts that failed due to an outstanding conflicting borrow.",
		}),
	}
	reg.MustRegister(m.slots, m.borrowConflicts)
	return m
}

func (m *promMetrics) setSlotCount(n int) { m.slots.Set(float64(n)) }
func (m *promMetrics) incBorrowConflict() { m.borrowConflicts.Inc() }
