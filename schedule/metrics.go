package schedule

// metrics.go mirrors resource/metrics.go: a small sink interface plus a
// Prometheus-backed implementation, wired in via WithMetrics.

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the metrics sink a Scheduler reports compilation outcomes to.
type Metrics interface {
	setGroupCount(n int)
	incConflict()
}

// PromMetrics is a Prometheus-backed Metrics implementation. Construct one
// with NewPromMetrics and pass it to WithMetrics.
type PromMetrics struct {
	groups    prometheus.Gauge
	conflicts prometheus.Counter
}

// NewPromMetrics registers the scheduler's gauges/counters against reg.
func NewPromMetrics(reg *prometheus.Registry) *PromMetrics {
	m := &PromMetrics{
		groups: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecsrt_schedule_task_groups",
			Help: "Number of task groups in the last compiled schedule.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecsrt_schedule_conflicts_total",
			Help: "Number of resource-access conflicts detected during compilation.",
		}),
	}
	reg.MustRegister(m.groups, m.conflicts)
	return m
}

func (m *PromMetrics) setGroupCount(n int) { m.groups.Set(float64(n)) }
func (m *PromMetrics) incConflict()        { m.conflicts.Inc() }
