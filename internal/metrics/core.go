package metrics

import "github.com/prometheus/client_golang/prometheus"

// CoreMetrics is the explorer's own instrumentation: how many states and
// transitions a run discovers, how many violations it records by severity, and
// how long actions and checkpoints take — internal/database/postgres/metrics.go
// shape (counters + histograms registered once, updated from hot-path code)
// applied to the exploration loop instead of a connection pool.
type CoreMetrics struct {
	StatesTotal       prometheus.Counter
	TransitionsTotal  prometheus.Counter
	ViolationsTotal   *prometheus.CounterVec // label: severity
	ActionDuration    *prometheus.HistogramVec // label: action
	CheckpointDuration *prometheus.HistogramVec // label: adapter
}

func newCoreMetrics(namespace string, reg prometheus.Registerer) *CoreMetrics {
	m := &CoreMetrics{
		StatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "explorer", Name: "states_total",
			Help: "Total distinct states discovered during exploration.",
		}),
		TransitionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "explorer", Name: "transitions_total",
			Help: "Total transitions recorded during exploration.",
		}),
		ViolationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "explorer", Name: "violations_total",
			Help: "Total invariant violations recorded, by severity.",
		}, []string{"severity"}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "explorer", Name: "action_duration_seconds",
			Help:    "Action execution duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		CheckpointDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "explorer", Name: "checkpoint_duration_seconds",
			Help:    "Adapter checkpoint/rollback duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"adapter"}),
	}
	for _, c := range []prometheus.Collector{
		m.StatesTotal, m.TransitionsTotal, m.ViolationsTotal, m.ActionDuration, m.CheckpointDuration,
	} {
		if err := reg.Register(c); err != nil {
			// A prior Registry in the same process already owns this collector;
			// harmless in tests that build several same-namespace registries.
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
	return m
}
