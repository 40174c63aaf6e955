package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the orchestrator collectors.
type Metrics struct {
	runs           *prometheus.CounterVec
	branchDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resumeboost_runs_total",
				Help: "Total number of analysis runs by outcome.",
			},
			[]string{"outcome"},
		),
		branchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "resumeboost_branch_duration_seconds",
				Help:    "Duration of the resume and job fan-out branches.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"branch", "status"},
		),
	}

	for _, c := range []prometheus.Collector{m.runs, m.branchDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeRun(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeBranch(branch string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.branchDuration.WithLabelValues(branch, status).Observe(seconds)
}
