package orchestrator

import "github.com/prometheus/client_golang/prometheus"

// RunsCounter exposes the run counter child for outcome to tests.
func RunsCounter(m *Metrics, outcome string) prometheus.Collector {
	return m.runs.WithLabelValues(outcome)
}
