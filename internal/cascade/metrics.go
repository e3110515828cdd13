package cascade

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authgraph",
		Subsystem: "cascade",
		Name:      "executions_total",
		Help:      "Cascade plan executions by plan, execution mode and result.",
	}, []string{"plan", "mode", "result"})

	duration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "authgraph",
		Subsystem: "cascade",
		Name:      "duration_seconds",
		Help:      "Latency of cascade plan executions.",
		Buckets: []float64{
			0.001, 0.005, 0.01, 0.025,
			0.05, 0.1, 0.25, 0.5,
			1, 2.5, 5,
		},
	}, []string{"plan", "mode"})

	rows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authgraph",
		Subsystem: "cascade",
		Name:      "rows_total",
		Help:      "Rows deleted or nullified by committed cascades.",
	}, []string{"plan", "table", "op"})
)

func recordExecution(res *Result, err error, elapsed time.Duration) {
	result := "committed"
	if err != nil {
		result = "failed"
	}
	executions.WithLabelValues(res.Plan, res.Mode, result).Inc()
	duration.WithLabelValues(res.Plan, res.Mode).Observe(elapsed.Seconds())
	if err != nil {
		return
	}
	for _, a := range res.Affected {
		rows.WithLabelValues(res.Plan, a.Table, string(a.Op)).Add(float64(a.Rows))
	}
}
