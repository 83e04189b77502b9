package planner

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Access paths a scan resolves to.
const (
	pathPoint = "point"
	pathRange = "range"
	pathIndex = "index"
	pathAll   = "all"
)

type plannerMetrics struct {
	scans       *prometheus.CounterVec
	rowsScanned *prometheus.CounterVec
	queries     *prometheus.CounterVec
	duration    prometheus.Histogram
}

func newPlannerMetrics() *plannerMetrics {
	const (
		namespace = "kvquery"
		subsystem = "planner"
	)

	return &plannerMetrics{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scans_total",
			Help:      "Number of store scans issued by access path",
		}, []string{"path"}),

		rowsScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rows_scanned_total",
			Help:      "Number of live rows returned by store scans by access path",
		}, []string{"path"}),

		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queries_total",
			Help:      "Number of executed queries by plan kind",
		}, []string{"plan"}),

		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "query_duration_seconds",
			Help:      "Time spent computing the rows of a query",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
}

// PrometheusCollectors returns the metrics of the planner.
func (p *Planner) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		p.metrics.scans,
		p.metrics.rowsScanned,
		p.metrics.queries,
		p.metrics.duration,
	}
}
