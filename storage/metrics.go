package storage

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess    = "success"
	resultRetried    = "retried"
	resultConnection = "connection_error"
	resultAccess     = "access_error"
)

type clientMetrics struct {
	calls      *prometheus.CounterVec
	reconnects prometheus.Counter
}

func newClientMetrics() *clientMetrics {
	const (
		namespace = "kvquery"
		subsystem = "storage"
	)

	return &clientMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "calls_total",
			Help:      "Count of store calls by operation and result",
		}, []string{"op", "result"}),

		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconnects_total",
			Help:      "Count of sessions reopened after a transport failure",
		}),
	}
}

// PrometheusCollectors returns the metrics of the client.
func (c *Client) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.metrics.calls,
		c.metrics.reconnects,
	}
}
