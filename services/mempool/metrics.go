package mempool

import (
	"sync"

	"github.com/marabu-network/marabu/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusMempoolSize     prometheus.Gauge
	prometheusMempoolAdded    prometheus.Counter
	prometheusMempoolRejected *prometheus.CounterVec
	prometheusMempoolRederive prometheus.Histogram
	prometheusMempoolDropped  prometheus.Counter
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusMempoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marabu",
			Subsystem: "mempool",
			Name:      "size",
			Help:      "Number of pending transactions",
		},
	)

	prometheusMempoolAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "mempool",
			Name:      "added",
			Help:      "Number of transactions admitted to the mempool",
		},
	)

	prometheusMempoolRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "mempool",
			Name:      "rejected",
			Help:      "Number of transactions refused by the mempool, by error kind",
		},
		[]string{"reason"},
	)

	prometheusMempoolRederive = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marabu",
			Subsystem: "mempool",
			Name:      "rederive",
			Help:      "Histogram of rebuilding the mempool on a new chain tip",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)

	prometheusMempoolDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "mempool",
			Name:      "dropped",
			Help:      "Number of transactions that no longer applied after a new chain tip",
		},
	)
}
