package daemon

import (
	"sync"

	"github.com/marabu-network/marabu/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusHandleObject   prometheus.Histogram
	prometheusObjectsHandled *prometheus.CounterVec
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusHandleObject = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marabu",
			Subsystem: "daemon",
			Name:      "handle_object",
			Help:      "Histogram of processing objects received from peers",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)

	prometheusObjectsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "daemon",
			Name:      "objects_handled",
			Help:      "Number of objects received from peers, by outcome",
		},
		[]string{"result"},
	)
}
