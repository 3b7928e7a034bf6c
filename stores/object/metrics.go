package object

import (
	"sync"

	"github.com/marabu-network/marabu/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusObjectStorePut             prometheus.Counter
	prometheusObjectStoreCacheHit        prometheus.Counter
	prometheusObjectStoreCacheMiss       prometheus.Counter
	prometheusObjectStoreBloomNegative   prometheus.Counter
	prometheusObjectStoreRetrieve        prometheus.Histogram
	prometheusObjectStoreRetrieveTimeout prometheus.Counter
	prometheusObjectStoreDelivered       prometheus.Counter
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusObjectStorePut = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "objectstore",
			Name:      "put",
			Help:      "Number of objects written to the object store",
		},
	)

	prometheusObjectStoreCacheHit = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "objectstore",
			Name:      "cache_hit",
			Help:      "Number of object reads served from the decoded object cache",
		},
	)

	prometheusObjectStoreCacheMiss = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "objectstore",
			Name:      "cache_miss",
			Help:      "Number of object reads that went to the blob store",
		},
	)

	prometheusObjectStoreBloomNegative = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "objectstore",
			Name:      "bloom_negative",
			Help:      "Number of lookups answered as unknown by the known-id filter",
		},
	)

	prometheusObjectStoreRetrieve = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marabu",
			Subsystem: "objectstore",
			Name:      "retrieve",
			Help:      "Histogram of objects retrieved from the network",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)

	prometheusObjectStoreRetrieveTimeout = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "objectstore",
			Name:      "retrieve_timeout",
			Help:      "Number of network retrievals that timed out",
		},
	)

	prometheusObjectStoreDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "objectstore",
			Name:      "delivered",
			Help:      "Number of objects handed to waiting retrievals without being stored",
		},
	)
}
