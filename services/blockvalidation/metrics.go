package blockvalidation

import (
	"sync"

	"github.com/marabu-network/marabu/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusBlockValidationValidateBlock prometheus.Histogram
	prometheusBlockValidationInvalid       *prometheus.CounterVec
	prometheusBlockValidationCacheHit      prometheus.Counter
	prometheusBlockValidationChainHeight   prometheus.Gauge
	prometheusCatchupBlocksFetched         prometheus.Counter
	prometheusCatchupActive                prometheus.Gauge
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusBlockValidationValidateBlock = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marabu",
			Subsystem: "blockvalidation",
			Name:      "validate_block",
			Help:      "Histogram of full validation of a single block",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)

	prometheusBlockValidationInvalid = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "blockvalidation",
			Name:      "invalid_blocks",
			Help:      "Number of blocks rejected, by error kind",
		},
		[]string{"reason"},
	)

	prometheusBlockValidationCacheHit = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "blockvalidation",
			Name:      "cache_hit",
			Help:      "Number of validations answered from the stored UTXO state",
		},
	)

	prometheusBlockValidationChainHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marabu",
			Subsystem: "blockvalidation",
			Name:      "chain_height",
			Help:      "Height of the current chain tip",
		},
	)

	prometheusCatchupBlocksFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "blockvalidation",
			Name:      "catchup_blocks_fetched",
			Help:      "Number of ancestor blocks fetched while resolving a chain",
		},
	)

	prometheusCatchupActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marabu",
			Subsystem: "blockvalidation",
			Name:      "catchup_active",
			Help:      "Number of ancestor resolutions in progress",
		},
	)
}
