package validator

import (
	"sync"

	"github.com/marabu-network/marabu/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusTransactionValidate   prometheus.Histogram
	prometheusInvalidTransactions   *prometheus.CounterVec
	prometheusTransactionInputs     prometheus.Histogram
	prometheusTransactionVerifySigs prometheus.Histogram
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusTransactionValidate = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marabu",
			Subsystem: "validator",
			Name:      "transaction_validate",
			Help:      "Histogram of transaction validation",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)

	prometheusInvalidTransactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "validator",
			Name:      "invalid_transactions",
			Help:      "Number of transactions found invalid, by error kind",
		},
		[]string{"reason"},
	)

	prometheusTransactionInputs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marabu",
			Subsystem: "validator",
			Name:      "transaction_inputs",
			Help:      "Number of inputs per validated transaction",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	prometheusTransactionVerifySigs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marabu",
			Subsystem: "validator",
			Name:      "transaction_verify_signatures",
			Help:      "Histogram of signature verification per transaction",
			Buckets:   util.MetricsBucketsMicroSeconds,
		},
	)
}
