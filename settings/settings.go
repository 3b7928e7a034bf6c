// Package settings reads the node configuration once from gocore (settings.conf,
// settings_local.conf and the environment).
package settings

import (
	"time"

	"github.com/marabu-network/marabu/chaincfg"
)

func NewSettings() *Settings {
	params, err := chaincfg.GetChainParams(getString("network", "mainnet"))
	if err != nil {
		panic(err)
	}

	return &Settings{
		ClientName:                   getString("clientName", "marabu"),
		DataFolder:                   getString("dataFolder", "data"),
		LogLevel:                     getString("logLevel", "INFO"),
		LoggerType:                   getString("logger_type", "zerolog"),
		LoggerFile:                   getString("logger_file", "./data/marabu.log"),
		PrometheusEndpoint:           getString("prometheusEndpoint", "/metrics"),
		HealthCheckHTTPListenAddress: getString("healthCheckHTTPListenAddress", ":8000"),
		ChainCfgParams:               params,
		ObjectStore: ObjectStoreSettings{
			StoreURL:        getURL("object_store", "leveldb:///objects"),
			RetrieveTimeout: getDuration("object_retrieveTimeout", 5*time.Second),
			CacheTTL:        getDuration("object_cacheTTL", 10*time.Minute),
			CacheSize:       getInt("object_cacheSize", 10_000),
			BloomCapacity:   getInt("object_bloomCapacity", 1_000_000),
		},
		BlockValidation: BlockValidationSettings{
			ForkChoice:          getString("blockvalidation_forkChoice", "first-seen"),
			MaxClockDrift:       getDuration("blockvalidation_maxClockDrift", params.MaxClockDrift),
			CheckTimestamps:     getBool("blockvalidation_checkTimestamps", false),
			CheckCoinbaseHeight: getBool("blockvalidation_checkCoinbaseHeight", false),
			StateCacheSize:      getInt("blockvalidation_stateCacheSize", 128),
		},
		Mempool: MempoolSettings{
			Enabled:           getBool("mempool_enabled", true),
			RejectNegativeFee: getBool("mempool_rejectNegativeFee", true),
		},
		Tracing: TracingSettings{
			Enabled:      getBool("tracing_enabled", false),
			CollectorURL: getURL("tracing_collectorURL", ""),
			SampleRate:   getFloat64("tracing_sampleRate", 0.01),
		},
	}
}
