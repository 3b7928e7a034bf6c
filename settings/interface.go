package settings

import (
	"net/url"
	"time"

	"github.com/marabu-network/marabu/chaincfg"
)

type Settings struct {
	ClientName                   string
	DataFolder                   string
	LogLevel                     string
	LoggerType                   string
	LoggerFile                   string
	PrometheusEndpoint           string
	HealthCheckHTTPListenAddress string
	ChainCfgParams               *chaincfg.Params
	ObjectStore                  ObjectStoreSettings
	BlockValidation              BlockValidationSettings
	Mempool                      MempoolSettings
	Tracing                      TracingSettings
}

type ObjectStoreSettings struct {
	StoreURL        *url.URL
	RetrieveTimeout time.Duration
	CacheTTL        time.Duration
	CacheSize       int
	BloomCapacity   int
}

type BlockValidationSettings struct {
	// ForkChoice selects the rule deciding whether a validated block replaces the tip.
	ForkChoice    string
	MaxClockDrift time.Duration
	// CheckTimestamps requires a block to be created after its parent and not too far in
	// the future. Off by default.
	CheckTimestamps bool
	// CheckCoinbaseHeight requires the coinbase height to equal the block height. Off by
	// default.
	CheckCoinbaseHeight bool
	// StateCacheSize bounds how many per-block UTXO sets are kept decoded in memory.
	StateCacheSize int
}

type MempoolSettings struct {
	Enabled bool
	// RejectNegativeFee must be true: a transaction spending more than its inputs is never
	// accepted, so the daemon refuses to start without it.
	RejectNegativeFee bool
}

type TracingSettings struct {
	Enabled bool
	// CollectorURL is the OTLP/HTTP endpoint; when unset the exporter falls back to the
	// OTEL_EXPORTER_OTLP_* environment variables.
	CollectorURL *url.URL
	SampleRate   float64
}
