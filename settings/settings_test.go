package settings

import (
	"testing"
	"time"

	"github.com/marabu-network/marabu/chaincfg"
	"github.com/stretchr/testify/require"
)

// check settings object is initialised
func TestInitialiseSettings(t *testing.T) {
	tSettings := NewSettings()

	require.NotNil(t, tSettings.ChainCfgParams)
	require.NotNil(t, tSettings.ObjectStore.StoreURL)
	require.Equal(t, "leveldb", tSettings.ObjectStore.StoreURL.Scheme)
	require.Equal(t, 5*time.Second, tSettings.ObjectStore.RetrieveTimeout)
	require.Equal(t, "first-seen", tSettings.BlockValidation.ForkChoice)
	require.True(t, tSettings.Mempool.RejectNegativeFee)
	require.False(t, tSettings.Tracing.Enabled)
	require.InDelta(t, 0.01, tSettings.Tracing.SampleRate, 1e-9)
	require.False(t, tSettings.BlockValidation.CheckTimestamps)
	require.False(t, tSettings.BlockValidation.CheckCoinbaseHeight)
	require.Equal(t, 128, tSettings.BlockValidation.StateCacheSize)
}

func TestBlockValidationChecks(t *testing.T) {
	t.Setenv("blockvalidation_checkTimestamps", "true")
	t.Setenv("blockvalidation_checkCoinbaseHeight", "true")
	t.Setenv("mempool_rejectNegativeFee", "false")

	tSettings := NewSettings()
	require.True(t, tSettings.BlockValidation.CheckTimestamps)
	require.True(t, tSettings.BlockValidation.CheckCoinbaseHeight)
	require.False(t, tSettings.Mempool.RejectNegativeFee)
}

func TestNetworkSetting(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected *chaincfg.Params
	}{
		{"MainNet", "mainnet", &chaincfg.MainNetParams},
		{"RegressionNet", "regtest", &chaincfg.RegressionNetParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("network", tt.envValue)

			tSettings := NewSettings()
			require.Same(t, tt.expected, tSettings.ChainCfgParams)
		})
	}
}

func TestDurationSetting(t *testing.T) {
	t.Setenv("object_retrieveTimeout", "250ms")
	require.Equal(t, 250*time.Millisecond, NewSettings().ObjectStore.RetrieveTimeout)

	t.Setenv("object_retrieveTimeout", "not-a-duration")
	require.Equal(t, 5*time.Second, NewSettings().ObjectStore.RetrieveTimeout)
}
