// Package chaincfg defines the consensus constants of each Marabu network.
package chaincfg

import (
	"math/big"
	"strings"
	"time"

	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/model"
)

const (
	// BaseUnitsPerCoin is the number of base units in one coin.
	BaseUnitsPerCoin = 1_000_000_000_000

	// BlockReward is the maximum mintage of a coinbase before fees.
	BlockReward = 50 * BaseUnitsPerCoin

	mainNetTarget = "00000000abc00000000000000000000000000000000000000000000000000000"
	regTestTarget = "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"

	genesisCreated = 1671062400
	genesisMiner   = "Marabu"
	genesisNonce   = "000000000000000000000000000000000000000000000000000000021bea03ed"
	genesisNote    = "The New York Times 2022-12-13: Scientists Achieve Nuclear Fusion Breakthrough With Blast of 192 Lasers"
)

// Params defines a Marabu network by its parameters.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Target is the proof-of-work threshold exactly as it appears in the T field of a block.
	Target string

	// PowLimit is Target as an integer.
	PowLimit *big.Int

	// BlockReward is the coinbase allowance before fees.
	BlockReward uint64

	// GenesisBlock defines the only block without a parent.
	GenesisBlock *model.Block

	// GenesisHash is the id of GenesisBlock.
	GenesisHash model.ObjectID

	// MaxClockDrift bounds how far in the future a block timestamp may be.
	MaxClockDrift time.Duration
}

// MainNetParams are the parameters of the public Marabu network.
var MainNetParams = newParams("mainnet", mainNetTarget, genesisNonce)

// RegressionNetParams accept any block id as proof of work, so blocks can be built in
// tests without mining.
var RegressionNetParams = newParams("regtest", regTestTarget, genesisNonce)

func newParams(name, target, nonce string) Params {
	powLimit, ok := new(big.Int).SetString(target, 16)
	if !ok {
		panic("invalid target " + target)
	}

	miner := genesisMiner
	note := genesisNote

	genesis := &model.Block{
		Target:  target,
		Created: genesisCreated,
		Miner:   &miner,
		Nonce:   nonce,
		Note:    &note,
		TxIDs:   []model.ObjectID{},
	}

	return Params{
		Name:          name,
		Target:        target,
		PowLimit:      powLimit,
		BlockReward:   BlockReward,
		GenesisBlock:  genesis,
		GenesisHash:   genesis.ID(),
		MaxClockDrift: 2 * time.Hour,
	}
}

// GetChainParams returns the parameters for the named network.
func GetChainParams(network string) (*Params, error) {
	switch strings.ToLower(network) {
	case "mainnet", "main", "":
		return &MainNetParams, nil
	case "regtest", "regression":
		return &RegressionNetParams, nil
	default:
		return nil, errors.NewConfigurationError("unknown network %s", network)
	}
}
