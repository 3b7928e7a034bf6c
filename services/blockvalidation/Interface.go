package blockvalidation

import (
	"context"

	"github.com/marabu-network/marabu/model"
	"github.com/marabu-network/marabu/services/p2p"
	"github.com/marabu-network/marabu/stores/utxo"
)

type Interface interface {
	// ValidateBlock fully validates block, fetching unknown ancestors and transactions
	// from peer, and stores the resulting UTXO set.
	ValidateBlock(ctx context.Context, block *model.Block, peer p2p.PeerID) error
	Tip() (*model.Block, uint64)
	Height() uint64
	HeightOf(ctx context.Context, blockID model.ObjectID) (uint64, error)
	State(ctx context.Context, blockID model.ObjectID) (*utxo.Set, error)
}

// ObjectStore is the part of stores/object.Store the chain manager needs.
type ObjectStore interface {
	Put(ctx context.Context, obj model.Object) (model.ObjectID, error)
	Get(ctx context.Context, id model.ObjectID) (model.Object, error)
	Has(ctx context.Context, id model.ObjectID) (bool, error)
	Retrieve(ctx context.Context, id model.ObjectID, peer p2p.PeerID) (model.Object, error)
}

// TipListener is called, in order, every time the chain tip changes. state is a copy of the
// UTXO set after tip and may be kept by the listener.
type TipListener func(ctx context.Context, tip *model.Block, height uint64, state *utxo.Set)

// BlockListener is called once for each block stored by the chain manager, with the peer the
// block came from.
type BlockListener func(ctx context.Context, block *model.Block, peer p2p.PeerID)
