package validator

import (
	"context"

	"github.com/marabu-network/marabu/model"
	"github.com/marabu-network/marabu/services/p2p"
)

type Interface interface {
	// Validate checks tx for structural and cryptographic validity and returns its fee.
	// block is the block tx appears in at position indexInBlock, or nil for a loose
	// transaction. The UTXO set is not consulted or changed.
	Validate(ctx context.Context, tx *model.Transaction, indexInBlock int, block *model.Block, opts ...Option) (uint64, error)
}

// ObjectGetter resolves the transactions referenced by inputs. stores/object.Store
// implements it.
type ObjectGetter interface {
	Get(ctx context.Context, id model.ObjectID) (model.Object, error)
	Retrieve(ctx context.Context, id model.ObjectID, peer p2p.PeerID) (model.Object, error)
}
