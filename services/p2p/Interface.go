// Package p2p is the boundary between the consensus core and the wire layer. The core asks
// for objects and announces accepted ones; framing, handshakes and peer management live on
// the other side of the Network interface.
package p2p

import (
	"context"

	"github.com/marabu-network/marabu/model"
)

// PeerID identifies one connection.
type PeerID string

// NoPeer is used for objects that did not arrive over a connection (imports, local mining).
const NoPeer PeerID = ""

type Network interface {
	// RequestObject sends getobject for id to peer. The reply, if any, arrives
	// asynchronously through the node's object handler.
	RequestObject(ctx context.Context, peer PeerID, id model.ObjectID) error

	// Broadcast sends ihaveobject for id to every connection except source.
	Broadcast(ctx context.Context, id model.ObjectID, source PeerID) error
}

// ObjectHandler receives raw objects arriving from a peer.
type ObjectHandler func(ctx context.Context, raw []byte, from PeerID) error
