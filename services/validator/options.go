package validator

import (
	"github.com/marabu-network/marabu/services/p2p"
)

type Options struct {
	peer p2p.PeerID
}

// Option is a function that sets some option on the Options struct
type Option func(*Options)

func NewDefaultOptions() *Options {
	return &Options{
		peer: p2p.NoPeer,
	}
}

func ProcessOptions(opts ...Option) *Options {
	options := NewDefaultOptions()
	for _, o := range opts {
		o(options)
	}

	return options
}

// WithPeer lets Validate fetch referenced transactions it does not have from peer.
func WithPeer(peer p2p.PeerID) Option {
	return func(o *Options) {
		o.peer = peer
	}
}
