package daemon

import (
	"github.com/marabu-network/marabu/services/blockvalidation"
	"github.com/marabu-network/marabu/services/p2p"
	"github.com/marabu-network/marabu/stores/blob"
	"github.com/marabu-network/marabu/ulogger"
)

// Option is a functional option type for configuring the Daemon.
type Option func(*Daemon)

// WithLoggerFactory provides a custom logger factory for the Daemon and its services.
func WithLoggerFactory(factory func(serviceName string) ulogger.Logger) Option {
	return func(d *Daemon) {
		d.loggerFactory = factory
	}
}

// WithNetwork sets the wire layer objects are requested from and announced to. Without it
// the daemon runs on a Loopback with no peers.
func WithNetwork(network p2p.Network) Option {
	return func(d *Daemon) {
		d.network = network
	}
}

// WithBlobStore replaces the store built from the object_store setting. The daemon does not
// close a store it was given.
func WithBlobStore(store blob.Store) Option {
	return func(d *Daemon) {
		d.blobStore = store
	}
}

// WithChainOptions passes options through to the chain manager.
func WithChainOptions(opts ...blockvalidation.Option) Option {
	return func(d *Daemon) {
		d.chainOptions = append(d.chainOptions, opts...)
	}
}
