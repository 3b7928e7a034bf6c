package object

import (
	"time"
)

type Options struct {
	retrieveTimeout time.Duration
	cacheTTL        time.Duration
	cacheSize       uint64
	bloomCapacity   uint64
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		retrieveTimeout: 5 * time.Second,
		cacheTTL:        10 * time.Minute,
		cacheSize:       10_000,
		bloomCapacity:   1_000_000,
	}
}

// WithRetrieveTimeout bounds how long Retrieve waits for a peer to deliver an object.
func WithRetrieveTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.retrieveTimeout = timeout
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.cacheTTL = ttl
	}
}

func WithCacheSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.cacheSize = uint64(size)
		}
	}
}

// WithBloomCapacity sizes the known-id filter. Zero disables it.
func WithBloomCapacity(capacity int) Option {
	return func(o *Options) {
		if capacity >= 0 {
			o.bloomCapacity = uint64(capacity)
		}
	}
}
