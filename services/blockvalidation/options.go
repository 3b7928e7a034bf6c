package blockvalidation

import (
	"time"
)

type Options struct {
	now        func() time.Time
	fetchLimit int
}

// Option is a function that sets some option on the Options struct
type Option func(*Options)

func NewDefaultOptions() *Options {
	return &Options{
		now:        time.Now,
		fetchLimit: 16,
	}
}

// WithClock replaces the clock used for the future-timestamp check.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.now = now
	}
}

// WithFetchLimit bounds how many transactions of one block are fetched concurrently.
func WithFetchLimit(limit int) Option {
	return func(o *Options) {
		if limit > 0 {
			o.fetchLimit = limit
		}
	}
}
