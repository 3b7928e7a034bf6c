// Package deduplicator runs at most one computation per key at a time. Callers arriving
// while a computation for their key is in flight wait for it and share its result.
package deduplicator

import (
	"context"
	"sync"

	"github.com/marabu-network/marabu/errors"
	"github.com/ordishs/gocore"
)

type entry struct {
	done    chan struct{}
	err     error
	waiters int
}

type DeDuplicator[K comparable] struct {
	mu       sync.Mutex
	inFlight map[K]*entry
}

func New[K comparable]() *DeDuplicator[K] {
	return &DeDuplicator[K]{
		inFlight: make(map[K]*entry),
	}
}

// DeDuplicate executes fn unless a call for key is already running, in which case it waits
// for that call and returns its error. shared reports whether the result came from another
// caller. A waiter whose ctx ends stops waiting; the running fn is not interrupted.
func (u *DeDuplicator[K]) DeDuplicate(ctx context.Context, key K, fn func() error) (shared bool, err error) {
	start := gocore.CurrentTime()
	stat := gocore.NewStat("DeDuplicator.DeDuplicate")

	u.mu.Lock()

	if e, found := u.inFlight[key]; found {
		e.waiters++
		u.mu.Unlock()

		select {
		case <-e.done:
			stat.NewStat("2a. Shared result").AddTime(start)
			return true, e.err
		case <-ctx.Done():
			return true, errors.FromContext(ctx)
		}
	}

	e := &entry{done: make(chan struct{})}
	u.inFlight[key] = e

	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		delete(u.inFlight, key)
		u.mu.Unlock()

		close(e.done)

		stat.NewStat("2b. Computed result").AddTime(start)
	}()

	e.err = fn()

	return false, e.err
}

// InFlight returns the number of keys currently being computed.
func (u *DeDuplicator[K]) InFlight() int {
	u.mu.Lock()
	defer u.mu.Unlock()

	return len(u.inFlight)
}

// Waiters returns how many callers are waiting on the in-flight computation for key.
func (u *DeDuplicator[K]) Waiters(key K) int {
	u.mu.Lock()
	defer u.mu.Unlock()

	if e, found := u.inFlight[key]; found {
		return e.waiters
	}

	return 0
}
