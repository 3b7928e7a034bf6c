// Package object is the content-addressed object store. Objects are kept in a blob store
// under their id; ids the node does not have can be requested from a peer and waited for.
package object

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash"
	"github.com/greatroar/blobloom"
	"github.com/jellydator/ttlcache/v3"
	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/model"
	"github.com/marabu-network/marabu/services/p2p"
	"github.com/marabu-network/marabu/stores/blob"
	"github.com/marabu-network/marabu/ulogger"
)

type Store struct {
	logger  ulogger.Logger
	store   blob.Store
	network p2p.Network
	options *Options
	cache   *ttlcache.Cache[model.ObjectID, model.Object]

	// bloom holds every stored id; nil when the backend cannot enumerate its keys.
	bloomMu sync.Mutex
	bloom   *blobloom.Filter

	waitMu  sync.Mutex
	waiting map[model.ObjectID][]chan model.Object

	closeOnce sync.Once
}

// New creates the object store. When the blob store can enumerate its keys, the ids already
// stored are loaded into a bloom filter so lookups of unknown ids skip the blob store.
func New(ctx context.Context, logger ulogger.Logger, store blob.Store, network p2p.Network, opts ...Option) (*Store, error) {
	initPrometheusMetrics()

	options := defaultOptions()
	for _, o := range opts {
		o(options)
	}

	s := &Store{
		logger:  logger,
		store:   store,
		network: network,
		options: options,
		cache: ttlcache.New[model.ObjectID, model.Object](
			ttlcache.WithTTL[model.ObjectID, model.Object](options.cacheTTL),
			ttlcache.WithCapacity[model.ObjectID, model.Object](options.cacheSize),
		),
		waiting: make(map[model.ObjectID][]chan model.Object),
	}

	go s.cache.Start()

	if err := s.loadBloom(ctx); err != nil {
		s.cache.Stop()
		return nil, err
	}

	return s, nil
}

func (s *Store) loadBloom(ctx context.Context) error {
	if s.options.bloomCapacity == 0 {
		return nil
	}

	iter, ok := s.store.(blob.Iterator)
	if !ok {
		s.logger.Infof("[ObjectStore] blob store cannot enumerate keys, known-id filter disabled")
		return nil
	}

	filter := blobloom.NewOptimized(blobloom.Config{
		Capacity: s.options.bloomCapacity,
		FPRate:   1e-4,
	})

	count := 0

	err := iter.IterateKeys(ctx, func(key []byte) error {
		if len(key) == model.ObjectIDSize {
			filter.Add(xxhash.Sum64(key))
			count++
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, errors.ErrContextCanceled) {
			return err
		}

		s.logger.Warnf("[ObjectStore] failed to enumerate stored objects, known-id filter disabled: %v", err)

		return nil
	}

	s.bloom = filter

	s.logger.Infof("[ObjectStore] known-id filter loaded with %d objects", count)

	return nil
}

// mayContain reports false only for ids that are certainly not stored.
func (s *Store) mayContain(id model.ObjectID) bool {
	s.bloomMu.Lock()
	defer s.bloomMu.Unlock()

	if s.bloom == nil {
		return true
	}

	return s.bloom.Has(xxhash.Sum64(id[:]))
}

func (s *Store) addKnown(id model.ObjectID) {
	s.bloomMu.Lock()
	defer s.bloomMu.Unlock()

	if s.bloom != nil {
		s.bloom.Add(xxhash.Sum64(id[:]))
	}
}

// Close stops the cache janitor. The blob store is owned by the caller.
func (s *Store) Close() {
	s.closeOnce.Do(s.cache.Stop)
}

// Put stores obj under its id and wakes any Retrieve waiting for it. Callers put only objects
// they have validated.
func (s *Store) Put(ctx context.Context, obj model.Object) (model.ObjectID, error) {
	id := obj.ID()

	if err := s.store.Set(ctx, id[:], obj.Bytes()); err != nil {
		return id, errors.NewStorageError("[ObjectStore][%s] failed to store object", id, err)
	}

	s.cache.Set(id, obj, ttlcache.DefaultTTL)
	s.addKnown(id)

	prometheusObjectStorePut.Inc()

	s.notify(id, obj)

	return id, nil
}

// Get returns a locally stored object or an error matching errors.ErrNotFound.
func (s *Store) Get(ctx context.Context, id model.ObjectID) (model.Object, error) {
	if item := s.cache.Get(id); item != nil {
		prometheusObjectStoreCacheHit.Inc()
		return item.Value(), nil
	}

	prometheusObjectStoreCacheMiss.Inc()

	if !s.mayContain(id) {
		prometheusObjectStoreBloomNegative.Inc()
		return nil, errors.NewNotFoundError("[ObjectStore][%s] object not found", id)
	}

	b, err := s.store.Get(ctx, id[:])
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFoundError("[ObjectStore][%s] object not found", id, err)
		}

		return nil, errors.NewStorageError("[ObjectStore][%s] failed to read object", id, err)
	}

	obj, err := model.NewObjectFromBytes(b)
	if err != nil {
		return nil, errors.NewStorageError("[ObjectStore][%s] stored object is corrupt", id, err)
	}

	s.cache.Set(id, obj, ttlcache.DefaultTTL)

	return obj, nil
}

// Has reports whether the object is stored locally.
func (s *Store) Has(ctx context.Context, id model.ObjectID) (bool, error) {
	if s.cache.Has(id) {
		return true, nil
	}

	if !s.mayContain(id) {
		return false, nil
	}

	exists, err := s.store.Exists(ctx, id[:])
	if err != nil {
		return false, errors.NewStorageError("[ObjectStore][%s] failed to check object", id, err)
	}

	return exists, nil
}

// Retrieve returns the object from local storage or, failing that, asks peer for it and waits
// until it has been stored. If it does not arrive within the retrieve timeout the error is
// UNFINDABLE_OBJECT.
func (s *Store) Retrieve(ctx context.Context, id model.ObjectID, peer p2p.PeerID) (model.Object, error) {
	obj, err := s.Get(ctx, id)
	if err == nil {
		return obj, nil
	}

	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	if peer == p2p.NoPeer || s.network == nil {
		return nil, errors.NewUnfindableObjectError("object %s is not stored and there is no peer to ask", id).WithObjectID(id)
	}

	ch := s.wait(id)
	defer s.stopWaiting(id, ch)

	// it may have been stored between the first lookup and registering
	if obj, err = s.Get(ctx, id); err == nil {
		return obj, nil
	}

	start := time.Now()

	s.logger.Debugf("[ObjectStore][%s] requesting object from peer %q", id, peer)

	if err = s.network.RequestObject(ctx, peer, id); err != nil {
		return nil, errors.NewUnfindableObjectError("failed to request object %s from peer %q", id, peer, err).WithObjectID(id)
	}

	timer := time.NewTimer(s.options.retrieveTimeout)
	defer timer.Stop()

	select {
	case obj = <-ch:
		prometheusObjectStoreRetrieve.Observe(time.Since(start).Seconds())
		return obj, nil

	case <-timer.C:
		prometheusObjectStoreRetrieveTimeout.Inc()
		return nil, errors.NewUnfindableObjectError("object %s was not delivered by peer %q within %s", id, peer, s.options.retrieveTimeout).WithObjectID(id)

	case <-ctx.Done():
		return nil, errors.FromContext(ctx)
	}
}

// Awaiting reports whether a Retrieve is waiting for id.
func (s *Store) Awaiting(id model.ObjectID) bool {
	s.waitMu.Lock()
	defer s.waitMu.Unlock()

	return len(s.waiting[id]) > 0
}

func (s *Store) wait(id model.ObjectID) chan model.Object {
	ch := make(chan model.Object, 1)

	s.waitMu.Lock()
	s.waiting[id] = append(s.waiting[id], ch)
	s.waitMu.Unlock()

	return ch
}

func (s *Store) stopWaiting(id model.ObjectID, ch chan model.Object) {
	s.waitMu.Lock()
	defer s.waitMu.Unlock()

	waiters := s.waiting[id]
	for i, w := range waiters {
		if w == ch {
			waiters = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}

	if len(waiters) == 0 {
		delete(s.waiting, id)
	} else {
		s.waiting[id] = waiters
	}
}

// Deliver hands obj to the Retrieve calls waiting for it without storing it, so a waiter can
// report why obj is invalid. It returns false when nobody was waiting.
func (s *Store) Deliver(obj model.Object) bool {
	if s.notify(obj.ID(), obj) == 0 {
		return false
	}

	prometheusObjectStoreDelivered.Inc()

	return true
}

func (s *Store) notify(id model.ObjectID, obj model.Object) int {
	s.waitMu.Lock()
	waiters := s.waiting[id]
	delete(s.waiting, id)
	s.waitMu.Unlock()

	for _, ch := range waiters {
		ch <- obj
	}

	return len(waiters)
}
