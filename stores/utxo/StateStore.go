package utxo

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	jsoniter "github.com/json-iterator/go"
	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/model"
	"github.com/marabu-network/marabu/stores/blob"
	"github.com/marabu-network/marabu/ulogger"
)

const (
	stateKeyPrefix  = "blockutxo:"
	heightKeyPrefix = "blockheight:"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type storedOutpoint struct {
	TxID  string `json:"txid"`
	Index uint64 `json:"index"`
}

type blockState struct {
	set    *Set
	height uint64
}

// StateStore keeps the UTXO set after each fully validated block, keyed by block id.
// Entries are written once and never changed; Put of a known block is a no-op. Recently
// used sets are held decoded in a bounded cache, everything else is read back from the blob
// store.
type StateStore struct {
	logger ulogger.Logger
	store  blob.Store
	// writeMu serializes Put
	writeMu sync.Mutex
	cache   *ttlcache.Cache[model.ObjectID, *blockState]
}

type StateStoreOption func(*stateStoreOptions)

type stateStoreOptions struct {
	cacheSize uint64
	cacheTTL  time.Duration
}

// WithStateCacheSize bounds how many decoded UTXO sets are kept in memory.
func WithStateCacheSize(size int) StateStoreOption {
	return func(o *stateStoreOptions) {
		if size > 0 {
			o.cacheSize = uint64(size)
		}
	}
}

// WithStateCacheTTL sets how long an unused decoded UTXO set is kept in memory.
func WithStateCacheTTL(ttl time.Duration) StateStoreOption {
	return func(o *stateStoreOptions) {
		if ttl > 0 {
			o.cacheTTL = ttl
		}
	}
}

func NewStateStore(logger ulogger.Logger, store blob.Store, opts ...StateStoreOption) *StateStore {
	options := &stateStoreOptions{
		cacheSize: 128,
		cacheTTL:  10 * time.Minute,
	}

	for _, o := range opts {
		o(options)
	}

	return &StateStore{
		logger: logger,
		store:  store,
		cache: ttlcache.New[model.ObjectID, *blockState](
			ttlcache.WithTTL[model.ObjectID, *blockState](options.cacheTTL),
			ttlcache.WithCapacity[model.ObjectID, *blockState](options.cacheSize),
		),
	}
}

func stateKey(blockID model.ObjectID) []byte {
	return []byte(stateKeyPrefix + blockID.String())
}

func heightKey(blockID model.ObjectID) []byte {
	return []byte(heightKeyPrefix + blockID.String())
}

// Put records the state after blockID at the given height.
func (s *StateStore) Put(ctx context.Context, blockID model.ObjectID, height uint64, set *Set) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	known, err := s.Has(ctx, blockID)
	if err != nil {
		return err
	}

	if known {
		return nil
	}

	outpoints := set.Outpoints()

	stored := make([]storedOutpoint, 0, len(outpoints))
	for _, op := range outpoints {
		stored = append(stored, storedOutpoint{TxID: op.TxID.String(), Index: op.Index})
	}

	b, err := json.Marshal(stored)
	if err != nil {
		return errors.NewProcessingError("[StateStore][%s] failed to encode UTXO set", blockID, err)
	}

	// the height is written last, its presence marks a complete entry
	if err = s.store.Set(ctx, stateKey(blockID), b); err != nil {
		return errors.NewStorageError("[StateStore][%s] failed to store UTXO set", blockID, err)
	}

	if err = s.store.Set(ctx, heightKey(blockID), []byte(strconv.FormatUint(height, 10))); err != nil {
		return errors.NewStorageError("[StateStore][%s] failed to store height", blockID, err)
	}

	s.cache.Set(blockID, &blockState{set: set.Copy(), height: height}, ttlcache.DefaultTTL)

	s.logger.Debugf("[StateStore][%s] stored UTXO set of %d outpoints at height %d", blockID, len(outpoints), height)

	return nil
}

// Get returns a copy of the UTXO set after blockID, or an error matching errors.ErrNotFound.
func (s *StateStore) Get(ctx context.Context, blockID model.ObjectID) (*Set, error) {
	state, err := s.load(ctx, blockID)
	if err != nil {
		return nil, err
	}

	return state.set.Copy(), nil
}

// Height returns the height of a block whose state is stored.
func (s *StateStore) Height(ctx context.Context, blockID model.ObjectID) (uint64, error) {
	state, err := s.load(ctx, blockID)
	if err != nil {
		return 0, err
	}

	return state.height, nil
}

func (s *StateStore) Has(ctx context.Context, blockID model.ObjectID) (bool, error) {
	if s.cache.Has(blockID) {
		return true, nil
	}

	exists, err := s.store.Exists(ctx, heightKey(blockID))
	if err != nil {
		return false, errors.NewStorageError("[StateStore][%s] failed to check height", blockID, err)
	}

	return exists, nil
}

func (s *StateStore) load(ctx context.Context, blockID model.ObjectID) (*blockState, error) {
	if item := s.cache.Get(blockID); item != nil {
		return item.Value(), nil
	}

	heightBytes, err := s.store.Get(ctx, heightKey(blockID))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFoundError("[StateStore][%s] no UTXO set stored", blockID, err)
		}

		return nil, errors.NewStorageError("[StateStore][%s] failed to read height", blockID, err)
	}

	height, err := strconv.ParseUint(string(heightBytes), 10, 64)
	if err != nil {
		return nil, errors.NewStorageError("[StateStore][%s] stored height is corrupt", blockID, err)
	}

	b, err := s.store.Get(ctx, stateKey(blockID))
	if err != nil {
		return nil, errors.NewStorageError("[StateStore][%s] failed to read UTXO set", blockID, err)
	}

	var stored []storedOutpoint
	if err = json.Unmarshal(b, &stored); err != nil {
		return nil, errors.NewStorageError("[StateStore][%s] stored UTXO set is corrupt", blockID, err)
	}

	outpoints := make([]model.Outpoint, 0, len(stored))

	for _, op := range stored {
		txID, err := model.NewObjectIDFromStr(op.TxID)
		if err != nil {
			return nil, errors.NewStorageError("[StateStore][%s] stored UTXO set is corrupt", blockID, err)
		}

		outpoints = append(outpoints, model.Outpoint{TxID: txID, Index: op.Index})
	}

	state := &blockState{set: NewSetFromOutpoints(outpoints), height: height}

	s.cache.Set(blockID, state, ttlcache.DefaultTTL)

	return state, nil
}
