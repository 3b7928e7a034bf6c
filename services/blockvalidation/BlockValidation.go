// Package blockvalidation implements the chain manager: full block validation, ancestor
// resolution over the network, the per-block UTXO state and the longest chain tip.
//
// A block is validated against the UTXO set stored for its parent. Missing ancestors are
// fetched walking back from the block until an ancestor with a stored state (or genesis) is
// found, and then validated oldest first. Each block id is validated by at most one caller at
// a time; concurrent callers share the result.
package blockvalidation

import (
	"bytes"
	"context"
	"math/bits"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/marabu-network/marabu/chaincfg"
	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/model"
	"github.com/marabu-network/marabu/services/p2p"
	"github.com/marabu-network/marabu/services/validator"
	"github.com/marabu-network/marabu/settings"
	"github.com/marabu-network/marabu/stores/blob"
	"github.com/marabu-network/marabu/stores/utxo"
	"github.com/marabu-network/marabu/tracing"
	"github.com/marabu-network/marabu/ulogger"
	"github.com/marabu-network/marabu/util/deduplicator"
	"github.com/ordishs/gocore"
	"golang.org/x/sync/errgroup"
)

// chainTipKey is the blob key the id of the current tip is kept under.
var chainTipKey = []byte("chaintip")

type ChainManager struct {
	logger     ulogger.Logger
	settings   *settings.Settings
	params     *chaincfg.Params
	options    *Options
	objects    ObjectStore
	validator  validator.Interface
	states     *utxo.StateStore
	meta       blob.Store
	forkChoice ForkChoice
	dedup      *deduplicator.DeDuplicator[model.ObjectID]
	stats      *gocore.Stat

	fsm       *fsm.FSM
	catchupMu sync.Mutex
	catchups  int

	tipMu     sync.RWMutex
	tip       *model.Block
	tipHeight uint64

	// notifyMu keeps tip changes and their notifications in the same order
	notifyMu       sync.Mutex
	listeners      []TipListener
	blockListeners []BlockListener
}

// New creates a chain manager. meta is where the chain tip is persisted; it may be the same
// blob store the states live in.
func New(logger ulogger.Logger, tSettings *settings.Settings, objects ObjectStore, txValidator validator.Interface,
	states *utxo.StateStore, meta blob.Store, opts ...Option) (*ChainManager, error) {
	initPrometheusMetrics()

	forkChoice, err := NewForkChoice(tSettings.BlockValidation.ForkChoice)
	if err != nil {
		return nil, err
	}

	options := NewDefaultOptions()
	for _, o := range opts {
		o(options)
	}

	return &ChainManager{
		logger:     logger,
		settings:   tSettings,
		params:     tSettings.ChainCfgParams,
		options:    options,
		objects:    objects,
		validator:  txValidator,
		states:     states,
		meta:       meta,
		forkChoice: forkChoice,
		dedup:      deduplicator.New[model.ObjectID](),
		stats:      gocore.NewStat("blockvalidation"),
		fsm:        NewFiniteStateMachine(),
	}, nil
}

// AddTipListener registers fn to be called on every tip change. Call before Init.
func (cm *ChainManager) AddTipListener(fn TipListener) {
	cm.notifyMu.Lock()
	defer cm.notifyMu.Unlock()

	cm.listeners = append(cm.listeners, fn)
}

// AddBlockListener registers fn to be called for every block the chain manager stores after
// validating it, ancestors fetched from a peer included.
func (cm *ChainManager) AddBlockListener(fn BlockListener) {
	cm.notifyMu.Lock()
	defer cm.notifyMu.Unlock()

	cm.blockListeners = append(cm.blockListeners, fn)
}

func (cm *ChainManager) notifyAccepted(ctx context.Context, block *model.Block, peer p2p.PeerID) {
	cm.notifyMu.Lock()
	listeners := cm.blockListeners
	cm.notifyMu.Unlock()

	for _, listener := range listeners {
		listener(ctx, block, peer)
	}
}

// Init validates the genesis block, which seeds the empty UTXO set, and restores the
// persisted chain tip.
func (cm *ChainManager) Init(ctx context.Context) error {
	genesis := cm.params.GenesisBlock

	if _, err := cm.objects.Put(ctx, genesis); err != nil {
		return err
	}

	if err := cm.fsm.Event(ctx, FSMEventRun); err != nil {
		return errors.NewProcessingError("[ChainManager] failed to start", err)
	}

	if err := cm.ValidateBlock(ctx, genesis, p2p.NoPeer); err != nil {
		return errors.NewProcessingError("[ChainManager] genesis block %s does not validate", genesis.ID(), err)
	}

	tip, height, err := cm.loadTip(ctx)
	if err != nil {
		return err
	}

	if tip == nil {
		tip, height = genesis, 0
	}

	cm.updateTip(ctx, tip, height)

	cm.logger.Infof("[ChainManager] chain tip %s at height %d", tip.ID(), height)

	return nil
}

// loadTip returns the persisted chain tip, or nil when none was stored.
func (cm *ChainManager) loadTip(ctx context.Context) (*model.Block, uint64, error) {
	tipBytes, err := cm.meta.Get(ctx, chainTipKey)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, 0, nil
		}

		return nil, 0, errors.NewStorageError("[ChainManager] failed to read chain tip", err)
	}

	tipID, err := model.NewObjectIDFromStr(string(tipBytes))
	if err != nil {
		return nil, 0, errors.NewStorageError("[ChainManager] stored chain tip is corrupt", err)
	}

	obj, err := cm.objects.Get(ctx, tipID)
	if err != nil {
		return nil, 0, errors.NewStorageError("[ChainManager][%s] stored chain tip block is missing", tipID, err)
	}

	tip, ok := obj.(*model.Block)
	if !ok {
		return nil, 0, errors.NewStorageError("[ChainManager][%s] stored chain tip is not a block", tipID)
	}

	height, err := cm.states.Height(ctx, tipID)
	if err != nil {
		return nil, 0, errors.NewStorageError("[ChainManager][%s] stored chain tip has no state", tipID, err)
	}

	return tip, height, nil
}

// Stop moves the state machine back to idle.
func (cm *ChainManager) Stop(ctx context.Context) error {
	return cm.fsm.Event(ctx, FSMEventStop)
}

// CurrentState returns the state of the chain manager's state machine.
func (cm *ChainManager) CurrentState() string {
	return cm.fsm.Current()
}

func (cm *ChainManager) Tip() (*model.Block, uint64) {
	cm.tipMu.RLock()
	defer cm.tipMu.RUnlock()

	return cm.tip, cm.tipHeight
}

func (cm *ChainManager) Height() uint64 {
	cm.tipMu.RLock()
	defer cm.tipMu.RUnlock()

	return cm.tipHeight
}

// HeightOf returns the height of a validated block.
func (cm *ChainManager) HeightOf(ctx context.Context, blockID model.ObjectID) (uint64, error) {
	return cm.states.Height(ctx, blockID)
}

// State returns a copy of the UTXO set after a validated block.
func (cm *ChainManager) State(ctx context.Context, blockID model.ObjectID) (*utxo.Set, error) {
	return cm.states.Get(ctx, blockID)
}

func (cm *ChainManager) ValidateBlock(ctx context.Context, block *model.Block, peer p2p.PeerID) (err error) {
	blockID := block.ID()

	ctx, _, deferFn := tracing.StartTracing(ctx, "ValidateBlock",
		tracing.WithParentStat(cm.stats),
		tracing.WithTag("block", blockID.String()),
		tracing.WithLogMessage(cm.logger, "[ValidateBlock][%s] from peer %q", blockID, peer),
	)

	defer func() {
		deferFn(err)
	}()

	known, err := cm.states.Has(ctx, blockID)
	if err != nil {
		return errors.NewStorageError("[ValidateBlock][%s] failed to look up state", blockID, err)
	}

	if known {
		prometheusBlockValidationCacheHit.Inc()
		return nil
	}

	if err = cm.checkHeader(block); err != nil {
		return err
	}

	chain, err := cm.resolveAncestors(ctx, block, peer)
	if err != nil {
		return err
	}

	for i := len(chain) - 1; i >= 0; i-- {
		if err = cm.validateOnce(ctx, chain[i], peer); err != nil {
			if i == 0 || !errors.IsValidationError(err) {
				return err
			}

			return errors.NewUnfindableObjectError("[ValidateBlock][%s] ancestor %s is invalid", blockID, chain[i].ID(), err).WithObjectID(blockID)
		}
	}

	return nil
}

// resolveAncestors returns block followed by each ancestor without a stored state, newest
// first. The last element is genesis or a block whose parent has a stored state.
func (cm *ChainManager) resolveAncestors(ctx context.Context, block *model.Block, peer p2p.PeerID) ([]*model.Block, error) {
	blockID := block.ID()
	chain := []*model.Block{block}
	catchingUp := false

	defer func() {
		if catchingUp {
			cm.endCatchup(ctx)
		}
	}()

	for current := block; current.PrevID != nil; {
		parentID := *current.PrevID

		known, err := cm.states.Has(ctx, parentID)
		if err != nil {
			return nil, errors.NewStorageError("[ValidateBlock][%s] failed to look up state of %s", blockID, parentID, err)
		}

		if known {
			break
		}

		if !catchingUp {
			cm.beginCatchup(ctx)
			catchingUp = true
		}

		obj, err := cm.objects.Retrieve(ctx, parentID, peer)
		if err != nil {
			if errors.IsValidationError(err) {
				return nil, errors.NewUnfindableObjectError("[ValidateBlock][%s] ancestor %s could not be found", blockID, parentID, err).WithObjectID(blockID)
			}

			return nil, err
		}

		parent, ok := obj.(*model.Block)
		if !ok {
			return nil, errors.NewUnfindableObjectError("[ValidateBlock][%s] previd %s is a %s, not a block", blockID, parentID, obj.Type()).WithObjectID(blockID)
		}

		// a bogus ancestor ends the walk before anything older is fetched
		if err = cm.checkHeader(parent); err != nil {
			return nil, errors.NewUnfindableObjectError("[ValidateBlock][%s] ancestor %s is invalid", blockID, parentID, err).WithObjectID(blockID)
		}

		prometheusCatchupBlocksFetched.Inc()

		chain = append(chain, parent)
		current = parent
	}

	if len(chain) > 1 {
		cm.logger.Infof("[ValidateBlock][%s] resolved %d missing ancestors", blockID, len(chain)-1)
	}

	return chain, nil
}

func (cm *ChainManager) beginCatchup(ctx context.Context) {
	cm.catchupMu.Lock()
	defer cm.catchupMu.Unlock()

	cm.catchups++
	prometheusCatchupActive.Inc()

	if cm.catchups == 1 && cm.fsm.Can(FSMEventCatchupBlocks) {
		if err := cm.fsm.Event(ctx, FSMEventCatchupBlocks); err != nil {
			cm.logger.Warnf("[ChainManager] failed to enter %s: %v", FSMStateCatchingBlocks, err)
		}
	}
}

func (cm *ChainManager) endCatchup(ctx context.Context) {
	cm.catchupMu.Lock()
	defer cm.catchupMu.Unlock()

	cm.catchups--
	prometheusCatchupActive.Dec()

	if cm.catchups == 0 && cm.fsm.Is(FSMStateCatchingBlocks) {
		if err := cm.fsm.Event(ctx, FSMEventRun); err != nil {
			cm.logger.Warnf("[ChainManager] failed to leave %s: %v", FSMStateCatchingBlocks, err)
		}
	}
}

// validateOnce validates block unless its state is already stored, with at most one
// validation per block id in flight.
func (cm *ChainManager) validateOnce(ctx context.Context, block *model.Block, peer p2p.PeerID) error {
	blockID := block.ID()

	_, err := cm.dedup.DeDuplicate(ctx, blockID, func() error {
		known, err := cm.states.Has(ctx, blockID)
		if err != nil {
			return errors.NewStorageError("[ValidateBlock][%s] failed to look up state", blockID, err)
		}

		if known {
			return nil
		}

		return cm.validate(ctx, block, peer)
	})

	return err
}

// checkHeader runs the checks that need nothing but the block itself.
func (cm *ChainManager) checkHeader(block *model.Block) error {
	if block.Target != cm.params.Target {
		return errors.NewInvalidFormatError("[ValidateBlock][%s] target %s is not the network target", block.ID(), block.Target).WithObjectID(block.ID())
	}

	if !block.CheckProofOfWork(cm.params.PowLimit) {
		return errors.NewBlockPowError("[ValidateBlock][%s] block id exceeds the target", block.ID()).WithObjectID(block.ID())
	}

	if block.PrevID == nil && !bytes.Equal(block.Bytes(), cm.params.GenesisBlock.Bytes()) {
		return errors.NewInvalidFormatError("[ValidateBlock][%s] block has no previd but is not the genesis block", block.ID()).WithObjectID(block.ID())
	}

	return nil
}

// validate runs the full validation of block, whose parent (if any) must have a stored state.
func (cm *ChainManager) validate(ctx context.Context, block *model.Block, peer p2p.PeerID) (err error) {
	start := gocore.CurrentTime()
	blockID := block.ID()

	defer func() {
		cm.stats.NewStat("validate").AddTime(start)
		prometheusBlockValidationValidateBlock.Observe(time.Since(start).Seconds())

		if err != nil {
			prometheusBlockValidationInvalid.WithLabelValues(errors.Name(err)).Inc()
			cm.logger.Warnf("[ValidateBlock][%s] rejected: %v", blockID, err)
		}
	}()

	if err = cm.checkHeader(block); err != nil {
		return err
	}

	var (
		state  *utxo.Set
		height uint64
	)

	if block.PrevID == nil {
		state = utxo.NewSet()
	} else {
		if state, height, err = cm.parentState(ctx, block); err != nil {
			return err
		}
	}

	txs, err := cm.fetchTransactions(ctx, block, peer)
	if err != nil {
		return err
	}

	var coinbase *model.Transaction

	for i, tx := range txs {
		if !tx.IsCoinbase() {
			continue
		}

		if i != 0 {
			return errors.NewBlockCoinbaseError("[ValidateBlock][%s] coinbase %s at index %d", blockID, tx.ID(), i).WithObjectID(blockID)
		}

		if cm.settings.BlockValidation.CheckCoinbaseHeight && *tx.Height != height {
			return errors.NewBlockCoinbaseError("[ValidateBlock][%s] coinbase height %d does not match block height %d", blockID, *tx.Height, height).WithObjectID(blockID)
		}

		coinbase = tx
	}

	var fees, carry uint64

	for i, tx := range txs {
		fee, err := cm.validator.Validate(ctx, tx, i, block, validator.WithPeer(peer))
		if err != nil {
			return err
		}

		if coinbase != nil && i > 0 {
			coinbaseID := coinbase.ID()

			for _, input := range tx.Inputs {
				if input.Outpoint.TxID == coinbaseID {
					return errors.NewTxOutpointError("[ValidateBlock][%s] transaction %s spends the coinbase of its own block", blockID, tx.ID()).WithObjectID(tx.ID())
				}
			}
		}

		if fees, carry = bits.Add64(fees, fee, 0); carry != 0 {
			return errors.NewTxConservationError("[ValidateBlock][%s] fees overflow", blockID).WithObjectID(blockID)
		}
	}

	if err = state.ApplyMultiple(txs); err != nil {
		return err
	}

	if coinbase != nil {
		value := coinbase.Outputs[0].Value
		if value > cm.params.BlockReward && value-cm.params.BlockReward > fees {
			return errors.NewBlockCoinbaseError("[ValidateBlock][%s] coinbase mints %d, more than reward %d plus fees %d", blockID, value, cm.params.BlockReward, fees).WithObjectID(blockID)
		}
	}

	stored, err := cm.objects.Has(ctx, blockID)
	if err != nil {
		return err
	}

	if !stored {
		if _, err = cm.objects.Put(ctx, block); err != nil {
			return err
		}
	}

	if err = cm.states.Put(ctx, blockID, height, state); err != nil {
		return err
	}

	cm.logger.Infof("[ValidateBlock][%s] valid at height %d with %d transactions", blockID, height, len(txs))

	if !stored {
		cm.notifyAccepted(ctx, block, peer)
	}

	cm.updateTip(ctx, block, height)

	return nil
}

// parentState loads the state after block's parent, checks the timestamps against the parent
// and returns the state together with the height of block.
func (cm *ChainManager) parentState(ctx context.Context, block *model.Block) (*utxo.Set, uint64, error) {
	blockID := block.ID()
	parentID := *block.PrevID

	state, err := cm.states.Get(ctx, parentID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, 0, errors.NewUnfindableObjectError("[ValidateBlock][%s] parent %s has not been validated", blockID, parentID, err).WithObjectID(blockID)
		}

		return nil, 0, err
	}

	parentHeight, err := cm.states.Height(ctx, parentID)
	if err != nil {
		return nil, 0, err
	}

	if parentHeight >= model.MaxSafeInteger {
		return nil, 0, errors.NewInvalidFormatError("[ValidateBlock][%s] height overflows", blockID).WithObjectID(blockID)
	}

	if cm.settings.BlockValidation.CheckTimestamps {
		obj, err := cm.objects.Get(ctx, parentID)
		if err != nil {
			return nil, 0, errors.NewProcessingError("[ValidateBlock][%s] failed to load parent %s", blockID, parentID, err)
		}

		parent, ok := obj.(*model.Block)
		if !ok {
			return nil, 0, errors.NewProcessingError("[ValidateBlock][%s] stored parent %s is not a block", blockID, parentID)
		}

		if block.Created <= parent.Created {
			return nil, 0, errors.NewBlockTimestampError("[ValidateBlock][%s] created %d is not later than parent's %d", blockID, block.Created, parent.Created).WithObjectID(blockID)
		}

		limit := cm.options.now().Add(cm.settings.BlockValidation.MaxClockDrift)
		if block.Created > uint64(limit.Unix()) {
			return nil, 0, errors.NewBlockTimestampError("[ValidateBlock][%s] created %d is in the future", blockID, block.Created).WithObjectID(blockID)
		}
	}

	return state, parentHeight + 1, nil
}

// fetchTransactions retrieves every transaction of block in txids order.
func (cm *ChainManager) fetchTransactions(ctx context.Context, block *model.Block, peer p2p.PeerID) ([]*model.Transaction, error) {
	blockID := block.ID()
	txs := make([]*model.Transaction, len(block.TxIDs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(cm.options.fetchLimit)

	for i, txID := range block.TxIDs {
		g.Go(func() error {
			obj, err := cm.objects.Retrieve(gCtx, txID, peer)
			if err != nil {
				if errors.IsValidationError(err) {
					return errors.NewUnfindableObjectError("[ValidateBlock][%s] transaction %s could not be found", blockID, txID, err).WithObjectID(blockID)
				}

				return err
			}

			tx, ok := obj.(*model.Transaction)
			if !ok {
				return errors.NewUnfindableObjectError("[ValidateBlock][%s] txid %s is a %s, not a transaction", blockID, txID, obj.Type()).WithObjectID(blockID)
			}

			txs[i] = tx

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return txs, nil
}

// updateTip makes block the tip if the fork choice prefers it and notifies the listeners.
func (cm *ChainManager) updateTip(ctx context.Context, block *model.Block, height uint64) {
	cm.notifyMu.Lock()
	defer cm.notifyMu.Unlock()

	cm.tipMu.Lock()

	if cm.tip != nil && !cm.forkChoice.Prefer(block, height, cm.tip, cm.tipHeight) {
		cm.tipMu.Unlock()
		return
	}

	cm.tip = block
	cm.tipHeight = height

	cm.tipMu.Unlock()

	blockID := block.ID()

	prometheusBlockValidationChainHeight.Set(float64(height))

	if err := cm.meta.Set(ctx, chainTipKey, []byte(blockID.String())); err != nil {
		cm.logger.Errorf("[ChainManager][%s] failed to persist chain tip: %v", blockID, err)
	}

	cm.logger.Infof("[ChainManager][%s] new chain tip at height %d", blockID, height)

	if len(cm.listeners) == 0 {
		return
	}

	state, err := cm.states.Get(ctx, blockID)
	if err != nil {
		cm.logger.Errorf("[ChainManager][%s] failed to load state of new tip: %v", blockID, err)
		return
	}

	for i, listener := range cm.listeners {
		if i == len(cm.listeners)-1 {
			listener(ctx, block, height, state)
		} else {
			listener(ctx, block, height, state.Copy())
		}
	}
}
