package blockvalidation

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marabu-network/marabu/chaincfg"
	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/model"
	"github.com/marabu-network/marabu/services/p2p"
	"github.com/marabu-network/marabu/services/validator"
	"github.com/marabu-network/marabu/settings"
	"github.com/marabu-network/marabu/stores/blob/memory"
	"github.com/marabu-network/marabu/stores/object"
	"github.com/marabu-network/marabu/stores/utxo"
	"github.com/marabu-network/marabu/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const peer p2p.PeerID = "peer1"

type countingStore struct {
	ObjectStore
	retrieves atomic.Int32
}

func (c *countingStore) Retrieve(ctx context.Context, id model.ObjectID, peer p2p.PeerID) (model.Object, error) {
	c.retrieves.Add(1)
	return c.ObjectStore.Retrieve(ctx, id, peer)
}

type harness struct {
	ctx      context.Context
	logger   ulogger.Logger
	settings *settings.Settings
	blobs    *memory.Memory
	objects  *object.Store
	counting *countingStore
	network  *p2p.Loopback
	states   *utxo.StateStore
	cm       *ChainManager
	genesis  *model.Block
	nonce    int
}

func testSettings() *settings.Settings {
	return &settings.Settings{
		ChainCfgParams: &chaincfg.RegressionNetParams,
		BlockValidation: settings.BlockValidationSettings{
			ForkChoice:          "first-seen",
			MaxClockDrift:       2 * time.Hour,
			CheckTimestamps:     true,
			CheckCoinbaseHeight: true,
		},
	}
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	return newHarnessWithSettings(t, testSettings(), opts...)
}

func newHarnessWithSettings(t *testing.T, tSettings *settings.Settings, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		ctx:      context.Background(),
		logger:   ulogger.NewTestingLogger(t, "WARN"),
		settings: tSettings,
		blobs:    memory.New(),
		network:  p2p.NewLoopback(ulogger.TestLogger{}),
		genesis:  chaincfg.RegressionNetParams.GenesisBlock,
	}

	var err error

	h.objects, err = object.New(h.ctx, ulogger.TestLogger{}, h.blobs, h.network, object.WithRetrieveTimeout(200*time.Millisecond))
	require.NoError(t, err)

	t.Cleanup(h.objects.Close)

	h.network.SetHandler(func(ctx context.Context, raw []byte, _ p2p.PeerID) error {
		obj, err := model.NewObjectFromBytes(raw)
		if err != nil {
			return err
		}

		_, err = h.objects.Put(ctx, obj)

		return err
	})

	h.counting = &countingStore{ObjectStore: h.objects}
	h.states = utxo.NewStateStore(ulogger.TestLogger{}, h.blobs)
	h.cm = h.newChainManager(t, opts...)

	require.NoError(t, h.cm.Init(h.ctx))

	return h
}

func (h *harness) newChainManager(t *testing.T, opts ...Option) *ChainManager {
	t.Helper()

	cm, err := New(h.logger.New("blockvalidation"), h.settings, h.counting, validator.New(ulogger.TestLogger{}, h.objects), h.states, h.blobs, opts...)
	require.NoError(t, err)

	return cm
}

func key(seed byte) ed25519.PrivateKey {
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed

	return ed25519.NewKeyFromSeed(s)
}

func pub(k ed25519.PrivateKey) ed25519.PublicKey {
	return k.Public().(ed25519.PublicKey)
}

func created(height uint64) uint64 {
	return chaincfg.RegressionNetParams.GenesisBlock.Created + 100*height
}

// block builds a child of parent carrying txs. The transactions are not stored.
func (h *harness) block(parent *model.Block, createdAt uint64, txs ...*model.Transaction) *model.Block {
	h.nonce++

	prev := parent.ID()
	b := &model.Block{
		Target:  chaincfg.RegressionNetParams.Target,
		Created: createdAt,
		Nonce:   fmt.Sprintf("%064x", h.nonce),
		PrevID:  &prev,
		TxIDs:   make([]model.ObjectID, 0, len(txs)),
	}

	for _, tx := range txs {
		b.TxIDs = append(b.TxIDs, tx.ID())
	}

	return b
}

func (h *harness) put(t *testing.T, objs ...model.Object) {
	t.Helper()

	for _, obj := range objs {
		_, err := h.objects.Put(h.ctx, obj)
		require.NoError(t, err)
	}
}

// mine stores txs and validates a child of parent carrying them.
func (h *harness) mine(t *testing.T, parent *model.Block, height uint64, txs ...*model.Transaction) *model.Block {
	t.Helper()

	for _, tx := range txs {
		h.put(t, tx)
	}

	b := h.block(parent, created(height), txs...)
	require.NoError(t, h.cm.ValidateBlock(h.ctx, b, p2p.NoPeer))
	h.put(t, b)

	return b
}

func coinbase(height uint64, k ed25519.PrivateKey, value uint64) *model.Transaction {
	return model.NewCoinbaseTransaction(height, pub(k), value)
}

func spend(t *testing.T, k ed25519.PrivateKey, outpoints []model.Outpoint, outputs ...*model.Output) *model.Transaction {
	t.Helper()

	tx := &model.Transaction{Outputs: outputs}
	for _, op := range outpoints {
		tx.Inputs = append(tx.Inputs, &model.Input{Outpoint: op})
	}

	for i := range tx.Inputs {
		require.NoError(t, tx.SignInput(i, k))
	}

	return tx
}

func requireKind(t *testing.T, err error, kind *errors.Error) {
	t.Helper()

	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "got %v", err)
	assert.Equal(t, kind.Code().String(), errors.Name(err))
}

func TestInit(t *testing.T) {
	h := newHarness(t)

	tip, height := h.cm.Tip()
	require.NotNil(t, tip)
	assert.Equal(t, h.genesis.ID(), tip.ID())
	assert.Zero(t, height)
	assert.Equal(t, FSMStateRunning, h.cm.CurrentState())

	state, err := h.cm.State(h.ctx, h.genesis.ID())
	require.NoError(t, err)
	assert.Zero(t, state.Len())

	obj, err := h.objects.Get(h.ctx, h.genesis.ID())
	require.NoError(t, err)
	assert.Equal(t, h.genesis.Bytes(), obj.Bytes())

	require.NoError(t, h.cm.Stop(h.ctx))
	assert.Equal(t, FSMStateIdle, h.cm.CurrentState())
}

func TestValidateBlock_Genesis(t *testing.T) {
	h := newHarness(t)

	// already validated by Init
	require.NoError(t, h.cm.ValidateBlock(h.ctx, h.genesis, p2p.NoPeer))

	fake := *h.genesis
	fake.Nonce = fmt.Sprintf("%064x", 1)

	requireKind(t, h.cm.ValidateBlock(h.ctx, &fake, p2p.NoPeer), errors.ErrInvalidFormat)
}

func TestValidateBlock_Coinbase(t *testing.T) {
	alice := key(1)

	t.Run("exactly the reward", func(t *testing.T) {
		h := newHarness(t)

		cb := coinbase(1, alice, chaincfg.BlockReward)
		b := h.mine(t, h.genesis, 1, cb)

		tip, height := h.cm.Tip()
		assert.Equal(t, b.ID(), tip.ID())
		assert.Equal(t, uint64(1), height)

		state, err := h.cm.State(h.ctx, b.ID())
		require.NoError(t, err)
		assert.True(t, state.Contains(model.Outpoint{TxID: cb.ID()}))
		assert.Equal(t, 1, state.Len())

		blockHeight, err := h.cm.HeightOf(h.ctx, b.ID())
		require.NoError(t, err)
		assert.Equal(t, uint64(1), blockHeight)
	})

	t.Run("reward plus one", func(t *testing.T) {
		h := newHarness(t)

		cb := coinbase(1, alice, chaincfg.BlockReward+1)
		h.put(t, cb)

		err := h.cm.ValidateBlock(h.ctx, h.block(h.genesis, created(1), cb), p2p.NoPeer)
		requireKind(t, err, errors.ErrBlockCoinbase)
		assert.Zero(t, h.cm.Height())
	})

	t.Run("reward plus fees", func(t *testing.T) {
		h := newHarness(t)

		cb1 := coinbase(1, alice, chaincfg.BlockReward)
		b1 := h.mine(t, h.genesis, 1, cb1)

		tx := spend(t, alice, []model.Outpoint{{TxID: cb1.ID()}}, &model.Output{PubKey: pub(key(2)), Value: chaincfg.BlockReward - 10})

		greedy := coinbase(2, alice, chaincfg.BlockReward+11)
		h.put(t, tx, greedy)
		requireKind(t, h.cm.ValidateBlock(h.ctx, h.block(b1, created(2), greedy, tx), p2p.NoPeer), errors.ErrBlockCoinbase)

		cb2 := coinbase(2, alice, chaincfg.BlockReward+10)
		b2 := h.mine(t, b1, 2, cb2, tx)

		state, err := h.cm.State(h.ctx, b2.ID())
		require.NoError(t, err)
		assert.False(t, state.Contains(model.Outpoint{TxID: cb1.ID()}))
		assert.True(t, state.Contains(model.Outpoint{TxID: cb2.ID()}))
		assert.True(t, state.Contains(model.Outpoint{TxID: tx.ID()}))
	})

	t.Run("not first", func(t *testing.T) {
		h := newHarness(t)

		cb1 := coinbase(1, alice, chaincfg.BlockReward)
		b1 := h.mine(t, h.genesis, 1, cb1)

		tx := spend(t, alice, []model.Outpoint{{TxID: cb1.ID()}}, &model.Output{PubKey: pub(alice), Value: 1})
		cb2 := coinbase(2, alice, chaincfg.BlockReward)
		h.put(t, tx, cb2)

		requireKind(t, h.cm.ValidateBlock(h.ctx, h.block(b1, created(2), tx, cb2), p2p.NoPeer), errors.ErrBlockCoinbase)
	})

	t.Run("wrong height", func(t *testing.T) {
		h := newHarness(t)

		cb := coinbase(5, alice, chaincfg.BlockReward)
		h.put(t, cb)

		requireKind(t, h.cm.ValidateBlock(h.ctx, h.block(h.genesis, created(1), cb), p2p.NoPeer), errors.ErrBlockCoinbase)
	})

	t.Run("spent in its own block", func(t *testing.T) {
		h := newHarness(t)

		cb := coinbase(1, alice, chaincfg.BlockReward)
		tx := spend(t, alice, []model.Outpoint{{TxID: cb.ID()}}, &model.Output{PubKey: pub(alice), Value: 1})
		h.put(t, cb, tx)

		requireKind(t, h.cm.ValidateBlock(h.ctx, h.block(h.genesis, created(1), cb, tx), p2p.NoPeer), errors.ErrTxOutpoint)
	})
}

func TestValidateBlock_OptionalChecks(t *testing.T) {
	tSettings := testSettings()
	tSettings.BlockValidation.CheckTimestamps = false
	tSettings.BlockValidation.CheckCoinbaseHeight = false

	h := newHarnessWithSettings(t, tSettings)

	cb := coinbase(7, key(1), chaincfg.BlockReward)
	h.put(t, cb)

	b1 := h.block(h.genesis, created(1), cb)
	require.NoError(t, h.cm.ValidateBlock(h.ctx, b1, p2p.NoPeer), "coinbase height is not checked")

	b2 := h.block(b1, b1.Created)
	require.NoError(t, h.cm.ValidateBlock(h.ctx, b2, p2p.NoPeer), "timestamps are not checked")

	assert.Equal(t, uint64(2), h.cm.Height())
}

func TestValidateBlock_StoresBlocks(t *testing.T) {
	h := newHarness(t)

	type accepted struct {
		id   model.ObjectID
		peer p2p.PeerID
	}

	var (
		mu   sync.Mutex
		seen []accepted
	)

	h.cm.AddBlockListener(func(_ context.Context, block *model.Block, from p2p.PeerID) {
		mu.Lock()
		defer mu.Unlock()

		seen = append(seen, accepted{id: block.ID(), peer: from})
	})

	chain := h.servedChain(2)

	// served blocks are stored by the harness when fetched; this one is not served
	top := h.block(chain[1], created(3))

	require.NoError(t, h.cm.ValidateBlock(h.ctx, top, peer))

	obj, err := h.objects.Get(h.ctx, top.ID())
	require.NoError(t, err)
	assert.Equal(t, top.Bytes(), obj.Bytes())

	assert.Equal(t, []accepted{{id: top.ID(), peer: peer}}, seen)

	// invalid blocks are not stored
	bad := coinbase(4, key(1), chaincfg.BlockReward+1)
	h.put(t, bad)

	rejected := h.block(top, created(4), bad)
	requireKind(t, h.cm.ValidateBlock(h.ctx, rejected, p2p.NoPeer), errors.ErrBlockCoinbase)

	_, err = h.objects.Get(h.ctx, rejected.ID())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Len(t, seen, 1)
}

func TestValidateBlock_DoubleSpend(t *testing.T) {
	alice, bob := key(1), key(2)

	t.Run("same outpoint twice in one transaction", func(t *testing.T) {
		h := newHarness(t)

		cb := coinbase(1, alice, chaincfg.BlockReward)
		b1 := h.mine(t, h.genesis, 1, cb)

		op := model.Outpoint{TxID: cb.ID()}
		tx := spend(t, alice, []model.Outpoint{op, op}, &model.Output{PubKey: pub(bob), Value: 1})
		h.put(t, tx)

		requireKind(t, h.cm.ValidateBlock(h.ctx, h.block(b1, created(2), tx), p2p.NoPeer), errors.ErrTxOutpoint)
	})

	t.Run("two transactions, parent state untouched", func(t *testing.T) {
		h := newHarness(t)

		cb := coinbase(1, alice, chaincfg.BlockReward)
		b1 := h.mine(t, h.genesis, 1, cb)

		op := model.Outpoint{TxID: cb.ID()}
		tx1 := spend(t, alice, []model.Outpoint{op}, &model.Output{PubKey: pub(bob), Value: 1})
		tx2 := spend(t, alice, []model.Outpoint{op}, &model.Output{PubKey: pub(bob), Value: 2})
		h.put(t, tx1, tx2)

		b2 := h.block(b1, created(2), tx1, tx2)
		requireKind(t, h.cm.ValidateBlock(h.ctx, b2, p2p.NoPeer), errors.ErrTxOutpoint)

		state, err := h.cm.State(h.ctx, b1.ID())
		require.NoError(t, err)
		assert.True(t, state.Contains(op))
		assert.Equal(t, 1, state.Len())

		_, err = h.cm.State(h.ctx, b2.ID())
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})

	t.Run("output spent in an earlier block", func(t *testing.T) {
		h := newHarness(t)

		cb := coinbase(1, alice, chaincfg.BlockReward)
		b1 := h.mine(t, h.genesis, 1, cb)

		op := model.Outpoint{TxID: cb.ID()}
		tx1 := spend(t, alice, []model.Outpoint{op}, &model.Output{PubKey: pub(bob), Value: 1})
		b2 := h.mine(t, b1, 2, tx1)

		tx2 := spend(t, alice, []model.Outpoint{op}, &model.Output{PubKey: pub(bob), Value: 2})
		h.put(t, tx2)

		requireKind(t, h.cm.ValidateBlock(h.ctx, h.block(b2, created(3), tx2), p2p.NoPeer), errors.ErrTxOutpoint)
	})
}

func TestValidateBlock_Transactions(t *testing.T) {
	alice := key(1)

	t.Run("missing transaction", func(t *testing.T) {
		h := newHarness(t)

		cb := coinbase(1, alice, chaincfg.BlockReward)
		b := h.block(h.genesis, created(1), cb)

		err := h.cm.ValidateBlock(h.ctx, b, p2p.NoPeer)
		requireKind(t, err, errors.ErrUnfindableObject)

		var tErr *errors.Error
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, b.ID().String(), tErr.ObjectID())
	})

	t.Run("fetched from peer", func(t *testing.T) {
		h := newHarness(t)

		cb := coinbase(1, alice, chaincfg.BlockReward)
		h.network.Serve(peer, cb)

		require.NoError(t, h.cm.ValidateBlock(h.ctx, h.block(h.genesis, created(1), cb), peer))
		assert.Equal(t, uint64(1), h.cm.Height())
	})

	t.Run("txid names a block", func(t *testing.T) {
		h := newHarness(t)

		b := h.block(h.genesis, created(1))
		b.TxIDs = []model.ObjectID{h.genesis.ID()}

		requireKind(t, h.cm.ValidateBlock(h.ctx, b, p2p.NoPeer), errors.ErrUnfindableObject)
	})

	t.Run("invalid signature", func(t *testing.T) {
		h := newHarness(t)

		cb := coinbase(1, alice, chaincfg.BlockReward)
		b1 := h.mine(t, h.genesis, 1, cb)

		tx := spend(t, key(9), []model.Outpoint{{TxID: cb.ID()}}, &model.Output{PubKey: pub(alice), Value: 1})
		h.put(t, tx)

		requireKind(t, h.cm.ValidateBlock(h.ctx, h.block(b1, created(2), tx), p2p.NoPeer), errors.ErrTxSignature)
	})
}

func TestValidateBlock_Header(t *testing.T) {
	t.Run("wrong target", func(t *testing.T) {
		h := newHarness(t)

		b := h.block(h.genesis, created(1))
		b.Target = "00000000abc00000000000000000000000000000000000000000000000000000"

		requireKind(t, h.cm.ValidateBlock(h.ctx, b, p2p.NoPeer), errors.ErrInvalidFormat)
	})

	t.Run("proof of work", func(t *testing.T) {
		h := newHarness(t)

		params := chaincfg.RegressionNetParams
		b := h.block(h.genesis, created(1))

		params.PowLimit = b.ID().Big()
		h.cm.params = &params
		require.NoError(t, h.cm.checkHeader(b))

		params.PowLimit = new(big.Int).Sub(b.ID().Big(), big.NewInt(1))
		requireKind(t, h.cm.checkHeader(b), errors.ErrBlockPow)
	})

	t.Run("timestamp not after parent", func(t *testing.T) {
		h := newHarness(t)

		b := h.block(h.genesis, h.genesis.Created)
		requireKind(t, h.cm.ValidateBlock(h.ctx, b, p2p.NoPeer), errors.ErrBlockTimestamp)
	})

	t.Run("timestamp in the future", func(t *testing.T) {
		now := time.Unix(int64(created(1)), 0)
		h := newHarness(t, WithClock(func() time.Time { return now }))

		tooLate := uint64(now.Add(2*time.Hour).Unix()) + 1
		requireKind(t, h.cm.ValidateBlock(h.ctx, h.block(h.genesis, tooLate), p2p.NoPeer), errors.ErrBlockTimestamp)

		require.NoError(t, h.cm.ValidateBlock(h.ctx, h.block(h.genesis, tooLate-1), p2p.NoPeer))
	})

	t.Run("unknown parent without peer", func(t *testing.T) {
		h := newHarness(t)

		orphanParent := h.block(h.genesis, created(1))
		b := h.block(orphanParent, created(2))

		requireKind(t, h.cm.ValidateBlock(h.ctx, b, p2p.NoPeer), errors.ErrUnfindableObject)
	})
}

// chain builds n blocks on top of genesis, each with a coinbase, served by peer only.
func (h *harness) servedChain(n int) []*model.Block {
	blocks := make([]*model.Block, 0, n)
	parent := h.genesis

	for i := 1; i <= n; i++ {
		cb := coinbase(uint64(i), key(byte(i)), chaincfg.BlockReward)
		b := h.block(parent, created(uint64(i)), cb)

		h.network.Serve(peer, cb)
		h.network.Serve(peer, b)

		blocks = append(blocks, b)
		parent = b
	}

	return blocks
}

func TestValidateBlock_Ancestors(t *testing.T) {
	t.Run("resolved from peer", func(t *testing.T) {
		h := newHarness(t)
		chain := h.servedChain(4)
		top := chain[len(chain)-1]

		require.NoError(t, h.cm.ValidateBlock(h.ctx, top, peer))

		tip, height := h.cm.Tip()
		assert.Equal(t, top.ID(), tip.ID())
		assert.Equal(t, uint64(4), height)
		assert.Equal(t, FSMStateRunning, h.cm.CurrentState())

		for i, b := range chain {
			blockHeight, err := h.cm.HeightOf(h.ctx, b.ID())
			require.NoError(t, err)
			assert.Equal(t, uint64(i+1), blockHeight)
		}

		state, err := h.cm.State(h.ctx, top.ID())
		require.NoError(t, err)
		assert.Equal(t, 4, state.Len())
	})

	t.Run("invalid ancestor", func(t *testing.T) {
		h := newHarness(t)

		bad := coinbase(1, key(1), chaincfg.BlockReward+1)
		b1 := h.block(h.genesis, created(1), bad)
		b2 := h.block(b1, created(2))
		h.network.Serve(peer, bad)
		h.network.Serve(peer, b1)

		err := h.cm.ValidateBlock(h.ctx, b2, peer)
		requireKind(t, err, errors.ErrUnfindableObject)
		assert.True(t, errors.Is(err, errors.ErrBlockCoinbase))

		var tErr *errors.Error
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, b2.ID().String(), tErr.ObjectID())
		assert.Zero(t, h.cm.Height())
	})

	t.Run("ancestor never delivered", func(t *testing.T) {
		h := newHarness(t)
		chain := h.servedChain(3)

		// the peer forgets the middle block
		h.network.ServeRaw(peer, chain[1].ID(), []byte(`{"type":"garbage"}`))

		requireKind(t, h.cm.ValidateBlock(h.ctx, chain[2], peer), errors.ErrUnfindableObject)
		assert.Equal(t, FSMStateRunning, h.cm.CurrentState())
	})

	t.Run("idempotent", func(t *testing.T) {
		h := newHarness(t)
		chain := h.servedChain(3)
		top := chain[len(chain)-1]

		require.NoError(t, h.cm.ValidateBlock(h.ctx, top, peer))

		retrieves := h.counting.retrieves.Load()
		assert.Positive(t, retrieves)

		require.NoError(t, h.cm.ValidateBlock(h.ctx, top, peer))
		assert.Equal(t, retrieves, h.counting.retrieves.Load())
	})

	t.Run("concurrent", func(t *testing.T) {
		h := newHarness(t)
		chain := h.servedChain(5)

		var wg sync.WaitGroup

		errs := make([]error, 8)

		for i := range errs {
			wg.Add(1)

			go func(i int) {
				defer wg.Done()
				errs[i] = h.cm.ValidateBlock(h.ctx, chain[len(chain)-1-i%3], peer)
			}(i)
		}

		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}

		assert.Equal(t, uint64(5), h.cm.Height())
		assert.Zero(t, h.cm.dedup.InFlight())
	})
}

func TestChainTip(t *testing.T) {
	t.Run("first seen wins ties", func(t *testing.T) {
		h := newHarness(t)

		a := h.mine(t, h.genesis, 1, coinbase(1, key(1), chaincfg.BlockReward))
		b := h.mine(t, h.genesis, 1, coinbase(1, key(2), chaincfg.BlockReward))

		tip, height := h.cm.Tip()
		assert.Equal(t, a.ID(), tip.ID())
		assert.Equal(t, uint64(1), height)

		c := h.mine(t, b, 2)

		tip, height = h.cm.Tip()
		assert.Equal(t, c.ID(), tip.ID())
		assert.Equal(t, uint64(2), height)
	})

	t.Run("listeners", func(t *testing.T) {
		h := newHarness(t)

		var (
			heights []uint64
			sizes   []int
		)

		h.cm.AddTipListener(func(_ context.Context, _ *model.Block, height uint64, state *utxo.Set) {
			heights = append(heights, height)
			sizes = append(sizes, state.Len())
		})

		b1 := h.mine(t, h.genesis, 1, coinbase(1, key(1), chaincfg.BlockReward))
		h.mine(t, b1, 2, coinbase(2, key(1), chaincfg.BlockReward))
		h.mine(t, h.genesis, 1, coinbase(1, key(3), chaincfg.BlockReward))

		assert.Equal(t, []uint64{1, 2}, heights)
		assert.Equal(t, []int{1, 2}, sizes)
	})

	t.Run("restored after restart", func(t *testing.T) {
		h := newHarness(t)

		b1 := h.mine(t, h.genesis, 1, coinbase(1, key(1), chaincfg.BlockReward))
		b2 := h.mine(t, b1, 2)

		h.states = utxo.NewStateStore(ulogger.TestLogger{}, h.blobs)
		restarted := h.newChainManager(t)
		require.NoError(t, restarted.Init(h.ctx))

		tip, height := restarted.Tip()
		assert.Equal(t, b2.ID(), tip.ID())
		assert.Equal(t, uint64(2), height)
	})
}

func TestForkChoice(t *testing.T) {
	a := &model.Block{Target: chaincfg.RegressionNetParams.Target, Nonce: fmt.Sprintf("%064x", 1), TxIDs: []model.ObjectID{}}
	b := &model.Block{Target: chaincfg.RegressionNetParams.Target, Nonce: fmt.Sprintf("%064x", 2), TxIDs: []model.ObjectID{}}

	low, high := a, b
	if a.ID().Big().Cmp(b.ID().Big()) > 0 {
		low, high = b, a
	}

	first, err := NewForkChoice("first-seen")
	require.NoError(t, err)
	assert.True(t, first.Prefer(a, 2, b, 1))
	assert.False(t, first.Prefer(low, 1, high, 1))
	assert.False(t, first.Prefer(a, 1, b, 2))

	lowest, err := NewForkChoice("lowest-id")
	require.NoError(t, err)
	assert.True(t, lowest.Prefer(low, 1, high, 1))
	assert.False(t, lowest.Prefer(high, 1, low, 1))
	assert.True(t, lowest.Prefer(high, 2, low, 1))

	_, err = NewForkChoice("most-work")
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
