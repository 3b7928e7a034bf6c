package daemon

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/marabu-network/marabu/chaincfg"
	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/model"
	"github.com/marabu-network/marabu/services/p2p"
	"github.com/marabu-network/marabu/settings"
	"github.com/marabu-network/marabu/stores/blob/memory"
	"github.com/marabu-network/marabu/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const peer p2p.PeerID = "peer1"

var miner = key(1)

func key(seed byte) ed25519.PrivateKey {
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed

	return ed25519.NewKeyFromSeed(s)
}

func pub(k ed25519.PrivateKey) ed25519.PublicKey {
	return k.Public().(ed25519.PublicKey)
}

func testSettings() *settings.Settings {
	return &settings.Settings{
		ChainCfgParams: &chaincfg.RegressionNetParams,
		ObjectStore: settings.ObjectStoreSettings{
			RetrieveTimeout: 500 * time.Millisecond,
			CacheTTL:        time.Minute,
			CacheSize:       100,
			BloomCapacity:   1000,
		},
		BlockValidation: settings.BlockValidationSettings{
			ForkChoice:      "first-seen",
			MaxClockDrift:   2 * time.Hour,
			CheckTimestamps: true,
		},
		Mempool: settings.MempoolSettings{
			Enabled:           true,
			RejectNegativeFee: true,
		},
	}
}

type node struct {
	ctx     context.Context
	blobs   *memory.Memory
	network *p2p.Loopback
	daemon  *Daemon
}

func startNode(t *testing.T, blobs *memory.Memory) *node {
	t.Helper()

	logger := ulogger.NewTestingLogger(t, "WARN")

	n := &node{
		ctx:     context.Background(),
		blobs:   blobs,
		network: p2p.NewLoopback(logger.New("p2p")),
	}

	n.daemon = New(testSettings(),
		WithLoggerFactory(func(service string) ulogger.Logger { return logger.New(service) }),
		WithNetwork(n.network),
		WithBlobStore(blobs),
	)

	require.NoError(t, n.daemon.Start(n.ctx))

	t.Cleanup(func() {
		n.network.Wait()
		_ = n.daemon.Stop(n.ctx)
	})

	return n
}

func (n *node) handle(obj model.Object, from p2p.PeerID) error {
	return n.daemon.HandleObject(n.ctx, obj.Bytes(), from)
}

func child(parent *model.Block, nonce int, txs ...*model.Transaction) *model.Block {
	prev := parent.ID()
	b := &model.Block{
		Target:  chaincfg.RegressionNetParams.Target,
		Created: parent.Created + 100,
		Nonce:   fmt.Sprintf("%064x", nonce),
		PrevID:  &prev,
		TxIDs:   []model.ObjectID{},
	}

	for _, tx := range txs {
		b.TxIDs = append(b.TxIDs, tx.ID())
	}

	return b
}

func spend(t *testing.T, k ed25519.PrivateKey, op model.Outpoint, outputs ...*model.Output) *model.Transaction {
	t.Helper()

	tx := &model.Transaction{
		Inputs:  []*model.Input{{Outpoint: op}},
		Outputs: outputs,
	}
	require.NoError(t, tx.SignInput(0, k))

	return tx
}

func sources(n *node) map[model.ObjectID]p2p.PeerID {
	m := make(map[model.ObjectID]p2p.PeerID)
	for _, a := range n.network.Announcements() {
		m[a.ID] = a.Source
	}

	return m
}

func announced(n *node) []model.ObjectID {
	ids := make([]model.ObjectID, 0)
	for _, a := range n.network.Announcements() {
		ids = append(ids, a.ID)
	}

	return ids
}

func TestStart(t *testing.T) {
	n := startNode(t, memory.New())
	genesis := chaincfg.RegressionNetParams.GenesisBlock

	tip, height := n.daemon.ChainTip()
	require.NotNil(t, tip)
	assert.Equal(t, genesis.ID(), tip.ID())
	assert.Zero(t, height)
	assert.Empty(t, n.daemon.MempoolTxIDs())

	obj, err := n.daemon.GetObject(n.ctx, genesis.ID())
	require.NoError(t, err)
	assert.Equal(t, genesis.Bytes(), obj.Bytes())
}

func TestGetObject_Unknown(t *testing.T) {
	n := startNode(t, memory.New())

	id := model.HashObjectBytes([]byte("nothing"))

	_, err := n.daemon.GetObject(n.ctx, id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownObject))
	assert.Equal(t, "UNKNOWN_OBJECT", errors.Name(err))
}

func TestHandleObject_InvalidFormat(t *testing.T) {
	n := startNode(t, memory.New())

	err := n.daemon.HandleObject(n.ctx, []byte(`{"type":"transaction"`), peer)
	require.Error(t, err)
	assert.Equal(t, "INVALID_FORMAT", errors.Name(err))
	assert.Empty(t, n.network.Announcements())
}

func TestHandleObject_Flow(t *testing.T) {
	n := startNode(t, memory.New())
	genesis := chaincfg.RegressionNetParams.GenesisBlock

	cb1 := model.NewCoinbaseTransaction(1, pub(miner), 50)
	require.NoError(t, n.handle(cb1, p2p.NoPeer))
	assert.Empty(t, n.daemon.MempoolTxIDs(), "a loose coinbase does not enter the mempool")

	b1 := child(genesis, 1, cb1)
	require.NoError(t, n.handle(b1, p2p.NoPeer))

	tip, height := n.daemon.ChainTip()
	assert.Equal(t, b1.ID(), tip.ID())
	assert.Equal(t, uint64(1), height)

	tx := spend(t, miner, model.Outpoint{TxID: cb1.ID(), Index: 0}, &model.Output{PubKey: pub(key(2)), Value: 40})
	require.NoError(t, n.handle(tx, peer))
	assert.Equal(t, []model.ObjectID{tx.ID()}, n.daemon.MempoolTxIDs())

	// the coinbase of the next block is only held by the peer announcing the block
	cb2 := model.NewCoinbaseTransaction(2, pub(miner), chaincfg.RegressionNetParams.BlockReward+10)
	n.network.Serve(peer, cb2)

	b2 := child(b1, 2, cb2, tx)
	require.NoError(t, n.handle(b2, peer))

	tip, height = n.daemon.ChainTip()
	assert.Equal(t, b2.ID(), tip.ID())
	assert.Equal(t, uint64(2), height)
	assert.Empty(t, n.daemon.MempoolTxIDs(), "confirmed transactions leave the mempool")

	n.network.Wait()

	_, err := n.daemon.GetObject(n.ctx, cb2.ID())
	require.NoError(t, err)

	// cb2 is announced by its delivery, which runs alongside the validation of b2
	assert.Equal(t, []model.ObjectID{cb1.ID(), b1.ID(), tx.ID()}, announced(n)[:3])
	assert.ElementsMatch(t, []model.ObjectID{cb2.ID(), b2.ID()}, announced(n)[3:])
	assert.Equal(t, peer, sources(n)[b2.ID()])
	assert.Equal(t, peer, sources(n)[cb2.ID()])

	// seen before: nothing is validated or announced again
	require.NoError(t, n.handle(b2, peer))
	require.NoError(t, n.handle(tx, peer))
	assert.Len(t, n.network.Announcements(), 5)
}

func TestHandleObject_FetchedObjects(t *testing.T) {
	n := startNode(t, memory.New())
	genesis := chaincfg.RegressionNetParams.GenesisBlock

	cb1 := model.NewCoinbaseTransaction(1, pub(miner), 50)
	require.NoError(t, n.handle(cb1, p2p.NoPeer))

	b1 := child(genesis, 1, cb1)
	require.NoError(t, n.handle(b1, p2p.NoPeer))

	op := model.Outpoint{TxID: cb1.ID(), Index: 0}

	t.Run("invalid transaction of a block", func(t *testing.T) {
		forged := spend(t, key(9), op, &model.Output{PubKey: pub(key(9)), Value: 1})
		n.network.Serve(peer, forged)

		err := n.handle(child(b1, 2, forged), peer)
		require.Error(t, err)
		assert.Equal(t, "INVALID_TX_SIGNATURE", errors.Name(err))

		n.network.Wait()

		_, err = n.daemon.GetObject(n.ctx, forged.ID())
		assert.True(t, errors.Is(err, errors.ErrUnknownObject), "an invalid transaction is never stored")

		err = n.handle(forged, peer)
		require.Error(t, err)
		assert.Equal(t, "INVALID_TX_SIGNATURE", errors.Name(err))
		assert.NotContains(t, announced(n), forged.ID())
	})

	t.Run("valid transaction of a block", func(t *testing.T) {
		tx := spend(t, miner, op, &model.Output{PubKey: pub(key(2)), Value: 50})
		n.network.Serve(peer, tx)

		b2 := child(b1, 3, tx)
		require.NoError(t, n.handle(b2, peer))

		n.network.Wait()

		assert.Equal(t, peer, sources(n)[tx.ID()])
		assert.Equal(t, peer, sources(n)[b2.ID()])
		assert.Empty(t, n.daemon.MempoolTxIDs())

		_, height := n.daemon.ChainTip()
		assert.Equal(t, uint64(2), height)

		parent := child(b2, 4)
		n.network.Serve(peer, parent)

		top := child(parent, 5)
		require.NoError(t, n.handle(top, peer))

		n.network.Wait()

		tip, height := n.daemon.ChainTip()
		assert.Equal(t, top.ID(), tip.ID())
		assert.Equal(t, uint64(4), height)
		assert.Equal(t, peer, sources(n)[parent.ID()], "a fetched ancestor is announced once validated")

		_, err := n.daemon.GetObject(n.ctx, parent.ID())
		require.NoError(t, err)
	})
}

func TestHandleObject_InputFromPeer(t *testing.T) {
	n := startNode(t, memory.New())

	parent := model.NewCoinbaseTransaction(3, pub(miner), 50)
	n.network.Serve(peer, parent)

	tx := spend(t, miner, model.Outpoint{TxID: parent.ID(), Index: 0}, &model.Output{PubKey: pub(key(2)), Value: 50})
	require.NoError(t, n.handle(tx, peer))

	n.network.Wait()

	_, err := n.daemon.GetObject(n.ctx, parent.ID())
	require.NoError(t, err)

	assert.Equal(t, peer, sources(n)[parent.ID()])
	assert.Equal(t, peer, sources(n)[tx.ID()])

	// the coinbase is not confirmed, so its spend stays out of the mempool
	assert.Empty(t, n.daemon.MempoolTxIDs())
}

func TestHandleObject_Rejected(t *testing.T) {
	n := startNode(t, memory.New())
	genesis := chaincfg.RegressionNetParams.GenesisBlock

	t.Run("unknown input", func(t *testing.T) {
		missing := model.NewCoinbaseTransaction(7, pub(miner), 50)
		tx := spend(t, miner, model.Outpoint{TxID: missing.ID(), Index: 0}, &model.Output{PubKey: pub(miner), Value: 1})

		err := n.handle(tx, p2p.NoPeer)
		require.Error(t, err)
		assert.Equal(t, "UNKNOWN_OBJECT", errors.Name(err))

		err = n.handle(tx, peer)
		require.Error(t, err)
		assert.Equal(t, "UNFINDABLE_OBJECT", errors.Name(err))

		_, err = n.daemon.GetObject(n.ctx, tx.ID())
		assert.True(t, errors.Is(err, errors.ErrUnknownObject))
	})

	t.Run("wrong target", func(t *testing.T) {
		b := child(genesis, 3)
		b.Target = chaincfg.MainNetParams.Target

		err := n.handle(b, peer)
		require.Error(t, err)
		assert.Equal(t, "INVALID_FORMAT", errors.Name(err))

		_, err = n.daemon.GetObject(n.ctx, b.ID())
		assert.True(t, errors.Is(err, errors.ErrUnknownObject))
	})

	t.Run("missing transaction", func(t *testing.T) {
		cb := model.NewCoinbaseTransaction(1, pub(miner), 50)
		b := child(genesis, 4, cb)

		err := n.handle(b, peer)
		require.Error(t, err)
		assert.Equal(t, "UNFINDABLE_OBJECT", errors.Name(err))
	})

	t.Run("excessive coinbase", func(t *testing.T) {
		cb := model.NewCoinbaseTransaction(1, pub(miner), chaincfg.RegressionNetParams.BlockReward+1)
		require.NoError(t, n.handle(cb, p2p.NoPeer))

		err := n.handle(child(genesis, 5, cb), peer)
		require.Error(t, err)
		assert.Equal(t, "INVALID_BLOCK_COINBASE", errors.Name(err))
	})

	tip, height := n.daemon.ChainTip()
	assert.Equal(t, genesis.ID(), tip.ID())
	assert.Zero(t, height)
}

func TestRestart(t *testing.T) {
	blobs := memory.New()
	genesis := chaincfg.RegressionNetParams.GenesisBlock

	first := startNode(t, blobs)

	cb := model.NewCoinbaseTransaction(1, pub(miner), 50)
	require.NoError(t, first.handle(cb, p2p.NoPeer))

	b1 := child(genesis, 1, cb)
	require.NoError(t, first.handle(b1, p2p.NoPeer))

	first.network.Wait()
	require.NoError(t, first.daemon.Stop(first.ctx))

	second := startNode(t, blobs)

	tip, height := second.daemon.ChainTip()
	assert.Equal(t, b1.ID(), tip.ID())
	assert.Equal(t, uint64(1), height)

	obj, err := second.daemon.GetObject(second.ctx, cb.ID())
	require.NoError(t, err)
	assert.Equal(t, cb.Bytes(), obj.Bytes())
}

func TestStart_NegativeFeesAllowed(t *testing.T) {
	tSettings := testSettings()
	tSettings.Mempool.RejectNegativeFee = false

	d := New(tSettings,
		WithLoggerFactory(func(string) ulogger.Logger { return ulogger.TestLogger{} }),
		WithBlobStore(memory.New()),
	)

	err := d.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestHealthHandler(t *testing.T) {
	d := New(testSettings(), WithLoggerFactory(func(string) ulogger.Logger { return ulogger.TestLogger{} }))

	status, _, err := d.HealthHandler(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	n := startNode(t, memory.New())

	status, details, err := n.daemon.HealthHandler(n.ctx, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, details, "RUNNING")

	status, _, err = n.daemon.HealthHandler(n.ctx, true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	require.NoError(t, n.daemon.chain.Stop(n.ctx))

	status, _, err = n.daemon.HealthHandler(n.ctx, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _, err = n.daemon.HealthHandler(n.ctx, true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}
