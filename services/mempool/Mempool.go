// Package mempool keeps the transactions that are valid on top of the current chain tip.
//
// The mempool holds a UTXO set derived from the tip's state with every pending transaction
// applied, so a pending transaction's outputs can be spent by the next one. On a new tip the
// set is replaced by the tip's state and every transaction ever admitted is replayed in
// arrival order; those that no longer apply are left out.
package mempool

import (
	"context"
	"sync"
	"time"

	"github.com/dolthub/swiss"
	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/model"
	"github.com/marabu-network/marabu/services/validator"
	"github.com/marabu-network/marabu/settings"
	"github.com/marabu-network/marabu/stores/utxo"
	"github.com/marabu-network/marabu/ulogger"
	"github.com/ordishs/gocore"
)

type entry struct {
	tx  *model.Transaction
	fee uint64
}

type Mempool struct {
	logger    ulogger.Logger
	settings  *settings.Settings
	validator validator.Interface

	mu        sync.RWMutex
	tip       *model.Block
	tipHeight uint64
	snapshot  *utxo.Set
	pending   []*entry
	inPending *swiss.Map[model.ObjectID, struct{}]
	allSeen   []*entry
	seen      *swiss.Map[model.ObjectID, struct{}]
}

func New(logger ulogger.Logger, tSettings *settings.Settings, txValidator validator.Interface) *Mempool {
	initPrometheusMetrics()

	return &Mempool{
		logger:    logger,
		settings:  tSettings,
		validator: txValidator,
		inPending: swiss.NewMap[model.ObjectID, struct{}](1024),
		seen:      swiss.NewMap[model.ObjectID, struct{}](1024),
	}
}

// AddTransaction validates tx and admits it on top of the pending transactions.
func (m *Mempool) AddTransaction(ctx context.Context, tx *model.Transaction, opts ...validator.Option) error {
	if tx.IsCoinbase() {
		return m.AddValidated(tx, 0)
	}

	fee, err := m.validator.Validate(ctx, tx, 0, nil, opts...)
	if err != nil {
		prometheusMempoolRejected.WithLabelValues(errors.Name(err)).Inc()
		return err
	}

	return m.AddValidated(tx, fee)
}

// AddValidated admits a transaction the caller has already validated. A coinbase is
// accepted as a no-op: it only ever becomes spendable through a block.
func (m *Mempool) AddValidated(tx *model.Transaction, fee uint64) error {
	txID := tx.ID()

	if !m.settings.Mempool.Enabled {
		return nil
	}

	if tx.IsCoinbase() {
		m.logger.Debugf("[Mempool][%s] coinbase transactions are not pooled", txID)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshot == nil {
		return errors.NewProcessingError("[Mempool][%s] no chain tip yet", txID)
	}

	if m.inPending.Has(txID) {
		return nil
	}

	if err := m.snapshot.Apply(tx); err != nil {
		prometheusMempoolRejected.WithLabelValues(errors.Name(err)).Inc()
		return err
	}

	e := &entry{tx: tx, fee: fee}

	m.pending = append(m.pending, e)
	m.inPending.Put(txID, struct{}{})

	if !m.seen.Has(txID) {
		m.allSeen = append(m.allSeen, e)
		m.seen.Put(txID, struct{}{})
	}

	prometheusMempoolAdded.Inc()
	prometheusMempoolSize.Set(float64(len(m.pending)))

	m.logger.Debugf("[Mempool][%s] added with fee %d, %d pending", txID, fee, len(m.pending))

	return nil
}

// OnNewTip rebuilds the mempool on top of tip. state is the UTXO set after tip and becomes
// owned by the mempool. It has the signature of a chain manager tip listener.
func (m *Mempool) OnNewTip(_ context.Context, tip *model.Block, height uint64, state *utxo.Set) {
	start := gocore.CurrentTime()
	stat := gocore.NewStat("Mempool.OnNewTip")

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tip = tip
	m.tipHeight = height
	m.snapshot = state
	m.pending = m.pending[:0]
	m.inPending = swiss.NewMap[model.ObjectID, struct{}](uint32(len(m.allSeen)) + 1)

	dropped := 0

	for _, e := range m.allSeen {
		if err := m.snapshot.Apply(e.tx); err != nil {
			dropped++
			continue
		}

		m.pending = append(m.pending, e)
		m.inPending.Put(e.tx.ID(), struct{}{})
	}

	stat.AddTime(start)
	prometheusMempoolRederive.Observe(time.Since(start).Seconds())
	prometheusMempoolDropped.Add(float64(dropped))
	prometheusMempoolSize.Set(float64(len(m.pending)))

	m.logger.Infof("[Mempool][%s] rebuilt at height %d: %d pending, %d no longer apply", tip.ID(), height, len(m.pending), dropped)
}

// Pending returns the pending transactions in the order they were admitted.
func (m *Mempool) Pending() []*model.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txs := make([]*model.Transaction, 0, len(m.pending))
	for _, e := range m.pending {
		txs = append(txs, e.tx)
	}

	return txs
}

// TxIDs returns the ids of the pending transactions in admission order.
func (m *Mempool) TxIDs() []model.ObjectID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]model.ObjectID, 0, len(m.pending))
	for _, e := range m.pending {
		ids = append(ids, e.tx.ID())
	}

	return ids
}

// Fees returns the sum of the fees of the pending transactions.
func (m *Mempool) Fees() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var fees uint64
	for _, e := range m.pending {
		fees += e.fee
	}

	return fees
}

// Contains reports whether txID is pending.
func (m *Mempool) Contains(txID model.ObjectID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.inPending.Has(txID)
}

// Snapshot returns a copy of the UTXO set with every pending transaction applied, or nil
// before the first tip.
func (m *Mempool) Snapshot() *utxo.Set {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.snapshot == nil {
		return nil
	}

	return m.snapshot.Copy()
}

// Tip returns the block the mempool is built on.
func (m *Mempool) Tip() (*model.Block, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.tip, m.tipHeight
}
