// Package utxo holds the set of spendable outpoints and the per-block snapshots of it.
package utxo

import (
	"bytes"
	"sort"

	"github.com/dolthub/swiss"
	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/model"
)

const defaultCapacity = 1024

// Set is a set of spendable outpoints. A Set is owned by one chain state and is not safe
// for concurrent use; take a Copy to speculate on it.
type Set struct {
	m *swiss.Map[model.Outpoint, struct{}]
}

func NewSet() *Set {
	return newSetWithCapacity(defaultCapacity)
}

func newSetWithCapacity(capacity int) *Set {
	if capacity < defaultCapacity {
		capacity = defaultCapacity
	}

	//nolint:gosec // capacity is a small positive count
	return &Set{m: swiss.NewMap[model.Outpoint, struct{}](uint32(capacity))}
}

// NewSetFromOutpoints builds a set holding exactly the given outpoints.
func NewSetFromOutpoints(outpoints []model.Outpoint) *Set {
	s := newSetWithCapacity(len(outpoints))
	for _, op := range outpoints {
		s.m.Put(op, struct{}{})
	}

	return s
}

func (s *Set) Contains(op model.Outpoint) bool {
	return s.m.Has(op)
}

func (s *Set) Len() int {
	return s.m.Count()
}

// Copy returns an independent set with the same members.
func (s *Set) Copy() *Set {
	c := newSetWithCapacity(s.m.Count())

	s.m.Iter(func(op model.Outpoint, _ struct{}) bool {
		c.m.Put(op, struct{}{})
		return false
	})

	return c
}

// Outpoints returns the members ordered by txid, then index.
func (s *Set) Outpoints() []model.Outpoint {
	outpoints := make([]model.Outpoint, 0, s.m.Count())

	s.m.Iter(func(op model.Outpoint, _ struct{}) bool {
		outpoints = append(outpoints, op)
		return false
	})

	sort.Slice(outpoints, func(i, j int) bool {
		if c := bytes.Compare(outpoints[i].TxID[:], outpoints[j].TxID[:]); c != 0 {
			return c < 0
		}

		return outpoints[i].Index < outpoints[j].Index
	})

	return outpoints
}

// Apply spends the inputs of tx and adds its outputs. A coinbase only adds its output.
// Either every change is made or, on error, none.
func (s *Set) Apply(tx *model.Transaction) error {
	_, err := s.apply(tx)
	return err
}

type undoEntry struct {
	outpoint model.Outpoint
	added    bool
}

func (s *Set) apply(tx *model.Transaction) ([]undoEntry, error) {
	txID := tx.ID()

	if !tx.IsCoinbase() {
		seen := make(map[model.Outpoint]struct{}, len(tx.Inputs))

		for i, in := range tx.Inputs {
			if _, ok := seen[in.Outpoint]; ok {
				return nil, errors.NewTxOutpointError("input %d of transaction %s spends outpoint %s more than once", i, txID, in.Outpoint).WithObjectID(txID)
			}

			if !s.m.Has(in.Outpoint) {
				return nil, errors.NewTxOutpointError("input %d of transaction %s spends outpoint %s which is not in the UTXO set", i, txID, in.Outpoint).WithObjectID(txID)
			}

			seen[in.Outpoint] = struct{}{}
		}
	}

	undo := make([]undoEntry, 0, len(tx.Inputs)+len(tx.Outputs))

	for _, in := range tx.Inputs {
		s.m.Delete(in.Outpoint)
		undo = append(undo, undoEntry{outpoint: in.Outpoint})
	}

	for i := range tx.Outputs {
		op := model.Outpoint{TxID: txID, Index: uint64(i)}
		if s.m.Has(op) {
			continue
		}

		s.m.Put(op, struct{}{})
		undo = append(undo, undoEntry{outpoint: op, added: true})
	}

	return undo, nil
}

func (s *Set) rollback(undo []undoEntry) {
	for i := len(undo) - 1; i >= 0; i-- {
		if undo[i].added {
			s.m.Delete(undo[i].outpoint)
		} else {
			s.m.Put(undo[i].outpoint, struct{}{})
		}
	}
}

// ApplyMultiple applies txs in order. If any transaction fails the set is left exactly as
// it was and the error names the failing transaction.
func (s *Set) ApplyMultiple(txs []*model.Transaction) error {
	journal := make([]undoEntry, 0, len(txs)*2)

	for _, tx := range txs {
		undo, err := s.apply(tx)
		if err != nil {
			s.rollback(journal)
			return err
		}

		journal = append(journal, undo...)
	}

	return nil
}
