// Package validator checks transactions on their own: input resolution, outpoint indexes,
// signatures and value conservation. Membership of the spent outputs in a particular UTXO
// set is checked when the transaction is applied to that set.
package validator

import (
	"context"
	"crypto/ed25519"
	"math/bits"
	"time"

	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/model"
	"github.com/marabu-network/marabu/services/p2p"
	"github.com/marabu-network/marabu/ulogger"
	"github.com/ordishs/gocore"
)

type Validator struct {
	logger  ulogger.Logger
	objects ObjectGetter
}

func New(logger ulogger.Logger, objects ObjectGetter) *Validator {
	initPrometheusMetrics()

	return &Validator{
		logger:  logger,
		objects: objects,
	}
}

func (v *Validator) Validate(ctx context.Context, tx *model.Transaction, indexInBlock int, block *model.Block, opts ...Option) (fee uint64, err error) {
	start := gocore.CurrentTime()
	stat := gocore.NewStat("Validator.Validate")

	defer func() {
		stat.AddTime(start)
		prometheusTransactionValidate.Observe(time.Since(start).Seconds())

		if err != nil {
			prometheusInvalidTransactions.WithLabelValues(errors.Name(err)).Inc()
		}
	}()

	options := ProcessOptions(opts...)
	txID := tx.ID()

	if tx.IsCoinbase() {
		if block != nil && indexInBlock != 0 {
			return 0, errors.NewBlockCoinbaseError("[Validate][%s] coinbase transaction at index %d of block %s", txID, indexInBlock, block.ID()).WithObjectID(block.ID())
		}

		return 0, nil
	}

	prometheusTransactionInputs.Observe(float64(len(tx.Inputs)))

	var (
		inputSum uint64
		carry    uint64
		pubKeys  = make([]ed25519.PublicKey, 0, len(tx.Inputs))
	)

	for i, input := range tx.Inputs {
		output, err := v.resolveOutput(ctx, txID, i, input.Outpoint, options.peer)
		if err != nil {
			return 0, err
		}

		pubKeys = append(pubKeys, output.PubKey)

		inputSum, carry = bits.Add64(inputSum, output.Value, 0)
		if carry != 0 || inputSum > model.MaxSafeInteger {
			return 0, errors.NewTxConservationError("[Validate][%s] input values overflow", txID).WithObjectID(txID)
		}
	}

	if err = v.verifySignatures(tx, txID, pubKeys); err != nil {
		return 0, err
	}

	outputSum, err := tx.OutputSum()
	if err != nil {
		return 0, errors.NewTxConservationError("[Validate][%s] output values overflow", txID, err).WithObjectID(txID)
	}

	if outputSum > inputSum {
		return 0, errors.NewTxConservationError("[Validate][%s] outputs sum to %d but inputs only to %d", txID, outputSum, inputSum).WithObjectID(txID)
	}

	return inputSum - outputSum, nil
}

// resolveOutput finds the output an input spends, fetching the referenced transaction from
// peer when it is not stored.
func (v *Validator) resolveOutput(ctx context.Context, txID model.ObjectID, i int, outpoint model.Outpoint, peer p2p.PeerID) (*model.Output, error) {
	var (
		obj model.Object
		err error
	)

	if peer == p2p.NoPeer {
		obj, err = v.objects.Get(ctx, outpoint.TxID)
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewUnknownObjectError("[Validate][%s] input %d spends unknown transaction %s", txID, i, outpoint.TxID, err).WithObjectID(txID)
		}
	} else {
		obj, err = v.objects.Retrieve(ctx, outpoint.TxID, peer)
	}

	if err != nil {
		if errors.Is(err, errors.ErrUnfindableObject) {
			return nil, errors.NewUnfindableObjectError("[Validate][%s] input %d spends transaction %s which could not be found", txID, i, outpoint.TxID, err).WithObjectID(txID)
		}

		return nil, errors.NewProcessingError("[Validate][%s] failed to resolve input %d", txID, i, err)
	}

	parent, ok := obj.(*model.Transaction)
	if !ok {
		return nil, errors.NewTxOutpointError("[Validate][%s] input %d references %s, which is a %s", txID, i, outpoint.TxID, obj.Type()).WithObjectID(txID)
	}

	if outpoint.Index >= uint64(len(parent.Outputs)) {
		return nil, errors.NewTxOutpointError("[Validate][%s] input %d references output %d of %s, which has %d outputs", txID, i, outpoint.Index, outpoint.TxID, len(parent.Outputs)).WithObjectID(txID)
	}

	return parent.Outputs[outpoint.Index], nil
}

// verifySignatures checks every input signature against the one unsigned message using the
// public key of the output that input spends.
func (v *Validator) verifySignatures(tx *model.Transaction, txID model.ObjectID, pubKeys []ed25519.PublicKey) error {
	start := time.Now()
	defer func() {
		prometheusTransactionVerifySigs.Observe(time.Since(start).Seconds())
	}()

	message := tx.UnsignedBytes()

	for i, input := range tx.Inputs {
		if len(pubKeys[i]) != ed25519.PublicKeySize || len(input.Sig) != ed25519.SignatureSize {
			return errors.NewTxSignatureError("[Validate][%s] input %d has a malformed key or signature", txID, i).WithObjectID(txID)
		}

		if !ed25519.Verify(pubKeys[i], message, input.Sig) {
			return errors.NewTxSignatureError("[Validate][%s] signature of input %d does not verify", txID, i).WithObjectID(txID)
		}
	}

	return nil
}
