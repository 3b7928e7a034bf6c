package model

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/marabu-network/marabu/errors"
	jsoniter "github.com/json-iterator/go"
)

// Outpoint references one output of one transaction.
type Outpoint struct {
	TxID  ObjectID
	Index uint64
}

func (o Outpoint) String() string {
	return o.TxID.String() + ":" + uintToString(o.Index)
}

type Input struct {
	Outpoint Outpoint
	// Sig is nil while the transaction is being signed.
	Sig []byte
}

type Output struct {
	PubKey ed25519.PublicKey
	Value  uint64
}

// Transaction is either a coinbase (Height set, no inputs, one output) or a spending
// transaction (at least one input). It must not be modified once its id has been taken.
type Transaction struct {
	Height  *uint64
	Inputs  []*Input
	Outputs []*Output
}

// NewCoinbaseTransaction mints value to pubKey at the given block height.
func NewCoinbaseTransaction(height uint64, pubKey ed25519.PublicKey, value uint64) *Transaction {
	return &Transaction{
		Height:  &height,
		Outputs: []*Output{{PubKey: pubKey, Value: value}},
	}
}

func (tx *Transaction) IsCoinbase() bool {
	return tx.Height != nil && len(tx.Inputs) == 0
}

func (tx *Transaction) Type() string {
	return TypeTransaction
}

func (tx *Transaction) ID() ObjectID {
	return HashObjectBytes(tx.Bytes())
}

func (tx *Transaction) String() string {
	return tx.ID().String()
}

// Bytes returns the canonical encoding.
func (tx *Transaction) Bytes() []byte {
	return encodeCanonical(tx.jsonObject(true))
}

// UnsignedBytes returns the canonical encoding with every input signature set to null.
// This is the message each input signs.
func (tx *Transaction) UnsignedBytes() []byte {
	return encodeCanonical(tx.jsonObject(false))
}

// OutputSum returns the sum of the output values, failing on overflow.
func (tx *Transaction) OutputSum() (uint64, error) {
	var sum uint64

	for i, out := range tx.Outputs {
		next := sum + out.Value
		if next < sum || next > MaxSafeInteger {
			return 0, errors.NewInvalidFormatError("output %d of transaction %s overflows the value range", i, tx.ID())
		}

		sum = next
	}

	return sum, nil
}

// SignInput signs input i with key over the unsigned encoding.
func (tx *Transaction) SignInput(i int, key ed25519.PrivateKey) error {
	if i < 0 || i >= len(tx.Inputs) {
		return errors.NewInvalidArgumentError("input %d out of range", i)
	}

	tx.Inputs[i].Sig = ed25519.Sign(key, tx.UnsignedBytes())

	return nil
}

func (tx *Transaction) jsonObject(withSigs bool) jsonObject {
	outputs := make([]interface{}, 0, len(tx.Outputs))
	for _, out := range tx.Outputs {
		outputs = append(outputs, jsonObject{
			"pubkey": hex.EncodeToString(out.PubKey),
			"value":  out.Value,
		})
	}

	obj := jsonObject{
		"type":    TypeTransaction,
		"outputs": outputs,
	}

	if tx.Height != nil {
		obj["height"] = *tx.Height
	}

	if tx.Height == nil || len(tx.Inputs) > 0 {
		inputs := make([]interface{}, 0, len(tx.Inputs))

		for _, in := range tx.Inputs {
			var sig interface{}
			if withSigs && in.Sig != nil {
				sig = hex.EncodeToString(in.Sig)
			}

			inputs = append(inputs, jsonObject{
				"outpoint": jsonObject{
					"txid":  in.Outpoint.TxID.String(),
					"index": in.Outpoint.Index,
				},
				"sig": sig,
			})
		}

		obj["inputs"] = inputs
	}

	return obj
}

func newTransactionFromRaw(r rawObject) (*Transaction, error) {
	const what = "transaction"

	if err := r.onlyKeys(what, "type", "height", "inputs", "outputs"); err != nil {
		return nil, err
	}

	if err := r.requireKeys(what, "outputs"); err != nil {
		return nil, err
	}

	tx := &Transaction{}

	switch {
	case r.has("height") && r.has("inputs"):
		return nil, errors.NewInvalidFormatError("transaction has both height and inputs")
	case r.has("height"):
		height, err := r.uint(what, "height")
		if err != nil {
			return nil, err
		}

		tx.Height = &height
	case r.has("inputs"):
		items, err := r.array(what, "inputs")
		if err != nil {
			return nil, err
		}

		if len(items) == 0 {
			return nil, errors.NewInvalidFormatError("transaction has no inputs")
		}

		tx.Inputs = make([]*Input, 0, len(items))

		for _, item := range items {
			in, err := newInputFromRaw(item)
			if err != nil {
				return nil, err
			}

			tx.Inputs = append(tx.Inputs, in)
		}
	default:
		return nil, errors.NewInvalidFormatError("transaction has neither height nor inputs")
	}

	items, err := r.array(what, "outputs")
	if err != nil {
		return nil, err
	}

	if tx.Height != nil && len(items) != 1 {
		return nil, errors.NewInvalidFormatError("coinbase transaction must have exactly one output, has %d", len(items))
	}

	tx.Outputs = make([]*Output, 0, len(items))

	for _, item := range items {
		out, err := newOutputFromRaw(item)
		if err != nil {
			return nil, err
		}

		tx.Outputs = append(tx.Outputs, out)
	}

	if _, err = tx.OutputSum(); err != nil {
		return nil, err
	}

	return tx, nil
}

func newInputFromRaw(b jsoniter.RawMessage) (*Input, error) {
	const what = "input"

	r, err := decodeRawObject(b, what)
	if err != nil {
		return nil, err
	}

	if err = r.onlyKeys(what, "outpoint", "sig"); err != nil {
		return nil, err
	}

	if err = r.requireKeys(what, "outpoint", "sig"); err != nil {
		return nil, err
	}

	op, err := decodeRawObject(r["outpoint"], "outpoint")
	if err != nil {
		return nil, err
	}

	if err = op.onlyKeys("outpoint", "txid", "index"); err != nil {
		return nil, err
	}

	if err = op.requireKeys("outpoint", "txid", "index"); err != nil {
		return nil, err
	}

	txid, err := op.hex("outpoint", "txid", ObjectIDSize*2)
	if err != nil {
		return nil, err
	}

	in := &Input{}

	if in.Outpoint.TxID, err = NewObjectIDFromStr(txid); err != nil {
		return nil, err
	}

	if in.Outpoint.Index, err = op.uint("outpoint", "index"); err != nil {
		return nil, err
	}

	sig, err := r.hex(what, "sig", signatureHexSize)
	if err != nil {
		return nil, err
	}

	in.Sig, _ = hex.DecodeString(sig)

	return in, nil
}

func newOutputFromRaw(b jsoniter.RawMessage) (*Output, error) {
	const what = "output"

	r, err := decodeRawObject(b, what)
	if err != nil {
		return nil, err
	}

	if err = r.onlyKeys(what, "pubkey", "value"); err != nil {
		return nil, err
	}

	if err = r.requireKeys(what, "pubkey", "value"); err != nil {
		return nil, err
	}

	pubKey, err := r.hex(what, "pubkey", pubKeyHexSize)
	if err != nil {
		return nil, err
	}

	out := &Output{}
	out.PubKey, _ = hex.DecodeString(pubKey)

	if out.Value, err = r.uint(what, "value"); err != nil {
		return nil, err
	}

	return out, nil
}
