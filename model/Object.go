package model

import (
	"github.com/marabu-network/marabu/errors"
)

// Object is a decoded, format-checked network object: *Transaction or *Block.
type Object interface {
	ID() ObjectID
	Type() string
	Bytes() []byte
}

// NewObjectFromBytes decodes raw JSON into a Transaction or Block. Any deviation from the
// object format is reported as INVALID_FORMAT.
func NewObjectFromBytes(b []byte) (Object, error) {
	r, err := decodeRawObject(b, "object")
	if err != nil {
		return nil, err
	}

	if !r.has("type") {
		return nil, errors.NewInvalidFormatError("object has no type")
	}

	objectType, err := r.string("object", "type")
	if err != nil {
		return nil, err
	}

	switch objectType {
	case TypeTransaction:
		return newTransactionFromRaw(r)
	case TypeBlock:
		return newBlockFromRaw(r)
	default:
		return nil, errors.NewInvalidFormatError("unknown object type %q", objectType)
	}
}

// NewTransactionFromBytes decodes raw JSON that must be a transaction.
func NewTransactionFromBytes(b []byte) (*Transaction, error) {
	obj, err := NewObjectFromBytes(b)
	if err != nil {
		return nil, err
	}

	tx, ok := obj.(*Transaction)
	if !ok {
		return nil, errors.NewInvalidFormatError("object %s is a %s, not a transaction", obj.ID(), obj.Type())
	}

	return tx, nil
}

// NewBlockFromBytes decodes raw JSON that must be a block.
func NewBlockFromBytes(b []byte) (*Block, error) {
	obj, err := NewObjectFromBytes(b)
	if err != nil {
		return nil, err
	}

	block, ok := obj.(*Block)
	if !ok {
		return nil, errors.NewInvalidFormatError("object %s is a %s, not a block", obj.ID(), obj.Type())
	}

	return block, nil
}
