package model

import (
	"math/big"

	"github.com/marabu-network/marabu/errors"
)

// Block is a Marabu block. Optional fields are omitted from the encoding when nil;
// an empty non-nil StudentIDs encodes as [].
type Block struct {
	Target     string
	Created    uint64
	Miner      *string
	Nonce      string
	Note       *string
	PrevID     *ObjectID
	StudentIDs []string
	TxIDs      []ObjectID
}

func (b *Block) Type() string {
	return TypeBlock
}

func (b *Block) ID() ObjectID {
	return HashObjectBytes(b.Bytes())
}

func (b *Block) String() string {
	return b.ID().String()
}

// IsGenesis reports whether the block claims to have no parent.
func (b *Block) IsGenesis() bool {
	return b.PrevID == nil
}

// Bytes returns the canonical encoding.
func (b *Block) Bytes() []byte {
	txids := make([]interface{}, 0, len(b.TxIDs))
	for _, txid := range b.TxIDs {
		txids = append(txids, txid.String())
	}

	obj := jsonObject{
		"type":    TypeBlock,
		"T":       b.Target,
		"created": b.Created,
		"nonce":   b.Nonce,
		"txids":   txids,
	}

	if b.PrevID == nil {
		obj["previd"] = nil
	} else {
		obj["previd"] = b.PrevID.String()
	}

	if b.Miner != nil {
		obj["miner"] = *b.Miner
	}

	if b.Note != nil {
		obj["note"] = *b.Note
	}

	if b.StudentIDs != nil {
		ids := make([]interface{}, 0, len(b.StudentIDs))
		for _, id := range b.StudentIDs {
			ids = append(ids, id)
		}

		obj["studentids"] = ids
	}

	return encodeCanonical(obj)
}

// CheckProofOfWork reports whether the block id does not exceed target.
func (b *Block) CheckProofOfWork(target *big.Int) bool {
	return CheckProofOfWork(b.ID(), target)
}

func newBlockFromRaw(r rawObject) (*Block, error) {
	const what = "block"

	if err := r.onlyKeys(what, "type", "T", "created", "miner", "nonce", "note", "previd", "studentids", "txids"); err != nil {
		return nil, err
	}

	if err := r.requireKeys(what, "T", "created", "nonce", "previd", "txids"); err != nil {
		return nil, err
	}

	var err error

	b := &Block{}

	if b.Target, err = r.hex(what, "T", ObjectIDSize*2); err != nil {
		return nil, err
	}

	if b.Created, err = r.uint(what, "created"); err != nil {
		return nil, err
	}

	if b.Nonce, err = r.hex(what, "nonce", ObjectIDSize*2); err != nil {
		return nil, err
	}

	if !r.isNull("previd") {
		prev, err := r.hex(what, "previd", ObjectIDSize*2)
		if err != nil {
			return nil, err
		}

		prevID, err := NewObjectIDFromStr(prev)
		if err != nil {
			return nil, err
		}

		b.PrevID = &prevID
	}

	if r.has("miner") {
		miner, err := r.text(what, "miner")
		if err != nil {
			return nil, err
		}

		b.Miner = &miner
	}

	if r.has("note") {
		note, err := r.text(what, "note")
		if err != nil {
			return nil, err
		}

		b.Note = &note
	}

	if r.has("studentids") {
		items, err := r.array(what, "studentids")
		if err != nil {
			return nil, err
		}

		if len(items) > maxStudentIDs {
			return nil, errors.NewInvalidFormatError("block has %d studentids, at most %d allowed", len(items), maxStudentIDs)
		}

		b.StudentIDs = make([]string, 0, len(items))

		for i := range items {
			item := rawObject{"studentid": items[i]}

			id, err := item.text(what, "studentid")
			if err != nil {
				return nil, err
			}

			b.StudentIDs = append(b.StudentIDs, id)
		}
	}

	items, err := r.array(what, "txids")
	if err != nil {
		return nil, err
	}

	b.TxIDs = make([]ObjectID, 0, len(items))

	for i := range items {
		item := rawObject{"txid": items[i]}

		s, err := item.hex(what, "txid", ObjectIDSize*2)
		if err != nil {
			return nil, err
		}

		txid, err := NewObjectIDFromStr(s)
		if err != nil {
			return nil, err
		}

		b.TxIDs = append(b.TxIDs, txid)
	}

	return b, nil
}
