package model

import (
	"encoding/hex"
	"math/big"

	"github.com/marabu-network/marabu/errors"
	"golang.org/x/crypto/blake2s"
)

// ObjectIDSize is the size of an object id in bytes.
const ObjectIDSize = blake2s.Size

// ObjectID is the blake2s-256 digest of an object's canonical encoding.
type ObjectID [ObjectIDSize]byte

// HashObjectBytes returns the id of the given canonical encoding.
func HashObjectBytes(b []byte) ObjectID {
	return blake2s.Sum256(b)
}

// NewObjectIDFromStr parses a 64 character lowercase hex string.
func NewObjectIDFromStr(s string) (ObjectID, error) {
	var id ObjectID

	if !IsHex(s, ObjectIDSize*2) {
		return id, errors.NewInvalidFormatError("object id %q is not %d lowercase hex characters", s, ObjectIDSize*2)
	}

	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, errors.NewInvalidFormatError("object id %q is not valid hex", s, err)
	}

	return id, nil
}

func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

func (id ObjectID) IsZero() bool {
	return id == ObjectID{}
}

// Big interprets the id as a big-endian unsigned integer.
func (id ObjectID) Big() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// IsHex reports whether s is exactly n lowercase hex characters.
func IsHex(s string, n int) bool {
	if len(s) != n {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}

// CheckProofOfWork reports whether id, read as a big unsigned integer, does not exceed target.
func CheckProofOfWork(id ObjectID, target *big.Int) bool {
	return id.Big().Cmp(target) <= 0
}
