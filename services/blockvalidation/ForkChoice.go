package blockvalidation

import (
	"bytes"

	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/model"
)

// ForkChoice decides whether a newly validated block replaces the current chain tip.
type ForkChoice interface {
	Prefer(candidate *model.Block, candidateHeight uint64, tip *model.Block, tipHeight uint64) bool
}

// FirstSeenLongest switches only to a strictly higher block, so among chains of equal height
// the one validated first stays the tip.
type FirstSeenLongest struct{}

func (FirstSeenLongest) Prefer(_ *model.Block, candidateHeight uint64, _ *model.Block, tipHeight uint64) bool {
	return candidateHeight > tipHeight
}

// LowestIDLongest behaves like FirstSeenLongest but breaks height ties in favour of the
// block with the numerically lower id, so nodes seeing blocks in different orders agree.
type LowestIDLongest struct{}

func (LowestIDLongest) Prefer(candidate *model.Block, candidateHeight uint64, tip *model.Block, tipHeight uint64) bool {
	if candidateHeight != tipHeight {
		return candidateHeight > tipHeight
	}

	candidateID, tipID := candidate.ID(), tip.ID()

	return bytes.Compare(candidateID[:], tipID[:]) < 0
}

// NewForkChoice returns the rule configured under blockvalidation_forkChoice.
func NewForkChoice(name string) (ForkChoice, error) {
	switch name {
	case "", "first-seen":
		return FirstSeenLongest{}, nil
	case "lowest-id":
		return LowestIDLongest{}, nil
	default:
		return nil, errors.NewConfigurationError("unknown fork choice rule %q", name)
	}
}
