package strategy

import (
	"fmt"
	"math/rand/v2"
)

// #region registry

// IDs lists the known strategies in display order.
func IDs() []ID {
	return []ID{RandomWalk, CellScan, LatticeScan, Annealed}
}

// New returns the strategy registered under id.
func New(id ID, p Params) (Strategy, error) {
	switch id {
	case RandomWalk:
		return newRandomWalk(p), nil
	case CellScan:
		return &cellScan{params: p}, nil
	case LatticeScan:
		return &latticeScan{params: p}, nil
	case Annealed:
		return newAnnealed(p), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (known: %v)", id, IDs())
	}
}

// #endregion

// #region rand

// NewTickRand returns a fresh source for one tick and the seed it was built from, so the
// draw can be replayed from a persisted state.
func NewTickRand() (Rand, uint64) {
	seed := rand.Uint64()
	return NewSeededRand(seed), seed
}

// NewSeededRand returns a deterministic source for seed.
func NewSeededRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// #endregion
