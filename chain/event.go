package chain

import (
	"math/big"

	"github.com/nervosnetwork/ckb-go/types"
)

// TipEvent is published once per canonical tip change (§4.6 step 7,
// §5 "a new-tip notification published by Chain Service is totally
// ordered and monotonic in accumulated difficulty").
type TipEvent struct {
	Header          *types.Header
	TotalDifficulty *big.Int
	Attached        []*types.Block // blocks newly canonical, ancestor-to-tip order
	Detached        []*types.Block // blocks displaced, tip-to-ancestor order
}

// ProcessResult reports what Process did with a submitted block (§4.6
// process-block pipeline).
type ProcessResult int

const (
	// ResultOrphan: the block's parent isn't known yet; it was parked in
	// the orphan pool.
	ResultOrphan ProcessResult = iota
	// ResultStored: the block extends a known branch but that branch's
	// total difficulty does not exceed the current tip's.
	ResultStored
	// ResultExtended: the block became (or pulled in, via reorg) the new
	// canonical tip.
	ResultExtended
)

func (r ProcessResult) String() string {
	switch r {
	case ResultOrphan:
		return "orphan"
	case ResultStored:
		return "stored"
	case ResultExtended:
		return "extended"
	default:
		return "unknown"
	}
}

// PoolNotifier is the subset of txpool.Pool the chain service drives;
// kept as an interface so this package doesn't import txpool (the
// dependency runs the other way: cmd/ckbnode wires a *txpool.Pool in
// here, not the reverse).
type PoolNotifier interface {
	AttachBlock(block *types.Block)
	DetachBlock(block *types.Block)
}
