package txpool

import (
	"time"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/types"
)

// state is which of the §4.5 logical sets an entry currently belongs to.
type state int

const (
	statePending state = iota
	stateGap
	stateProposed
)

func (s state) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateGap:
		return "gap"
	case stateProposed:
		return "proposed"
	default:
		return "unknown"
	}
}

// entry is one pooled transaction plus everything packaging and eviction
// need: its verdict, its in-pool parents (ancestor dependency chain),
// and when it was admitted (for the expiry sweep).
type entry struct {
	Tx      *types.Transaction
	Hash    common.Hash
	ShortID types.ProposalShortID

	Fee        uint64
	CyclesUsed uint64
	Size       uint64

	// Parents is the set of in-pool transaction hashes this entry's
	// inputs consume, the ancestor-before-descendant dependency
	// packaging must respect (§4.5).
	Parents map[common.Hash]bool

	// MissingInput is set only for a gap entry: the first input that did
	// not resolve at submission. No code in this package moves a gap
	// entry to pending.
	MissingInput *types.OutPoint

	State           state
	AddedAt         time.Time
	ProposedAtBlock uint64
}

func (e *entry) feeRatePerKB() uint64 {
	if e.Size == 0 {
		return 0
	}
	return e.Fee * 1000 / e.Size
}
