// Package chain implements the Chain Service (§4.6): the single writer
// of canonical state. All state-advancing operations — processing a
// new block, reorganizing onto a heavier branch, draining the orphan
// pool — serialize through one *Chain.
package chain

import (
	"errors"

	"github.com/nervosnetwork/ckb-go/common"
)

var (
	ErrUnknownParent   = errors.New("chain: block's parent is not known")
	ErrUnknownBlock    = errors.New("chain: block hash not found in header index")
	ErrNotAncestor     = errors.New("chain: no common ancestor found between branches")
	ErrGenesisMismatch = errors.New("chain: genesis block does not match stored genesis")
	ErrKnownInvalid    = errors.New("chain: block previously failed verification")
)

// ProcessError wraps a rejected block with its cause, the same typed
// shape verifier.TransactionError/BlockError and txpool.PoolError use
// throughout this module.
type ProcessError struct {
	BlockHash common.Hash
	Cause     error
}

func (e *ProcessError) Error() string {
	return "chain: " + e.BlockHash.Hex() + ": " + e.Cause.Error()
}
func (e *ProcessError) Unwrap() error { return e.Cause }
