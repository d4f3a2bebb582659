// Package txpool implements the Tx Pool (§4.5): the pending/gap/proposed
// staging area a transaction passes through between being submitted and
// being packaged into a block, plus a short-lived cache of recently
// committed entries for reorg replay.
package txpool

import (
	"errors"

	"github.com/nervosnetwork/ckb-go/common"
)

var (
	ErrKnownTransaction   = errors.New("txpool: transaction already known")
	ErrFeeRateTooLow      = errors.New("txpool: fee rate below configured minimum")
	ErrPoolSizeExceeded   = errors.New("txpool: pool byte-size cap exceeded")
	ErrPoolCyclesExceeded = errors.New("txpool: pool cycle-budget cap exceeded")
	ErrTooManyAncestors   = errors.New("txpool: in-pool ancestor chain too long")
	ErrUnknownTransaction = errors.New("txpool: transaction not in pool")
)

// PoolError wraps a rejected submission with the underlying cause,
// mirroring the typed-error shape verifier.TransactionError already
// establishes for this repository (§7).
type PoolError struct {
	TxHash common.Hash
	Cause  error
}

func (e *PoolError) Error() string { return "txpool: " + e.TxHash.Hex() + ": " + e.Cause.Error() }
func (e *PoolError) Unwrap() error { return e.Cause }
