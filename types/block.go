package types

import "github.com/nervosnetwork/ckb-go/common"

// Block is a header plus body: uncles, transactions (cellbase first), and
// the proposal short ids the block is announcing (§3).
type Block struct {
	Header       *Header
	Uncles       []*Header
	Transactions []*Transaction
	Proposals    []ProposalShortID
}

func (b *Block) Hash() common.Hash { return b.Header.Hash() }

func (b *Block) Number() uint64 { return b.Header.Number }

// Cellbase returns the block's reward-issuing first transaction, or nil
// for a malformed/empty block (callers in the verifier reject that case
// explicitly rather than relying on this returning nil).
func (b *Block) Cellbase() *Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return b.Transactions[0]
}

// NonCellbaseTransactions returns transactions[1:], the set that must
// each have been proposed within the active window (§3 invariant).
func (b *Block) NonCellbaseTransactions() []*Transaction {
	if len(b.Transactions) <= 1 {
		return nil
	}
	return b.Transactions[1:]
}

// ComputedTransactionsRoot recomputes transactions_root from the body,
// for the non-contextual check in §4.4.
func (b *Block) ComputedTransactionsRoot() common.Hash {
	return TransactionsRoot(b.Transactions)
}

func (b *Block) ComputedProposalsHash() common.Hash {
	return ProposalsHash(b.Proposals)
}

func (b *Block) ComputedUnclesHash() common.Hash {
	return UnclesHash(b.Uncles)
}
