package verifier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/params"
	"github.com/nervosnetwork/ckb-go/types"
)

func minimalBlock(nonce byte) *types.Block {
	cellbase := &types.Transaction{
		Version:   params.TxVersion,
		Inputs:    []*types.CellInput{{PreviousCell: types.NullOutPoint}},
		Outputs:   []*types.CellOutput{{Capacity: 500 * params.ByteCapacityUnit, Lock: lockScript(1)}},
		Witnesses: [][]byte{{0x01}},
	}
	block := &types.Block{
		Header: &types.Header{
			Version:       0,
			CompactTarget: types.CompactTarget(0x20010000), // target 0x01 followed by zeros: roughly one hash in 256 meets it, hence findValidNonce
			Timestamp:     1000,
			Number:        1,
			Epoch:         types.PackEpoch(0, 0, 1000),
		},
		Transactions: []*types.Transaction{cellbase},
	}
	block.Header.Nonce[0] = nonce
	block.Header.TransactionsRoot = block.ComputedTransactionsRoot()
	block.Header.ProposalsHash = block.ComputedProposalsHash()
	block.Header.UnclesHash = block.ComputedUnclesHash()
	return block
}

func findValidNonce(block *types.Block) {
	for n := 0; n < 1<<16; n++ {
		block.Header.Nonce[0] = byte(n)
		block.Header.Nonce[1] = byte(n >> 8)
		if block.Header.MeetsTarget() {
			return
		}
	}
}

func TestVerifyNonContextualAcceptsWellFormedBlock(t *testing.T) {
	block := minimalBlock(0)
	findValidNonce(block)
	require.NoError(t, VerifyNonContextual(block))
}

func TestVerifyNonContextualRejectsBadTransactionsRoot(t *testing.T) {
	block := minimalBlock(0)
	block.Header.TransactionsRoot = common.Hash{0xff}
	findValidNonce(block)
	err := VerifyNonContextual(block)
	require.Error(t, err)
	var be *BlockError
	require.ErrorAs(t, err, &be)
	require.Equal(t, BlockErrMerkleMismatch, be.Kind)
	require.ErrorIs(t, be.Cause, ErrTransactionsRootMismatch)
}

func TestVerifyNonContextualRejectsMissingCellbase(t *testing.T) {
	block := minimalBlock(0)
	block.Transactions = nil
	block.Header.TransactionsRoot = block.ComputedTransactionsRoot()
	findValidNonce(block)
	err := VerifyNonContextual(block)
	require.Error(t, err)
	var be *BlockError
	require.ErrorAs(t, err, &be)
	require.Equal(t, BlockErrCellbaseMisuse, be.Kind)
}

func TestVerifyNonContextualRejectsDuplicateProposal(t *testing.T) {
	block := minimalBlock(0)
	var id types.ProposalShortID
	id[0] = 7
	block.Proposals = []types.ProposalShortID{id, id}
	block.Header.ProposalsHash = block.ComputedProposalsHash()
	findValidNonce(block)
	err := VerifyNonContextual(block)
	require.Error(t, err)
	var be *BlockError
	require.ErrorAs(t, err, &be)
	require.Equal(t, BlockErrDuplicateProposal, be.Kind)
}

func TestVerifyContextualRejectsUnknownParent(t *testing.T) {
	block := minimalBlock(0)
	findValidNonce(block)
	bctx := &BlockContext{ParentHeader: nil}
	err := VerifyContextual(block, bctx)
	require.Error(t, err)
	var be *BlockError
	require.ErrorAs(t, err, &be)
	require.Equal(t, BlockErrUnknownParent, be.Kind)
}

func TestVerifyContextualRejectsStaleTimestamp(t *testing.T) {
	block := minimalBlock(0)
	findValidNonce(block)
	parentHeader := &types.Header{Number: 0}
	block.Header.ParentHash = parentHeader.Hash()

	bctx := &BlockContext{
		ParentHeader:          parentHeader,
		MedianTimePast:        block.Header.Timestamp, // equal, so not strictly greater
		ExpectedEpoch:         block.Header.Epoch,
		ExpectedCompactTarget: block.Header.CompactTarget,
	}
	err := VerifyContextual(block, bctx)
	require.Error(t, err)
	var be *BlockError
	require.ErrorAs(t, err, &be)
	require.Equal(t, BlockErrTimestampTooOld, be.Kind)
}

func TestVerifyContextualAcceptsWellFormedBlock(t *testing.T) {
	block := minimalBlock(0)
	findValidNonce(block)
	parentHeader := &types.Header{Number: 0}
	block.Header.ParentHash = parentHeader.Hash()

	bctx := &BlockContext{
		ParentHeader:          parentHeader,
		MedianTimePast:        block.Header.Timestamp - 1,
		ExpectedEpoch:         block.Header.Epoch,
		ExpectedCompactTarget: block.Header.CompactTarget,
		ProposedShortIDs:      map[types.ProposalShortID]bool{},
	}
	require.NoError(t, VerifyContextual(block, bctx))
}

func TestVerifyContextualRejectsProposalOutsideWindow(t *testing.T) {
	in, _, _ := newSpendableInput(9, 0, 1000*params.ByteCapacityUnit)
	nonCellbase := &types.Transaction{
		Version: params.TxVersion,
		Inputs:  []*types.CellInput{in},
		Outputs: []*types.CellOutput{{Capacity: 900 * params.ByteCapacityUnit, Lock: lockScript(1)}},
	}

	block := minimalBlock(0)
	block.Transactions = append(block.Transactions, nonCellbase)
	block.Header.TransactionsRoot = block.ComputedTransactionsRoot()
	findValidNonce(block)

	parentHeader := &types.Header{Number: 0}
	block.Header.ParentHash = parentHeader.Hash()

	bctx := &BlockContext{
		ParentHeader:          parentHeader,
		MedianTimePast:        block.Header.Timestamp - 1,
		ExpectedEpoch:         block.Header.Epoch,
		ExpectedCompactTarget: block.Header.CompactTarget,
		ProposedShortIDs:      map[types.ProposalShortID]bool{},
	}
	err := VerifyContextual(block, bctx)
	require.Error(t, err)
	var be *BlockError
	require.ErrorAs(t, err, &be)
	require.Equal(t, BlockErrProposalWindowViolation, be.Kind)
}

func TestVerifyTransactionsParallelReturnsVerdictPerTransaction(t *testing.T) {
	block := minimalBlock(0)
	findValidNonce(block)

	v := NewTransactionVerifier(okVM(), nil)
	ctx := buildContext(nil, nil)

	verdicts, err := VerifyTransactionsParallel(block, v, func(i int) *Context { return ctx })
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
}
