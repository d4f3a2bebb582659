package verifier

import (
	"runtime"
	"sync"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/params"
	"github.com/nervosnetwork/ckb-go/types"
)

// BlockContext is the resolved view of chain state a block's contextual
// checks run against: the chain service computes these from its own
// index (epoch progression, difficulty retarget, the active proposal
// window) and hands the verifier a flat snapshot, the same separation
// of concerns the transaction Context already draws between "what a
// verdict needs" and "how the chain service derives it".
type BlockContext struct {
	ParentHeader *types.Header
	Headers      HeaderSource

	// MedianTimePast is the median of the MedianTimeBlockCount block
	// timestamps ending at ParentHeader (§4.4, §9).
	MedianTimePast uint64

	ExpectedEpoch         types.EpochNumberWithFraction
	ExpectedCompactTarget types.CompactTarget

	// KnownAncestorOrUncle answers whether h is reachable as either an
	// ancestor header or a previously-included uncle, the pool an
	// incoming uncle's parent_hash must resolve against (§4.4).
	KnownAncestorOrUncle func(h common.Hash) bool

	// ProposedShortIDs is the set of proposal short ids any ancestor or
	// uncle within [N-ProposalWindowFarthest, N-ProposalWindowClosest]
	// has announced; every non-cellbase tx in the block must appear
	// here (§3, §4.4).
	ProposedShortIDs map[types.ProposalShortID]bool
}

// VerifyNonContextual runs the §4.4 checks that need nothing but the
// block itself: PoW, the three merkle-root fields, version ceiling,
// cellbase shape, duplicate proposals, and block size.
func VerifyNonContextual(block *types.Block) error {
	blockHash := block.Hash()
	wrap := func(kind BlockErrorKind, cause error) error {
		return &BlockError{Kind: kind, BlockHash: blockHash, Cause: cause}
	}

	if !block.Header.MeetsTarget() {
		return wrap(BlockErrPoW, ErrPoWNotMet)
	}
	if block.Header.Version > params.BlockVersionMax {
		return wrap(BlockErrPoW, ErrBlockVersionTooNew)
	}
	if block.ComputedTransactionsRoot() != block.Header.TransactionsRoot {
		return wrap(BlockErrMerkleMismatch, ErrTransactionsRootMismatch)
	}
	if block.ComputedProposalsHash() != block.Header.ProposalsHash {
		return wrap(BlockErrMerkleMismatch, ErrProposalsHashMismatch)
	}
	if block.ComputedUnclesHash() != block.Header.UnclesHash {
		return wrap(BlockErrMerkleMismatch, ErrUnclesHashMismatch)
	}
	if len(block.Uncles) > params.MaxUnclesPerBlock {
		return wrap(BlockErrUncleViolation, ErrTooManyUncles)
	}

	seen := make(map[types.ProposalShortID]bool, len(block.Proposals))
	for _, p := range block.Proposals {
		if seen[p] {
			return wrap(BlockErrDuplicateProposal, ErrDuplicateProposal)
		}
		seen[p] = true
	}

	cellbase := block.Cellbase()
	if cellbase == nil || !cellbase.IsCellbase() {
		return wrap(BlockErrCellbaseMisuse, ErrCellbaseWitnessShape)
	}
	if len(cellbase.Outputs) != 1 || len(cellbase.Witnesses) != 1 {
		return wrap(BlockErrCellbaseMisuse, ErrCellbaseWitnessShape)
	}
	for _, tx := range block.NonCellbaseTransactions() {
		if tx.IsCellbase() {
			return wrap(BlockErrCellbaseMisuse, ErrCellbaseWitnessShape)
		}
	}

	if blockSerializedSize(block) > params.BlockMaxBytes {
		return wrap(BlockErrOversizedBlock, ErrOversizedBlock)
	}

	return nil
}

func blockSerializedSize(block *types.Block) uint64 {
	var size uint64 = 4 + 4 + 8 + 8 + 8 + 32*4 + 32 + 16 // Header's fixed-width fields
	for _, u := range block.Uncles {
		size += 4 + 4 + 8 + 8 + 8 + 32*4 + 32 + 16
	}
	for _, tx := range block.Transactions {
		size += tx.SerializedSize()
	}
	size += uint64(len(block.Proposals) * 10)
	return size
}

// VerifyContextual runs the §4.4 checks that depend on the rest of the
// chain: parent linkage, timestamp monotonicity, epoch/difficulty
// progression, uncle eligibility, and the proposal window.
func VerifyContextual(block *types.Block, bctx *BlockContext) error {
	blockHash := block.Hash()
	wrap := func(kind BlockErrorKind, cause error) error {
		return &BlockError{Kind: kind, BlockHash: blockHash, Cause: cause}
	}

	if bctx.ParentHeader == nil {
		return wrap(BlockErrUnknownParent, ErrUnknownParent)
	}
	if block.Header.ParentHash != bctx.ParentHeader.Hash() {
		return wrap(BlockErrUnknownParent, ErrUnknownParent)
	}
	if block.Header.Number != bctx.ParentHeader.Number+1 {
		return wrap(BlockErrUnknownParent, ErrUnknownParent)
	}
	if block.Header.Timestamp <= bctx.MedianTimePast {
		return wrap(BlockErrTimestampTooOld, ErrTimestampTooOld)
	}
	if block.Header.Epoch != bctx.ExpectedEpoch {
		return wrap(BlockErrEpochMismatch, ErrEpochMismatch)
	}
	if block.Header.CompactTarget != bctx.ExpectedCompactTarget {
		return wrap(BlockErrDifficultyMismatch, ErrDifficultyMismatch)
	}

	if err := verifyUncles(block, bctx); err != nil {
		return wrap(BlockErrUncleViolation, err)
	}

	for _, tx := range block.NonCellbaseTransactions() {
		if !bctx.ProposedShortIDs[tx.ShortID()] {
			return wrap(BlockErrProposalWindowViolation, ErrProposalWindow)
		}
	}

	return nil
}

func verifyUncles(block *types.Block, bctx *BlockContext) error {
	seen := make(map[common.Hash]bool, len(block.Uncles))
	for _, uncle := range block.Uncles {
		h := uncle.Hash()
		if seen[h] {
			return ErrUncleReused
		}
		seen[h] = true

		if uncle.Epoch.Number() != block.Header.Epoch.Number() {
			return ErrUncleWrongEpoch
		}
		if uncle.Number >= block.Header.Number {
			return ErrUncleNumberTooHigh
		}
		if bctx.KnownAncestorOrUncle != nil && !bctx.KnownAncestorOrUncle(uncle.ParentHash) {
			return ErrUncleParentUnknown
		}
	}
	return nil
}

// VerifyTransactionsParallel runs txVerifier.Verify over every
// transaction in block concurrently (a worker pool sized to the host's
// core count, §4.4/§5), then checks the summed cycle usage against
// params.BlockCycleLimit. resolveCtx builds the per-transaction
// resolution Context (intra-block outputs visible to later
// transactions, per §4.3 stage 2) for transaction index i.
func VerifyTransactionsParallel(block *types.Block, txVerifier *TransactionVerifier, resolveCtx func(index int) *Context) ([]*Verdict, error) {
	n := len(block.Transactions)
	verdicts := make([]*Verdict, n)
	errs := make([]error, n)

	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				tx := block.Transactions[i]
				isCellbase := i == 0
				ctx := resolveCtx(i)
				v, err := txVerifier.Verify(tx, isCellbase, ctx, params.TxCycleLimit)
				verdicts[i] = v
				errs[i] = err
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var total uint64
	for _, v := range verdicts {
		total += v.CyclesUsed
	}
	if total > params.BlockCycleLimit {
		return nil, &BlockError{Kind: BlockErrCyclesOverLimit, BlockHash: block.Hash(), Cause: ErrCyclesOverLimit}
	}

	return verdicts, nil
}
