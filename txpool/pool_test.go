package txpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/ckb-go/cellset"
	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/params"
	"github.com/nervosnetwork/ckb-go/script"
	"github.com/nervosnetwork/ckb-go/types"
	"github.com/nervosnetwork/ckb-go/verifier"
)

type fakeCells struct {
	byOutPoint map[types.OutPoint]*cellset.Record
}

func (f *fakeCells) Get(op types.OutPoint) (*cellset.Record, bool) {
	r, ok := f.byOutPoint[op]
	return r, ok
}

func (f *fakeCells) CellData(op types.OutPoint) ([]byte, bool) { return nil, true }

type fakeHeaders struct{}

func (fakeHeaders) HeaderByHash(h common.Hash) (*types.Header, bool)  { return nil, false }
func (fakeHeaders) HeaderByNumber(n uint64) (*types.Header, bool)     { return nil, false }

type fakeVMAlwaysOK struct{}

func (fakeVMAlwaysOK) Run(s *types.Script, api script.HostAPI, cycleBudget uint64) (int8, uint64, error) {
	return 0, 100, nil
}

func lockScript(tag byte) *types.Script {
	var codeHash common.Hash
	codeHash[0] = tag
	return &types.Script{CodeHash: codeHash, HashType: types.HashTypeData}
}

type fakeResolver struct {
	cells map[types.OutPoint]*cellset.Record
	tip   uint64
}

func (r *fakeResolver) Resolve() (*verifier.Context, uint64, func(), error) {
	ctx := &verifier.Context{
		Cells:             &fakeCells{byOutPoint: r.cells},
		Data:              &fakeCells{byOutPoint: r.cells},
		Headers:           fakeHeaders{},
		TargetBlockNumber: r.tip + 1,
	}
	return ctx, r.tip, func() {}, nil
}

func newSpendableInput(txHash byte, index uint32, capacity uint64) (*types.CellInput, types.OutPoint, *cellset.Record) {
	op := types.OutPoint{Index: index}
	op.TxHash[0] = txHash
	rec := &cellset.Record{Output: &types.CellOutput{Capacity: capacity, Lock: lockScript(1)}}
	return &types.CellInput{PreviousCell: op}, op, rec
}

func newPool(t *testing.T, cfg Config, cells map[types.OutPoint]*cellset.Record) *Pool {
	t.Helper()
	txv := verifier.NewTransactionVerifier(script.NewEngine(fakeVMAlwaysOK{}), nil)
	p, err := New(cfg, txv, &fakeResolver{cells: cells})
	require.NoError(t, err)
	t.Cleanup(p.Stop)
	return p
}

func testConfig() Config {
	cfg := DefaultConfig
	cfg.MinFeeRate = 1
	cfg.ReapInterval = time.Second
	return cfg
}

func TestSubmitAdmitsResolvableTransaction(t *testing.T) {
	in, op, rec := newSpendableInput(1, 0, 1000*params.ByteCapacityUnit)
	tx := &types.Transaction{
		Version: params.TxVersion,
		Inputs:  []*types.CellInput{in},
		Outputs: []*types.CellOutput{{Capacity: 900 * params.ByteCapacityUnit, Lock: lockScript(1)}},
	}
	p := newPool(t, testConfig(), map[types.OutPoint]*cellset.Record{op: rec})

	err := p.Submit(tx)
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())
	require.NotNil(t, p.Get(tx.Hash()))
}

func TestSubmitRejectsKnownTransaction(t *testing.T) {
	in, op, rec := newSpendableInput(2, 0, 1000*params.ByteCapacityUnit)
	tx := &types.Transaction{
		Version: params.TxVersion,
		Inputs:  []*types.CellInput{in},
		Outputs: []*types.CellOutput{{Capacity: 900 * params.ByteCapacityUnit, Lock: lockScript(1)}},
	}
	p := newPool(t, testConfig(), map[types.OutPoint]*cellset.Record{op: rec})

	require.NoError(t, p.Submit(tx))
	err := p.Submit(tx)
	require.Error(t, err)
	var poolErr *PoolError
	require.ErrorAs(t, err, &poolErr)
	require.ErrorIs(t, poolErr.Cause, ErrKnownTransaction)
}

func TestSubmitClassifiesUnresolvedInputAsGap(t *testing.T) {
	in, _, _ := newSpendableInput(3, 0, 1000*params.ByteCapacityUnit)
	tx := &types.Transaction{
		Version: params.TxVersion,
		Inputs:  []*types.CellInput{in},
		Outputs: []*types.CellOutput{{Capacity: 900 * params.ByteCapacityUnit, Lock: lockScript(1)}},
	}
	p := newPool(t, testConfig(), nil)

	require.NoError(t, p.Submit(tx))
	require.Equal(t, 1, p.Len())

	p.mu.RLock()
	e, ok := p.gap[tx.Hash()]
	p.mu.RUnlock()
	require.True(t, ok)
	require.Equal(t, stateGap, e.State)
	require.NotNil(t, e.MissingInput)
}

func TestSubmitRejectsFeeRateBelowMinimum(t *testing.T) {
	in, op, rec := newSpendableInput(4, 0, 1000*params.ByteCapacityUnit)
	tx := &types.Transaction{
		Version: params.TxVersion,
		Inputs:  []*types.CellInput{in},
		Outputs: []*types.CellOutput{{Capacity: 1000 * params.ByteCapacityUnit, Lock: lockScript(1)}},
	}
	cfg := testConfig()
	cfg.MinFeeRate = 1_000_000_000_000
	p := newPool(t, cfg, map[types.OutPoint]*cellset.Record{op: rec})

	err := p.Submit(tx)
	require.Error(t, err)
	var poolErr *PoolError
	require.ErrorAs(t, err, &poolErr)
	require.ErrorIs(t, poolErr.Cause, ErrFeeRateTooLow)
	require.Equal(t, 0, p.Len())
}

func TestSubmitRejectsWhenPoolSizeCapExceeded(t *testing.T) {
	in, op, rec := newSpendableInput(5, 0, 1000*params.ByteCapacityUnit)
	tx := &types.Transaction{
		Version: params.TxVersion,
		Inputs:  []*types.CellInput{in},
		Outputs: []*types.CellOutput{{Capacity: 900 * params.ByteCapacityUnit, Lock: lockScript(1)}},
	}
	cfg := testConfig()
	cfg.MaxPoolSizeBytes = 1
	p := newPool(t, cfg, map[types.OutPoint]*cellset.Record{op: rec})

	err := p.Submit(tx)
	require.Error(t, err)
	var poolErr *PoolError
	require.ErrorAs(t, err, &poolErr)
	require.ErrorIs(t, poolErr.Cause, ErrPoolSizeExceeded)
}

func TestAncestorChainLengthWalksTransitiveParents(t *testing.T) {
	p := newPool(t, testConfig(), nil)

	root := &entry{Hash: common.Hash{0x01}, Parents: map[common.Hash]bool{}}
	mid := &entry{Hash: common.Hash{0x02}, Parents: map[common.Hash]bool{root.Hash: true}}
	leaf := &entry{Hash: common.Hash{0x03}, Parents: map[common.Hash]bool{mid.Hash: true}}

	p.mu.Lock()
	p.pending[root.Hash] = root
	p.pending[mid.Hash] = mid
	p.mu.Unlock()

	require.Equal(t, 2, p.ancestorChainLengthLocked(leaf))
}

func TestPackageOrdersByFeeRateAndRespectsAncestors(t *testing.T) {
	p := newPool(t, testConfig(), nil)

	parent := &entry{
		Tx:      &types.Transaction{Version: params.TxVersion},
		Hash:    common.Hash{0x10},
		Size:    100,
		Fee:     100, // low fee rate
		Parents: map[common.Hash]bool{},
	}
	child := &entry{
		Tx:      &types.Transaction{Version: params.TxVersion, Inputs: []*types.CellInput{{PreviousCell: types.OutPoint{TxHash: parent.Hash}}}},
		Hash:    common.Hash{0x11},
		Size:    100,
		Fee:     100_000, // high fee rate, but depends on parent
		Parents: map[common.Hash]bool{parent.Hash: true},
	}
	independent := &entry{
		Tx:      &types.Transaction{Version: params.TxVersion, Outputs: []*types.CellOutput{{}}},
		Hash:    common.Hash{0x12},
		Size:    100,
		Fee:     50_000,
		Parents: map[common.Hash]bool{},
	}

	p.mu.Lock()
	p.proposed[parent.Hash] = parent
	p.proposed[child.Hash] = child
	p.proposed[independent.Hash] = independent
	p.mu.Unlock()

	packaged := p.Package(1_000_000, 1_000_000, 10)
	require.Len(t, packaged, 3)
	// child has the highest fee rate but must not precede its parent.
	order := make(map[common.Hash]int)
	for i, tx := range packaged {
		order[tx.Hash()] = i
	}
	require.Less(t, order[parent.Tx.Hash()], order[child.Tx.Hash()])
}

func TestPackageStopsAtByteLimit(t *testing.T) {
	p := newPool(t, testConfig(), nil)

	a := &entry{Tx: &types.Transaction{Version: params.TxVersion}, Hash: common.Hash{0x20}, Size: 600, Fee: 600, Parents: map[common.Hash]bool{}}
	b := &entry{Tx: &types.Transaction{Version: params.TxVersion, Outputs: []*types.CellOutput{{}}}, Hash: common.Hash{0x21}, Size: 600, Fee: 600, Parents: map[common.Hash]bool{}}

	p.mu.Lock()
	p.proposed[a.Hash] = a
	p.proposed[b.Hash] = b
	p.mu.Unlock()

	packaged := p.Package(1000, 1_000_000, 10)
	require.Len(t, packaged, 1)
}

func TestAttachBlockEvictsIncludedAndPromotesProposed(t *testing.T) {
	in, op, rec := newSpendableInput(6, 0, 1000*params.ByteCapacityUnit)
	tx := &types.Transaction{
		Version: params.TxVersion,
		Inputs:  []*types.CellInput{in},
		Outputs: []*types.CellOutput{{Capacity: 900 * params.ByteCapacityUnit, Lock: lockScript(1)}},
	}
	p := newPool(t, testConfig(), map[types.OutPoint]*cellset.Record{op: rec})
	require.NoError(t, p.Submit(tx))

	proposingBlock := &types.Block{
		Header:    &types.Header{Number: 5},
		Proposals: []types.ProposalShortID{tx.ShortID()},
	}
	p.AttachBlock(proposingBlock)

	p.mu.RLock()
	_, inProposed := p.proposed[tx.Hash()]
	p.mu.RUnlock()
	require.True(t, inProposed)

	committingBlock := &types.Block{
		Header:       &types.Header{Number: 6},
		Transactions: []*types.Transaction{tx},
	}
	p.AttachBlock(committingBlock)
	require.Equal(t, 0, p.Len())

	_, ok := p.committed.Get(tx.Hash())
	require.True(t, ok)
}

func TestAttachBlockPrunesExpiredProposals(t *testing.T) {
	p := newPool(t, testConfig(), nil)

	stale := &entry{
		Tx:              &types.Transaction{Version: params.TxVersion},
		Hash:            common.Hash{0x30},
		ShortID:         types.ProposalShortID{0x30},
		Size:            10,
		ProposedAtBlock: 1,
		State:           stateProposed,
	}
	p.mu.Lock()
	p.proposed[stale.Hash] = stale
	p.byShort[stale.ShortID] = stale.Hash
	p.totalSize += stale.Size
	p.mu.Unlock()

	farBlock := &types.Block{Header: &types.Header{Number: 1 + params.ProposalWindowFarthest + 1}}
	p.AttachBlock(farBlock)

	p.mu.RLock()
	_, ok := p.proposed[stale.Hash]
	p.mu.RUnlock()
	require.False(t, ok)
}

func TestDetachBlockReintroducesResolvableTransactions(t *testing.T) {
	in, op, rec := newSpendableInput(7, 0, 1000*params.ByteCapacityUnit)
	cellbase := &types.Transaction{
		Version: params.TxVersion,
		Inputs:  []*types.CellInput{{PreviousCell: types.NullOutPoint}},
		Outputs: []*types.CellOutput{{Capacity: 1, Lock: lockScript(1)}},
	}
	tx := &types.Transaction{
		Version: params.TxVersion,
		Inputs:  []*types.CellInput{in},
		Outputs: []*types.CellOutput{{Capacity: 900 * params.ByteCapacityUnit, Lock: lockScript(1)}},
	}
	p := newPool(t, testConfig(), map[types.OutPoint]*cellset.Record{op: rec})

	block := &types.Block{
		Header:       &types.Header{Number: 10},
		Transactions: []*types.Transaction{cellbase, tx},
	}
	p.DetachBlock(block)

	p.mu.RLock()
	e, ok := p.proposed[tx.Hash()]
	p.mu.RUnlock()
	require.True(t, ok)
	require.Equal(t, stateProposed, e.State)
}

func TestReapExpiredEvictsStaleEntries(t *testing.T) {
	p := newPool(t, testConfig(), nil)

	stale := &entry{
		Tx:      &types.Transaction{Version: params.TxVersion},
		Hash:    common.Hash{0x40},
		Size:    10,
		AddedAt: time.Now().Add(-DefaultConfig.ExpireAfter - time.Hour),
	}
	p.mu.Lock()
	p.pending[stale.Hash] = stale
	p.totalSize += stale.Size
	p.reapExpiredLocked()
	_, stillThere := p.pending[stale.Hash]
	p.mu.Unlock()

	require.False(t, stillThere)
}
