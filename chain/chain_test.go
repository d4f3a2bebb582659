package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/script"
	"github.com/nervosnetwork/ckb-go/store"
	"github.com/nervosnetwork/ckb-go/types"
	"github.com/nervosnetwork/ckb-go/verifier"
)

// fakeVM never runs a real instruction set: it reports success for every
// script except one deliberately marked to fail, letting tests trigger a
// script-verification failure without a real CKB-VM.
type fakeVM struct{ failTag byte }

func (v fakeVM) Run(s *types.Script, api script.HostAPI, budget uint64) (int8, uint64, error) {
	if v.failTag != 0 && s.CodeHash[0] == v.failTag {
		return 1, 10, nil
	}
	return 0, 10, nil
}

func testScript(tag byte) *types.Script {
	var codeHash common.Hash
	codeHash[0] = tag
	return &types.Script{CodeHash: codeHash, HashType: types.HashTypeData}
}

// degenerateTarget decodes (via CompactTarget.ToTarget) to all-0xff, the
// maximally permissive target, so MeetsTarget never needs a real mining
// search in these tests.
const degenerateTarget = types.CompactTarget(0x21000000)

func cellbaseTx(typeScript *types.Script) *types.Transaction {
	return &types.Transaction{
		Version:     0,
		Inputs:      []*types.CellInput{{PreviousCell: types.NullOutPoint}},
		Outputs:     []*types.CellOutput{{Capacity: 100_000_000_000, Lock: testScript(1), Type: typeScript}},
		OutputsData: [][]byte{nil},
		Witnesses:   [][]byte{{}},
	}
}

func genesisBlock() *types.Block {
	tx := cellbaseTx(nil)
	h := &types.Header{
		CompactTarget: degenerateTarget,
		Timestamp:     1000,
		Number:        0,
		Epoch:         types.PackEpoch(0, 0, 1000),
	}
	b := &types.Block{Header: h, Transactions: []*types.Transaction{tx}}
	h.TransactionsRoot = b.ComputedTransactionsRoot()
	h.ProposalsHash = b.ComputedProposalsHash()
	h.UnclesHash = b.ComputedUnclesHash()
	return b
}

// childBlock builds a block directly on top of parent, staying within
// parent's epoch (none of this test suite's chains run long enough to
// cross an epoch boundary).
func childBlock(parent *types.Header, timestamp uint64, typeScript *types.Script) *types.Block {
	tx := cellbaseTx(typeScript)
	h := &types.Header{
		CompactTarget: parent.CompactTarget,
		Timestamp:     timestamp,
		Number:        parent.Number + 1,
		Epoch:         types.PackEpoch(parent.Epoch.Number(), parent.Epoch.Index()+1, parent.Epoch.Length()),
		ParentHash:    parent.Hash(),
	}
	b := &types.Block{Header: h, Transactions: []*types.Transaction{tx}}
	h.TransactionsRoot = b.ComputedTransactionsRoot()
	h.ProposalsHash = b.ComputedProposalsHash()
	h.UnclesHash = b.ComputedUnclesHash()
	return b
}

func newTestChain(t *testing.T, failTag byte) (*Chain, *types.Block) {
	t.Helper()
	genesis := genesisBlock()
	txv := verifier.NewTransactionVerifier(script.NewEngine(fakeVM{failTag: failTag}), nil)
	c, err := New(DefaultConfig, store.NewMemoryDBManager(), txv, nil, genesis)
	require.NoError(t, err)
	return c, genesis
}

func TestProcessExtendsTipDirectly(t *testing.T) {
	c, genesis := newTestChain(t, 0)

	block1 := childBlock(genesis.Header, 2000, nil)
	result, err := c.Process(block1)
	require.NoError(t, err)
	require.Equal(t, ResultExtended, result)

	tip, number := c.Tip()
	require.Equal(t, block1.Hash(), tip)
	require.Equal(t, uint64(1), number)
}

func TestProcessParksOrphanAndDrainsOnParentArrival(t *testing.T) {
	c, genesis := newTestChain(t, 0)

	block1 := childBlock(genesis.Header, 2000, nil)
	block2 := childBlock(block1.Header, 3000, nil)

	result, err := c.Process(block2)
	require.NoError(t, err)
	require.Equal(t, ResultOrphan, result)

	tip, number := c.Tip()
	require.Equal(t, genesis.Hash(), tip)
	require.Equal(t, uint64(0), number)

	result, err = c.Process(block1)
	require.NoError(t, err)
	require.Equal(t, ResultExtended, result)

	tip, number = c.Tip()
	require.Equal(t, block2.Hash(), tip, "draining the orphan pool should carry the tip all the way to block2")
	require.Equal(t, uint64(2), number)
}

func TestProcessStoresEqualWeightSideBranchWithoutReorg(t *testing.T) {
	c, genesis := newTestChain(t, 0)

	blockA := childBlock(genesis.Header, 1500, nil)
	result, err := c.Process(blockA)
	require.NoError(t, err)
	require.Equal(t, ResultExtended, result)

	blockB := childBlock(genesis.Header, 1600, nil)
	result, err = c.Process(blockB)
	require.NoError(t, err)
	require.Equal(t, ResultStored, result, "equal total difficulty must not displace the incumbent tip")

	tip, _ := c.Tip()
	require.Equal(t, blockA.Hash(), tip)
}

func TestProcessReorgsToHeavierBranch(t *testing.T) {
	c, genesis := newTestChain(t, 0)

	blockA := childBlock(genesis.Header, 1500, nil)
	_, err := c.Process(blockA)
	require.NoError(t, err)

	blockB := childBlock(genesis.Header, 1600, nil)
	result, err := c.Process(blockB)
	require.NoError(t, err)
	require.Equal(t, ResultStored, result)

	blockB2 := childBlock(blockB.Header, 2600, nil)
	result, err = c.Process(blockB2)
	require.NoError(t, err)
	require.Equal(t, ResultExtended, result, "blockB2 makes the B branch heavier and must trigger a reorg")

	tip, number := c.Tip()
	require.Equal(t, blockB2.Hash(), tip)
	require.Equal(t, uint64(2), number)

	rec, ok := c.cells.Get(types.OutPoint{TxHash: blockA.Transactions[0].Hash(), Index: 0})
	require.False(t, ok, "blockA's cellbase output must be detached after losing the reorg")
	_ = rec

	rec, ok = c.cells.Get(types.OutPoint{TxHash: blockB.Transactions[0].Hash(), Index: 0})
	require.True(t, ok, "blockB's cellbase output must be live on the new canonical branch")
}

func TestProcessReorgRollsBackOnMidAttachFailure(t *testing.T) {
	const failTag = 9
	c, genesis := newTestChain(t, failTag)

	blockA := childBlock(genesis.Header, 1500, nil)
	_, err := c.Process(blockA)
	require.NoError(t, err)

	blockC := childBlock(genesis.Header, 1600, testScript(failTag))
	result, err := c.Process(blockC)
	require.NoError(t, err)
	require.Equal(t, ResultStored, result, "script verification is deferred, so the bad type script isn't caught yet")

	blockC2 := childBlock(blockC.Header, 2600, nil)
	_, err = c.Process(blockC2)
	require.Error(t, err, "the reorg's attach phase must finally run blockC's failing type script")

	tip, number := c.Tip()
	require.Equal(t, blockA.Hash(), tip, "a failed reorg must leave the original tip in place")
	require.Equal(t, uint64(1), number)

	_, ok := c.cells.Get(types.OutPoint{TxHash: blockA.Transactions[0].Hash(), Index: 0})
	require.True(t, ok, "blockA's cell set state must be restored after the rollback")

	_, err = c.Process(blockC2)
	require.Error(t, err, "a block that previously failed must be rejected without re-attempting the reorg")
}
