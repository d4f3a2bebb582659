package cellset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/ckb-go/store"
	"github.com/nervosnetwork/ckb-go/types"
)

func newTestSet(t *testing.T) *Set {
	t.Helper()
	db := store.NewMemoryDBManager()
	s, err := New(Config{HotCapacity: 4, SpillCacheBytes: 1 << 20}, db)
	require.NoError(t, err)
	return s
}

func simpleOutput(capacity uint64) *types.CellOutput {
	return &types.CellOutput{Capacity: capacity, Lock: &types.Script{}}
}

func TestMarkLiveThenGet(t *testing.T) {
	s := newTestSet(t)
	op := types.OutPoint{Index: 0}
	rec := &Record{Output: simpleOutput(100)}

	s.MarkLive(op, rec)
	got, ok := s.Get(op)
	require.True(t, ok)
	require.Equal(t, uint64(100), got.Output.Capacity)
}

func TestMarkDeadReturnsPreviousRecordAndRemoves(t *testing.T) {
	s := newTestSet(t)
	op := types.OutPoint{Index: 1}
	rec := &Record{Output: simpleOutput(200), CreatedBy: 5}
	s.MarkLive(op, rec)

	prev, err := s.MarkDead(op)
	require.NoError(t, err)
	require.Equal(t, uint64(200), prev.Output.Capacity)

	_, ok := s.Get(op)
	require.False(t, ok)
}

func TestSpillEvictionRoundTripsThroughStorage(t *testing.T) {
	s := newTestSet(t) // HotCapacity: 4

	ops := make([]types.OutPoint, 6)
	for i := range ops {
		ops[i] = types.OutPoint{Index: uint32(i)}
		s.MarkLive(ops[i], &Record{Output: simpleOutput(uint64(1000 + i))})
	}

	// The hot set holds at most 4; the first two inserted must have
	// spilled to storage, yet still be retrievable through Get.
	require.LessOrEqual(t, s.Len(), 4)
	for i := range ops {
		rec, ok := s.Get(ops[i])
		require.True(t, ok, "outpoint %d should still resolve after spill", i)
		require.Equal(t, uint64(1000+i), rec.Output.Capacity)
	}
}

func TestAttachBlockThenDetachBlockRestoresPriorState(t *testing.T) {
	s := newTestSet(t)

	cellbaseTx := &types.Transaction{
		Inputs:  []*types.CellInput{{PreviousCell: types.NullOutPoint}},
		Outputs: []*types.CellOutput{simpleOutput(500)},
		OutputsData: [][]byte{nil},
	}
	block := &types.Block{Transactions: []*types.Transaction{cellbaseTx}}

	journal, err := s.AttachBlock(block, 1)
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	cellbaseOutPoint := types.OutPoint{TxHash: cellbaseTx.Hash(), Index: 0}
	_, ok := s.Get(cellbaseOutPoint)
	require.True(t, ok)

	s.DetachBlock(journal)
	require.Equal(t, 0, s.Len())
	_, ok = s.Get(cellbaseOutPoint)
	require.False(t, ok)
}

func TestSnapshotIsolatedFromLaterMutation(t *testing.T) {
	s := newTestSet(t)
	op := types.OutPoint{Index: 9}
	s.MarkLive(op, &Record{Output: simpleOutput(42)})

	snap, release, err := s.Snapshot()
	require.NoError(t, err)
	defer release()

	_, err = s.MarkDead(op)
	require.NoError(t, err)

	rec, ok := snap.Get(op)
	require.True(t, ok, "snapshot must still see the cell removed after it was taken")
	require.Equal(t, uint64(42), rec.Output.Capacity)

	_, ok = s.Get(op)
	require.False(t, ok)
}
