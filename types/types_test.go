package types

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/ckb-go/common"
)

func TestTransactionHashExcludesWitnesses(t *testing.T) {
	tx := &Transaction{
		Version: 0,
		Outputs: []*CellOutput{{Capacity: 100, Lock: &Script{}}},
		OutputsData: [][]byte{nil},
	}
	before := tx.Hash()
	tx.Witnesses = [][]byte{[]byte("sig")}
	after := tx.Hash()
	require.Equal(t, before, after, "adding a witness must not change the tx hash")
	require.NotEqual(t, tx.WitnessHash(), tx.Hash(), "witness hash must differ once witnesses are non-empty")
}

func TestCellbaseDetection(t *testing.T) {
	tx := &Transaction{Inputs: []*CellInput{{PreviousCell: NullOutPoint}}}
	require.True(t, tx.IsCellbase())

	tx2 := &Transaction{Inputs: []*CellInput{{PreviousCell: OutPoint{Index: 0}}}}
	require.False(t, tx2.IsCellbase())
}

func TestCBMTRootDeterministic(t *testing.T) {
	leaves := []common.Hash{Hash256([]byte("a")), Hash256([]byte("b")), Hash256([]byte("c"))}
	r1 := CBMTRoot(leaves)
	r2 := CBMTRoot(leaves)
	require.Equal(t, r1, r2)
	require.NotEqual(t, common.Hash{}, r1)

	// A single leaf's root is itself.
	require.Equal(t, leaves[0], CBMTRoot(leaves[:1]))
}

func TestEpochPacking(t *testing.T) {
	e := PackEpoch(42, 7, 1800)
	require.Equal(t, uint64(42), e.Number())
	require.Equal(t, uint64(7), e.Index())
	require.Equal(t, uint64(1800), e.Length())
	require.False(t, e.IsFullyElapsed())

	last := PackEpoch(42, 1799, 1800)
	require.True(t, last.IsFullyElapsed())
}

func TestSinceDecoding(t *testing.T) {
	abs := Since(500)
	require.False(t, abs.IsRelative())
	require.Equal(t, SinceMetricBlockNumber, abs.Metric())
	require.Equal(t, uint64(500), abs.Value())

	rel := Since(SinceRelativeFlag | 10)
	require.True(t, rel.IsRelative())
	require.Equal(t, uint64(10), rel.Value())
}

func TestWithdrawCapacityScalesWithAR(t *testing.T) {
	deposit := uint64(100_000_000_000) // 1000 CKB in shannons
	depositAR := uint64(1_000_000_000_000_000_0)
	withdrawAR := depositAR * 11 / 10 // 10% accumulated growth

	got := WithdrawCapacity(deposit, depositAR, withdrawAR)
	require.Greater(t, got, deposit)
	require.InDelta(t, float64(deposit)*1.1, float64(got), float64(deposit)*0.01)
}

func TestCompactTargetExpandsToNonZeroTarget(t *testing.T) {
	ct := CompactTarget(0x20010000)
	target := ct.ToTarget()
	require.NotEqual(t, [32]byte{}, target)
}
