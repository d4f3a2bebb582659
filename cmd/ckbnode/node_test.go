package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/ckb-go/config"
)

func TestDevGenesisIsInternallyConsistent(t *testing.T) {
	g := devGenesis()
	require.Equal(t, uint64(0), g.Number())
	require.True(t, g.Header.MeetsTarget())
	require.Equal(t, g.ComputedTransactionsRoot(), g.Header.TransactionsRoot)
	require.Len(t, g.Transactions, 1)
	require.True(t, g.Transactions[0].IsCellbase())
}

func TestNewNodeWiresStoreChainPoolAndSync(t *testing.T) {
	cfg := config.Default()

	n, err := newNode(cfg, true)
	require.NoError(t, err)
	defer n.stop()

	hash, number := n.chain.Tip()
	require.Equal(t, devGenesis().Hash(), hash)
	require.Equal(t, uint64(0), number)

	// The chain should be resolvable through TipContext immediately,
	// confirming the pool's late-bound resolver isn't left dangling.
	ctx, tipNumber, release, err := n.chain.TipContext()
	require.NoError(t, err)
	require.NotNil(t, ctx)
	require.Equal(t, uint64(0), tipNumber)
	release()
}

func TestNodeStartStopIsClean(t *testing.T) {
	n, err := newNode(config.Default(), true)
	require.NoError(t, err)
	n.start("127.0.0.1:0", "127.0.0.1:0")
	n.stop()
}
