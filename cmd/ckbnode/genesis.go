package main

import (
	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/types"
)

// devGenesis builds the single-block genesis this entrypoint starts
// from. A real deployment would load a network's canonical genesis from
// a bundled JSON/CBOR spec the way the teacher's node loads its chain
// config; wiring that loader is left for whenever this binary needs to
// join more than one network, since right now it only ever starts a
// fresh devnet.
func devGenesis() *types.Block {
	issuance := &types.Script{HashType: types.HashTypeData}
	cellbase := &types.Transaction{
		Version: 0,
		Inputs:  []*types.CellInput{{PreviousCell: types.NullOutPoint}},
		Outputs: []*types.CellOutput{{
			Capacity: 100_000_000_00000000,
			Lock:     issuance,
		}},
		OutputsData: [][]byte{nil},
		Witnesses:   [][]byte{{}},
	}

	header := &types.Header{
		Version: 0,
		// A maximally permissive target: this entrypoint has no miner
		// wired in (script.VM is a placeholder too, see vm.go), so a
		// devnet has no way to search for a hash meeting a real target.
		CompactTarget: types.CompactTarget(0x21000000),
		Timestamp:     0,
		Number:        0,
		Epoch:         types.PackEpoch(0, 0, 1000),
		ParentHash:    common.Hash{},
	}
	block := &types.Block{Header: header, Transactions: []*types.Transaction{cellbase}}
	header.TransactionsRoot = block.ComputedTransactionsRoot()
	header.ProposalsHash = block.ComputedProposalsHash()
	header.UnclesHash = block.ComputedUnclesHash()
	return block
}
