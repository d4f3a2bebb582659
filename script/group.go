package script

import (
	"sort"

	"github.com/nervosnetwork/ckb-go/cellset"
	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/types"
)

// Group is one script's single invocation: every input/output index
// whose lock (or type) script hashes the same, run together so the
// script sees and validates the entire group in one call (§4.2).
type Group struct {
	ScriptHash   common.Hash
	Script       *types.Script
	InputIndices []int
	OutputIndices []int
}

// ResolvedInputs carries the cell each input consumes, resolved ahead of
// time by the verifier's resolution stage (§4.3); script grouping and
// LoadCell(SourceInput, ...) both read from it instead of re-resolving.
type ResolvedInputs []*cellset.Record

// LockGroups partitions tx's inputs by their consumed cell's lock script
// hash (§4.2: "all input lock scripts sharing a hash run once").
func LockGroups(tx *types.Transaction, inputs ResolvedInputs) []Group {
	byHash := make(map[common.Hash]*Group)
	var order []common.Hash

	for i := range tx.Inputs {
		if i >= len(inputs) || inputs[i] == nil {
			continue
		}
		lock := inputs[i].Output.Lock
		h := lock.Hash()
		g, ok := byHash[h]
		if !ok {
			g = &Group{ScriptHash: h, Script: lock}
			byHash[h] = g
			order = append(order, h)
		}
		g.InputIndices = append(g.InputIndices, i)
	}

	groups := make([]Group, 0, len(order))
	for _, h := range order {
		groups = append(groups, *byHash[h])
	}
	return groups
}

// TypeGroups partitions every type script present across tx's inputs and
// outputs by hash (§4.2: "all type scripts present in inputs or outputs
// sharing a hash run once"). Group order is deterministic (by the lowest
// index, input space before output space) so two nodes charge cycles in
// the same sequence.
func TypeGroups(tx *types.Transaction, inputs ResolvedInputs) []Group {
	byHash := make(map[common.Hash]*Group)

	for i := range tx.Inputs {
		if i >= len(inputs) || inputs[i] == nil || inputs[i].Output.Type == nil {
			continue
		}
		typ := inputs[i].Output.Type
		h := typ.Hash()
		g, ok := byHash[h]
		if !ok {
			g = &Group{ScriptHash: h, Script: typ}
			byHash[h] = g
		}
		g.InputIndices = append(g.InputIndices, i)
	}

	for i, out := range tx.Outputs {
		if out.Type == nil {
			continue
		}
		h := out.Type.Hash()
		g, ok := byHash[h]
		if !ok {
			g = &Group{ScriptHash: h, Script: out.Type}
			byHash[h] = g
		}
		g.OutputIndices = append(g.OutputIndices, i)
	}

	groups := make([]Group, 0, len(byHash))
	for _, g := range byHash {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		iIn, jIn := len(groups[i].InputIndices) > 0, len(groups[j].InputIndices) > 0
		if iIn != jIn {
			return iIn
		}
		return firstIndex(groups[i]) < firstIndex(groups[j])
	})
	return groups
}

// firstIndex is g's lowest input index, or its lowest output index when it
// has no inputs.
func firstIndex(g Group) int {
	indices := g.InputIndices
	if len(indices) == 0 {
		indices = g.OutputIndices
	}
	min := int(^uint(0) >> 1)
	for _, i := range indices {
		if i < min {
			min = i
		}
	}
	return min
}
