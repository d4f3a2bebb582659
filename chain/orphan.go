package chain

import (
	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/types"
)

// orphanPool parks blocks whose parent hasn't arrived yet, keyed by the
// parent hash they're waiting on (§4.6 step 2, §4.7 "orphan pool keyed by
// parent_hash"). It is not its own type with a lock: the chain service's
// single write lock already serializes every access, the same way
// Chain.headers and Chain.canonical are bare maps rather than
// independently-synchronized structures.
type orphanPool map[common.Hash][]*types.Block

func (p orphanPool) add(block *types.Block) {
	parent := block.Header.ParentHash
	p[parent] = append(p[parent], block)
}

// drain removes and returns every block that was waiting on parentHash,
// the set that becomes processable once parentHash is accepted.
func (p orphanPool) drain(parentHash common.Hash) []*types.Block {
	blocks := p[parentHash]
	delete(p, parentHash)
	return blocks
}

// count reports how many blocks are parked across every parent hash.
func (p orphanPool) count() int {
	n := 0
	for _, blocks := range p {
		n += len(blocks)
	}
	return n
}
