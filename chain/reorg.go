package chain

import (
	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/store"
	"github.com/nervosnetwork/ckb-go/types"
)

func (c *Chain) getBlock(hash common.Hash) (*types.Block, bool) {
	enc, err := c.db.Get(store.BodyDB, hash[:])
	if err != nil {
		return nil, false
	}
	block, err := decodeBlock(enc)
	if err != nil {
		logger.Error("corrupt stored block body", "hash", hash, "err", err)
		return nil, false
	}
	return block, true
}

// branchPaths walks oldTip and newTip back to their common ancestor,
// returning each branch's hashes ordered tip-first (nearest the
// respective tip, furthest last).
func (c *Chain) branchPaths(oldTip, newTip common.Hash) (detach, attach []common.Hash, ancestor common.Hash, err error) {
	aHash, bHash := oldTip, newTip
	aEntry, ok := c.headerByHashLocked(aHash)
	if !ok {
		return nil, nil, common.Hash{}, ErrUnknownBlock
	}
	bEntry, ok := c.headerByHashLocked(bHash)
	if !ok {
		return nil, nil, common.Hash{}, ErrUnknownBlock
	}

	for aEntry.Header.Number > bEntry.Header.Number {
		detach = append(detach, aHash)
		aHash = aEntry.Header.ParentHash
		aEntry, ok = c.headerByHashLocked(aHash)
		if !ok {
			return nil, nil, common.Hash{}, ErrNotAncestor
		}
	}
	for bEntry.Header.Number > aEntry.Header.Number {
		attach = append(attach, bHash)
		bHash = bEntry.Header.ParentHash
		bEntry, ok = c.headerByHashLocked(bHash)
		if !ok {
			return nil, nil, common.Hash{}, ErrNotAncestor
		}
	}

	for aHash != bHash {
		if aEntry.Header.Number == 0 {
			return nil, nil, common.Hash{}, ErrNotAncestor
		}
		detach = append(detach, aHash)
		attach = append(attach, bHash)

		aHash = aEntry.Header.ParentHash
		aEntry, ok = c.headerByHashLocked(aHash)
		if !ok {
			return nil, nil, common.Hash{}, ErrNotAncestor
		}
		bHash = bEntry.Header.ParentHash
		bEntry, ok = c.headerByHashLocked(bHash)
		if !ok {
			return nil, nil, common.Hash{}, ErrNotAncestor
		}
	}

	return detach, attach, aHash, nil
}

// reorgTo moves the canonical tip to newTipHash: detach every canonical
// block down to the common ancestor (via its journaled mutations, newest
// first), then attach the new branch's blocks ancestor-to-tip, verifying
// each at script level as it is applied. A failure partway through attach
// rolls back everything this call did and restores the prior tip exactly,
// so a heavier-but-invalid branch never leaves the chain in a half-applied
// state (§4.6 "journaled rollback").
func (c *Chain) reorgTo(newTipHash common.Hash) (attachedBlocks, detachedBlocks []*types.Block, err error) {
	detachHashes, attachHashes, _, err := c.branchPaths(c.tip, newTipHash)
	if err != nil {
		return nil, nil, err
	}

	detachedBlocks = make([]*types.Block, 0, len(detachHashes))
	for _, h := range detachHashes {
		block, ok := c.getBlock(h)
		if !ok {
			return nil, nil, ErrUnknownBlock
		}
		journal, ok := c.attachedJournals[h]
		if !ok {
			return nil, nil, ErrUnknownBlock
		}
		c.cells.DetachBlock(journal)
		if c.pool != nil {
			c.pool.DetachBlock(block)
		}
		delete(c.attachedJournals, h)
		delete(c.canonical, block.Number())
		detachedBlocks = append(detachedBlocks, block)
	}

	// attachHashes is tip-first (newest last toward the ancestor); apply
	// oldest-to-newest so every block sees its own parent already live.
	orderedAttach := make([]*types.Block, 0, len(attachHashes))
	for i := len(attachHashes) - 1; i >= 0; i-- {
		block, ok := c.getBlock(attachHashes[i])
		if !ok {
			return nil, nil, ErrUnknownBlock
		}
		orderedAttach = append(orderedAttach, block)
	}

	applied := make([]*types.Block, 0, len(orderedAttach))
	for _, block := range orderedAttach {
		journal, _, attachErr := c.verifyAndAttachLive(block)
		if attachErr != nil {
			c.rollbackPartialReorg(applied, detachedBlocks)
			return nil, nil, attachErr
		}
		h := block.Hash()
		c.attachedJournals[h] = journal
		c.canonical[block.Number()] = h
		applied = append(applied, block)
	}

	c.tip = newTipHash
	if len(orderedAttach) > 0 {
		c.tipNumber = orderedAttach[len(orderedAttach)-1].Number()
	}

	return orderedAttach, detachedBlocks, nil
}

// rollbackPartialReorg undoes a reorg that failed partway through attach:
// it detaches whatever this call already applied (newest first) and
// re-attaches the blocks it detached from the old branch (oldest first,
// i.e. reverse of detachedBlocks' tip-first order), restoring the chain
// to exactly its pre-reorg state.
func (c *Chain) rollbackPartialReorg(applied, detachedBlocks []*types.Block) {
	for i := len(applied) - 1; i >= 0; i-- {
		block := applied[i]
		h := block.Hash()
		if journal, ok := c.attachedJournals[h]; ok {
			c.cells.DetachBlock(journal)
			if c.pool != nil {
				c.pool.DetachBlock(block)
			}
			delete(c.attachedJournals, h)
		}
		delete(c.canonical, block.Number())
	}

	for i := len(detachedBlocks) - 1; i >= 0; i-- {
		block := detachedBlocks[i]
		journal, err := c.cells.AttachBlock(block, block.Number())
		if err != nil {
			logger.Crit("failed to restore previous branch during reorg rollback", "hash", block.Hash(), "err", err)
			continue
		}
		h := block.Hash()
		c.attachedJournals[h] = journal
		c.canonical[block.Number()] = h
		if c.pool != nil {
			c.pool.AttachBlock(block)
		}
	}
}
