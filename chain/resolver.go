package chain

import (
	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/types"
	"github.com/nervosnetwork/ckb-go/verifier"
)

// staticHeaderSource is an immutable copy of the header index as of the
// moment TipContext was called. A verifier.Context can escape Chain's
// lock and be used by a caller (the tx pool) arbitrarily later, so it
// cannot hold a live reference into maps this package keeps mutating;
// copying the pointers (never the Header values themselves, which are
// never mutated once linked) is cheap enough to do on every call.
type staticHeaderSource struct {
	headers   map[common.Hash]*types.Header
	canonical map[uint64]common.Hash
}

func (s *staticHeaderSource) HeaderByHash(h common.Hash) (*types.Header, bool) {
	hdr, ok := s.headers[h]
	return hdr, ok
}

func (s *staticHeaderSource) HeaderByNumber(n uint64) (*types.Header, bool) {
	h, ok := s.canonical[n]
	if !ok {
		return nil, false
	}
	return s.HeaderByHash(h)
}

// TipContext resolves a verifier.Context rooted at the current canonical
// tip, suitable for a tx pool validating a submission against live state
// (txpool.TipResolver.Resolve's contract). The returned Context and
// release func remain valid after this call returns and Chain's lock is
// released, so every piece of state it closes over — the cell-set
// snapshot, the header-index copy — must already be self-contained by
// the time the lock is dropped.
func (c *Chain) TipContext() (ctx *verifier.Context, tipNumber uint64, release func(), err error) {
	c.mu.Lock()
	tipHash := c.tip
	tipNumber = c.tipNumber
	entry, ok := c.headers[tipHash]
	if !ok {
		c.mu.Unlock()
		return nil, 0, nil, ErrUnknownBlock
	}
	medianTimePast := c.computeMedianTimePast(tipHash)
	epochNumber := entry.Header.Epoch.Number()

	headersCopy := make(map[common.Hash]*types.Header, len(c.headers))
	for h, e := range c.headers {
		headersCopy[h] = e.Header
	}
	canonicalCopy := make(map[uint64]common.Hash, len(c.canonical))
	for n, h := range c.canonical {
		canonicalCopy[n] = h
	}
	cells, db := c.cells, c.db
	c.mu.Unlock()

	snap, release, err := cells.Snapshot()
	if err != nil {
		return nil, 0, nil, err
	}

	ctx = &verifier.Context{
		Cells:              snap,
		Data:               newCellDataSource(snap, db),
		Headers:            &staticHeaderSource{headers: headersCopy, canonical: canonicalCopy},
		TargetBlockNumber:  tipNumber + 1,
		CurrentEpochNumber: epochNumber,
		MedianTimePast:     medianTimePast,
	}
	return ctx, tipNumber, release, nil
}
