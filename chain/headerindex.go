package chain

import (
	"math/big"
	"sort"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/params"
	"github.com/nervosnetwork/ckb-go/store"
	"github.com/nervosnetwork/ckb-go/types"
)

// headerEntry is what the in-memory header index keeps per known header:
// enough to run fork choice (§4.6 "sum of per-block targets") and answer
// ancestor walks without touching storage on the hot path.
type headerEntry struct {
	Header          *types.Header
	TotalDifficulty *big.Int
}

// headerByHashLocked looks the entry up in memory, falling back to the
// durable header store for a header that has scrolled out of the
// in-memory index (still reachable, just not kept resident forever).
func (c *Chain) headerByHashLocked(h common.Hash) (*headerEntry, bool) {
	if e, ok := c.headers[h]; ok {
		return e, true
	}
	enc, err := c.db.Get(store.HeaderDB, h[:])
	if err != nil {
		return nil, false
	}
	hdr, err := decodeHeader(enc)
	if err != nil {
		logger.Error("corrupt stored header", "hash", h, "err", err)
		return nil, false
	}
	td, ok := getTotalDifficulty(c.db, h)
	if !ok {
		logger.Error("header stored without a matching total-difficulty record", "hash", h)
		td = big.NewInt(0)
	}
	return &headerEntry{Header: hdr, TotalDifficulty: td}, true
}

// ancestorAtNumber walks backward from fromHash to the header at number n,
// the primitive both median-time-past and the proposal window need
// (§4.6 "get_ancestor").
func (c *Chain) ancestorAtNumber(fromHash common.Hash, n uint64) (*types.Header, bool) {
	e, ok := c.headerByHashLocked(fromHash)
	if !ok {
		return nil, false
	}
	h := e.Header
	if h.Number < n {
		return nil, false
	}
	for h.Number > n {
		e, ok = c.headerByHashLocked(h.ParentHash)
		if !ok {
			return nil, false
		}
		h = e.Header
	}
	return h, true
}

// computeMedianTimePast returns the median of the MedianTimeBlockCount
// timestamps ending at fromHash, inclusive (§4.4, §9).
func (c *Chain) computeMedianTimePast(fromHash common.Hash) uint64 {
	timestamps := make([]uint64, 0, params.MedianTimeBlockCount)
	h := fromHash
	for i := 0; i < params.MedianTimeBlockCount; i++ {
		e, ok := c.headerByHashLocked(h)
		if !ok {
			break
		}
		timestamps = append(timestamps, e.Header.Timestamp)
		if e.Header.Number == 0 {
			break
		}
		h = e.Header.ParentHash
	}
	if len(timestamps) == 0 {
		return 0
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	return timestamps[len(timestamps)/2]
}

// computeNextEpoch derives the epoch (and implicitly, the compact_target)
// a block built on top of parent must carry. Full CKB epoch retargeting
// adjusts both the epoch length and the compact_target together from the
// elapsed wall-clock time of the epoch just closed; this carries the
// compact_target forward unchanged and only adjusts length, a deliberate
// simplification recorded in this package's DESIGN.md entry (repacking a
// big.Int difficulty back into the lossy base-256 float encoding was
// judged too easy to get subtly wrong without the toolchain to check it
// against, and no test in this module depends on a real retarget).
func (c *Chain) computeNextEpoch(parent *types.Header) (types.EpochNumberWithFraction, types.CompactTarget) {
	if !parent.Epoch.IsFullyElapsed() {
		return types.PackEpoch(parent.Epoch.Number(), parent.Epoch.Index()+1, parent.Epoch.Length()), parent.CompactTarget
	}

	epochNumber := parent.Epoch.Number() + 1
	epochStartNumber := parent.Number - parent.Epoch.Index()
	length := parent.Epoch.Length()

	startHeader, ok := c.ancestorAtNumber(parent.Hash(), epochStartNumber)
	if ok && parent.Timestamp > startHeader.Timestamp {
		elapsed := parent.Timestamp - startHeader.Timestamp
		target := params.EpochDurationTarget.Milliseconds()
		if elapsed > 0 {
			adjusted := length * uint64(target) / elapsed
			length = clampEpochLength(length, adjusted)
		}
	}
	if length == 0 {
		length = params.GenesisEpochLength
	}

	return types.PackEpoch(epochNumber, 0, length), parent.CompactTarget
}

func clampEpochLength(prev, next uint64) uint64 {
	maxLen := prev * params.MaxEpochLengthAdjustRateNum / params.MaxEpochLengthAdjustRateDen
	minLen := prev * params.MaxEpochLengthAdjustRateDen / params.MaxEpochLengthAdjustRateNum
	if next > maxLen {
		return maxLen
	}
	if next < minLen {
		return minLen
	}
	return next
}

// chainHeaderSource adapts the chain's own index to verifier.HeaderSource
// for a resolution rooted at a specific branch tip, so a transaction
// being verified against a side branch sees that branch's headers rather
// than the canonical chain's.
type chainHeaderSource struct {
	c        *Chain
	fromHash common.Hash
}

func (s *chainHeaderSource) HeaderByHash(h common.Hash) (*types.Header, bool) {
	e, ok := s.c.headerByHashLocked(h)
	if !ok {
		return nil, false
	}
	return e.Header, true
}

func (s *chainHeaderSource) HeaderByNumber(n uint64) (*types.Header, bool) {
	h, ok := s.c.ancestorAtNumber(s.fromHash, n)
	return h, ok
}

// gatherProposalWindow collects every proposal short id announced by an
// ancestor of parent in [N-ProposalWindowFarthest, N-ProposalWindowClosest]
// with N = parentNumber+1, the window a block built on top of parent must
// draw its transactions from (§3, §4.4).
func (c *Chain) gatherProposalWindow(parentHash common.Hash, parentNumber uint64) map[types.ProposalShortID]bool {
	ids := make(map[types.ProposalShortID]bool)

	farthest := params.ProposalWindowFarthest
	closest := params.ProposalWindowClosest
	if parentNumber+1 < farthest {
		farthest = parentNumber + 1
	}
	if parentNumber+1 < closest {
		closest = parentNumber + 1
	}

	h := parentHash
	for offset := uint64(0); offset < farthest; offset++ {
		e, ok := c.headerByHashLocked(h)
		if !ok {
			break
		}
		if offset >= closest-1 {
			enc, err := c.db.Get(store.BodyDB, h[:])
			if err == nil {
				if block, derr := decodeBlock(enc); derr == nil {
					for _, id := range block.Proposals {
						ids[id] = true
					}
				}
			}
		}
		if e.Header.Number == 0 {
			break
		}
		h = e.Header.ParentHash
	}
	return ids
}
