package sync

import (
	"sync"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/types"
)

// headerIndex is the synchronizer's own header-only view of the world,
// kept ahead of chain.Chain's canonical index during headers-first
// download (§4.7 "Validate each header non-contextually, link to parent,
// store"). chain.Chain only ever learns about a block once its full body
// arrives and passes Process; until then, this index is the only record
// that a header exists, so locator construction and get_ancestor have
// something to walk. It is advisory, not authoritative: every block still
// goes through chain.Process's full contextual and script verification
// once its body is fetched, so a bad header admitted here can park or be
// rejected later without ever corrupting canonical state.
type headerIndex struct {
	mu      sync.RWMutex
	headers map[common.Hash]*types.Header
}

func newHeaderIndex(genesis *types.Header) *headerIndex {
	hi := &headerIndex{headers: make(map[common.Hash]*types.Header)}
	hi.headers[genesis.Hash()] = genesis
	return hi
}

// add links h if its parent is already known (or h is itself already
// present), returning false for an orphan header the caller should not
// yet trust for locator/ancestor purposes.
func (hi *headerIndex) add(h *types.Header) bool {
	hi.mu.Lock()
	defer hi.mu.Unlock()
	hash := h.Hash()
	if _, ok := hi.headers[hash]; ok {
		return true
	}
	if h.Number == 0 {
		hi.headers[hash] = h
		return true
	}
	if _, ok := hi.headers[h.ParentHash]; !ok {
		return false
	}
	hi.headers[hash] = h
	return true
}

func (hi *headerIndex) get(hash common.Hash) (*types.Header, bool) {
	hi.mu.RLock()
	defer hi.mu.RUnlock()
	h, ok := hi.headers[hash]
	return h, ok
}

// ancestor implements get_ancestor(tip, n): walk the header index back
// from fromHash to the header at number n. Consistent by construction —
// the same (fromHash, n) always resolves the same parent-hash chain,
// since headers are immutable once added (§4.7 "must be consistent").
func (hi *headerIndex) ancestor(fromHash common.Hash, n uint64) (common.Hash, bool) {
	hi.mu.RLock()
	defer hi.mu.RUnlock()
	h, ok := hi.headers[fromHash]
	if !ok || h.Number < n {
		return common.Hash{}, false
	}
	for h.Number > n {
		parent, ok := hi.headers[h.ParentHash]
		if !ok {
			return common.Hash{}, false
		}
		h = parent
	}
	return h.Hash(), true
}

// locator builds the exponential sparse set of ancestor hashes of
// fromHash used to announce our view of the chain on connect or after a
// tip change (§4.7 "send a locator (exponential sparse set of ancestor
// hashes)"): the eleven most recent hashes one block apart, then steps
// that double back to and including genesis.
func (hi *headerIndex) locator(fromHash common.Hash) []common.Hash {
	hi.mu.RLock()
	defer hi.mu.RUnlock()

	var hashes []common.Hash
	h, ok := hi.headers[fromHash]
	if !ok {
		return hashes
	}

	step := uint64(1)
	for {
		hashes = append(hashes, h.Hash())
		if h.Number == 0 {
			break
		}
		var target uint64
		if h.Number < step {
			target = 0
		} else {
			target = h.Number - step
		}
		ancestor, ok := hi.walkLocked(h, target)
		if !ok {
			break
		}
		h = ancestor
		if len(hashes) >= 10 {
			step *= 2
		}
	}
	return hashes
}

func (hi *headerIndex) walkLocked(from *types.Header, n uint64) (*types.Header, bool) {
	h := from
	for h.Number > n {
		parent, ok := hi.headers[h.ParentHash]
		if !ok {
			return nil, false
		}
		h = parent
	}
	return h, true
}
