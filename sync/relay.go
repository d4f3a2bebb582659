package sync

import (
	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/types"
)

// TxSource is the subset of txpool.Pool relay drives, kept as an
// interface for the same reason chain.PoolNotifier is: this package must
// not import txpool, the wiring runs the other way in cmd/ckbnode.
type TxSource interface {
	Submit(tx *types.Transaction) error
	Get(hash common.Hash) *types.Transaction
}

// CompactBlock announces a new block by its cellbase plus the short ids
// of its remaining transactions, so a peer that already holds most of
// the mempool's contents can reconstruct the block without a full-body
// round trip (§4.7 "compact blocks announce cellbase + short IDs with
// fallback request for missing full transactions").
type CompactBlock struct {
	Header       *types.Header
	Cellbase     *types.Transaction
	ShortIDs     []types.ProposalShortID
	Prefilled    map[int]*types.Transaction // index -> tx, for entries the sender already knows aren't in our peer's mempool
}

// relay is the post-IBD propagation half of this package: new
// transactions announced by hash through each peer's known-filter, and
// new blocks announced compact-first with a full-body fallback (§4.7
// "Relay").
type relay struct {
	peers *PeerSet
	txs   TxSource
}

func newRelay(peers *PeerSet, txs TxSource) *relay {
	return &relay{peers: peers, txs: txs}
}

// AnnounceTransaction tells every peer that hasn't already seen hash
// about it, and marks it known so the same peer is never told twice
// (§4.7, §5 "never shared across peers").
func (r *relay) AnnounceTransaction(hash common.Hash, from *Peer) {
	for _, p := range r.peers.All() {
		if p == from || p.KnowsTx(hash) {
			continue
		}
		p.MarkKnownTx(hash)
		if err := p.transport.SendTransactionHashes([]common.Hash{hash}); err != nil {
			p.transport.Disconnect(err.Error())
			continue
		}
		txAnnouncedMeter.Mark(1)
	}
}

// ReceiveTransactionHashes is called with hashes a peer announced that we
// don't already have; the caller is expected to follow up with a getdata
// equivalent for any hash not already resolved from txs.
func (r *relay) ReceiveTransactionHashes(hashes []common.Hash, from *Peer) []common.Hash {
	var unknown []common.Hash
	for _, h := range hashes {
		from.MarkKnownTx(h)
		if r.txs.Get(h) == nil {
			unknown = append(unknown, h)
		}
	}
	return unknown
}

// AnnounceBlock sends a compact block to every peer that hasn't seen it
// yet, falling back to a full block only when a peer explicitly asks for
// the bodies it couldn't reconstruct.
func (r *relay) AnnounceBlock(block *types.Block, cb *CompactBlock, from *Peer) {
	hash := block.Hash()
	for _, p := range r.peers.All() {
		if p == from || p.KnowsBlock(hash) {
			continue
		}
		p.MarkKnownBlock(hash)
		if err := p.transport.SendCompactBlock(cb); err != nil {
			p.transport.Disconnect(err.Error())
			continue
		}
		blockAnnouncedMeter.Mark(1)
	}
}

// BuildCompactBlock assembles the announcement for a freshly accepted
// block: the cellbase is always inline since relay peers rarely already
// hold it, every other transaction is reduced to its short id.
func BuildCompactBlock(block *types.Block) *CompactBlock {
	nonCellbase := block.NonCellbaseTransactions()
	shortIDs := make([]types.ProposalShortID, len(nonCellbase))
	for i, tx := range nonCellbase {
		shortIDs[i] = tx.ShortID()
	}
	return &CompactBlock{
		Header:   block.Header,
		Cellbase: block.Cellbase(),
		ShortIDs: shortIDs,
	}
}

// ResolveCompactBlock places a compact announcement's prefilled
// transactions at their indexes and returns the indexes of every other
// transaction so the caller can request just those bodies (§4.7
// "fallback request for missing full transactions"). txs is not
// consulted: short ids are not matched against the mempool, so every
// transaction that is not prefilled is reported missing.
func ResolveCompactBlock(cb *CompactBlock, txs TxSource) (resolved []*types.Transaction, missing []uint32) {
	resolved = make([]*types.Transaction, len(cb.ShortIDs))
	for i := range cb.ShortIDs {
		if prefilled, ok := cb.Prefilled[i]; ok {
			resolved[i] = prefilled
			continue
		}
		missing = append(missing, uint32(i))
	}
	return resolved, missing
}
