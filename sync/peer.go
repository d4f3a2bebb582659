package sync

import (
	"encoding/binary"
	"sync"
	"time"

	uuid "github.com/hashicorp/go-uuid"
	"github.com/steakknife/bloomfilter"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/types"
)

// ResponseBucket classifies a peer by its recent round-trip behavior, and
// sizes the next scheduling batch handed to it (§4.7 "sized by the peer's
// recent response-time bucket").
type ResponseBucket int

const (
	BucketFast ResponseBucket = iota
	BucketNormal
	BucketSlow
)

func (b ResponseBucket) batchSize() int {
	switch b {
	case BucketFast:
		return 128
	case BucketNormal:
		return 32
	default:
		return 8
	}
}

// PeerTransport is the wire-level collaborator a Peer drives; the framing,
// compression, and actual socket I/O live in the transport/peer-store
// implementation named as an external interface in §6. This package never
// reaches past it.
type PeerTransport interface {
	SendGetHeaders(locator []common.Hash, maxHeaders int) error
	SendHeaders(headers []*types.Header) error
	SendGetBlocks(numbers []uint64) error
	SendBlock(block *types.Block) error
	SendTransactionHashes(hashes []common.Hash) error
	SendTransactions(txs []*types.Transaction) error
	SendCompactBlock(cb *CompactBlock) error
	SendGetBlockTransactions(blockHash common.Hash, indexes []uint32) error
	Disconnect(reason string)
}

// blockRequest is one in-flight (peer, block number) assignment (§4.7
// "set of blocks currently in-flight from this peer with individual
// deadlines").
type blockRequest struct {
	Number   uint64
	Deadline time.Time
}

// Peer is this package's bookkeeping for one connected remote: best-known
// header, the last common ancestor with our chain, in-flight block
// requests, and the dedup structures relay uses to avoid echoing
// announcements back to their source. Modeled on the teacher's basePeer
// (node/cn/peer.go): one struct per connection, guarded by its own lock,
// holding a knownBlocks cache and an async transport rather than writing
// to the socket inline.
type Peer struct {
	id        string
	sessionID string
	transport PeerTransport

	mu sync.Mutex

	bestHash   common.Hash
	bestNumber uint64

	lastCommonHash   common.Hash
	lastCommonNumber uint64

	bucket      ResponseBucket
	misbehavior int

	inFlight map[uint64]*blockRequest

	knownBlocks common.Cache
	knownTxs    *bloomfilter.Filter
}

// NewPeer wraps transport with the bookkeeping this package needs. sessionID
// is a caller-supplied correlation id logged alongside every misbehavior
// and disconnect event so a reused peer id across reconnects doesn't blur
// distinct sessions together in the logs; if the caller doesn't have one
// yet, one is minted here.
func NewPeer(id, sessionID string, transport PeerTransport, cfg Config) (*Peer, error) {
	if sessionID == "" {
		generated, err := uuid.GenerateUUID()
		if err != nil {
			return nil, err
		}
		sessionID = generated
	}
	knownBlocks, err := common.NewCache(common.LRUConfig{CacheSize: cfg.KnownBlockCacheSize})
	if err != nil {
		return nil, err
	}
	// steakknife/bloomfilter targets a 1% false-positive rate at the
	// configured capacity; a false positive here only costs a redundant
	// suppressed announcement, never a correctness violation (§5 "never
	// shared across peers").
	filter, err := bloomfilter.NewOptimal(cfg.KnownTxFilterCapacity, 0.01)
	if err != nil {
		return nil, err
	}
	return &Peer{
		id:          id,
		sessionID:   sessionID,
		transport:   transport,
		bucket:      BucketNormal,
		inFlight:    make(map[uint64]*blockRequest),
		knownBlocks: knownBlocks,
		knownTxs:    filter,
	}, nil
}

func (p *Peer) ID() string { return p.id }

// SetBestKnown updates the peer's advertised tip (§4.7 "on receipt of a
// better tip announcement").
func (p *Peer) SetBestKnown(hash common.Hash, number uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if number > p.bestNumber || p.bestNumber == 0 {
		p.bestHash, p.bestNumber = hash, number
	}
}

func (p *Peer) BestKnown() (common.Hash, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bestHash, p.bestNumber
}

func (p *Peer) SetLastCommon(hash common.Hash, number uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastCommonHash, p.lastCommonNumber = hash, number
}

func (p *Peer) LastCommon() (common.Hash, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCommonHash, p.lastCommonNumber
}

// hash64 adapts a common.Hash's leading 8 bytes to hash.Hash64, the
// interface steakknife/bloomfilter consumes; the filter only needs a
// well-distributed 64-bit digest, and the protocol hash function family
// already gives every Hash uniform bits.
type hash64 uint64

func (h hash64) Write(p []byte) (int, error) { return len(p), nil }
func (h hash64) Sum(b []byte) []byte         { return b }
func (h hash64) Reset()                      {}
func (h hash64) Size() int                   { return 8 }
func (h hash64) BlockSize() int              { return 8 }
func (h hash64) Sum64() uint64               { return uint64(h) }

func hashDigest(h common.Hash) hash64 {
	return hash64(binary.BigEndian.Uint64(h[:8]))
}

// KnowsBlock reports whether hash was already seen from or sent to this
// peer (§4.7 known-filter).
func (p *Peer) KnowsBlock(hash common.Hash) bool {
	return p.knownBlocks.Contains(hash)
}

func (p *Peer) MarkKnownBlock(hash common.Hash) {
	p.knownBlocks.Add(hash, struct{}{})
}

// KnowsTx reports whether hash is in the peer's known-transaction filter.
// A false positive only suppresses a redundant send; it never causes a
// transaction to go unpropagated network-wide, since every other peer's
// filter is independent (§5).
func (p *Peer) KnowsTx(hash common.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.knownTxs.Contains(hashDigest(hash))
}

func (p *Peer) MarkKnownTx(hash common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.knownTxs.Add(hashDigest(hash))
}

// AddInFlight records a new outstanding block request, failing if the
// peer is already at its per-peer cap (§5 backpressure).
func (p *Peer) AddInFlight(number uint64, deadline time.Time, cap int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.inFlight) >= cap {
		return false
	}
	p.inFlight[number] = &blockRequest{Number: number, Deadline: deadline}
	return true
}

func (p *Peer) RemoveInFlight(number uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, number)
}

func (p *Peer) InFlightCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight)
}

// ExpiredInFlight returns, and clears, every in-flight request whose
// deadline has passed as of now (§4.7 "a deadline triggers re-assignment").
func (p *Peer) ExpiredInFlight(now time.Time) []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var expired []uint64
	for number, req := range p.inFlight {
		if now.After(req.Deadline) {
			expired = append(expired, number)
			delete(p.inFlight, number)
		}
	}
	return expired
}

// Misbehave increments the peer's score by delta and reports whether it
// has crossed threshold (§4.7 "exceeding the ban threshold disconnects
// and bans").
func (p *Peer) Misbehave(delta, threshold int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.misbehavior += delta
	return p.misbehavior >= threshold
}

func (p *Peer) MisbehaviorScore() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.misbehavior
}

// SetBucket reclassifies the peer's response-time bucket, called after
// observing how long a batch took to arrive.
func (p *Peer) SetBucket(b ResponseBucket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bucket = b
}

func (p *Peer) Bucket() ResponseBucket {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bucket
}

func (p *Peer) BatchSize() int {
	return p.Bucket().batchSize()
}
