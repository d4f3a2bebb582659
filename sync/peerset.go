package sync

import "sync"

// PeerSet is the collection of currently connected peers, modeled on the
// teacher's peerSet (node/cn/peer.go): a locked map plus the handful of
// filtered views the scheduler and relay loops need.
type PeerSet struct {
	mu     sync.RWMutex
	peers  map[string]*Peer
	closed bool
}

func NewPeerSet() *PeerSet {
	return &PeerSet{peers: make(map[string]*Peer)}
}

func (ps *PeerSet) Register(p *Peer) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.closed {
		return ErrUnknownPeer
	}
	if _, ok := ps.peers[p.ID()]; ok {
		return ErrPeerAlreadyKnown
	}
	ps.peers[p.ID()] = p
	return nil
}

func (ps *PeerSet) Unregister(id string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if _, ok := ps.peers[id]; !ok {
		return ErrUnknownPeer
	}
	delete(ps.peers, id)
	return nil
}

func (ps *PeerSet) Peer(id string) (*Peer, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	p, ok := ps.peers[id]
	return p, ok
}

func (ps *PeerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.peers)
}

func (ps *PeerSet) All() []*Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	list := make([]*Peer, 0, len(ps.peers))
	for _, p := range ps.peers {
		list = append(list, p)
	}
	return list
}

// BestPeer returns the peer advertising the highest best-known block
// number, the candidate for the single outbound peer IBD's headers phase
// uses (§4.7 "only one selected outbound peer is used for headers
// synchronization").
func (ps *PeerSet) BestPeer() *Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	var best *Peer
	var bestNumber uint64
	for _, p := range ps.peers {
		_, number := p.BestKnown()
		if best == nil || number > bestNumber {
			best, bestNumber = p, number
		}
	}
	return best
}

// PeersAhead returns every peer whose best-known number exceeds localTip,
// the candidate set IBD's block-download phase parallelizes across
// (§4.7 "may parallelize across multiple peers known to have the target
// chain").
func (ps *PeerSet) PeersAhead(localTip uint64) []*Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	var list []*Peer
	for _, p := range ps.peers {
		if _, number := p.BestKnown(); number > localTip {
			list = append(list, p)
		}
	}
	return list
}

func (ps *PeerSet) Close() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.closed = true
}
