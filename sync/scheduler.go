package sync

import (
	"sync"
	"time"

	"gopkg.in/karalabe/cookiejar.v2/collections/prque"

	"github.com/nervosnetwork/ckb-go/params"
)

// assignment is one candidate block number waiting to be, or already,
// requested from a peer.
type assignment struct {
	number   uint64
	peerID   string
	deadline time.Time
}

// scheduler turns "my last-common ancestor with peer X is N, peer X's
// best-known is M" into bounded, non-overlapping block-download batches
// (§4.7 "Block scheduling"): candidates run from last-common+1 to
// best-known, batch size follows the peer's response bucket, no block is
// ever asked of more than one peer at a time, and a missed deadline frees
// the slot for reassignment.
//
// In-flight assignments are kept in a deadline-ordered priority queue
// (earliest deadline first) so a tick only has to peek the head instead
// of scanning every outstanding request.
type scheduler struct {
	mu      sync.Mutex
	pending *prque.Prque
	byNumber map[uint64]*assignment
	global  int
}

func newScheduler() *scheduler {
	return &scheduler{
		pending:  prque.New(),
		byNumber: make(map[uint64]*assignment),
	}
}

// candidates returns up to want block numbers in [from, through] that are
// not already in flight with any peer.
func (s *scheduler) candidates(from, through uint64, want int) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uint64
	for n := from; n <= through && len(out) < want; n++ {
		if _, busy := s.byNumber[n]; !busy {
			out = append(out, n)
		}
	}
	return out
}

// assign records that number is now in flight with peerID, enforcing the
// per-peer and global in-flight caps (§5 backpressure, §8 invariant).
func (s *scheduler) assign(peer *Peer, number uint64, timeout time.Duration, globalCap int) bool {
	s.mu.Lock()
	if s.global >= globalCap {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	deadline := time.Now().Add(timeout)
	if !peer.AddInFlight(number, deadline, params.PeerInFlightCapPerPeer) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a := &assignment{number: number, peerID: peer.ID(), deadline: deadline}
	s.byNumber[number] = a
	// Prque is a max-heap ordered by priority; negate the deadline's unix
	// nanos so the earliest deadline surfaces first.
	s.pending.Push(a, -float32(deadline.UnixNano()))
	s.global++
	return true
}

// complete clears an in-flight assignment once its block arrives or its
// peer is reassigned elsewhere.
func (s *scheduler) complete(number uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byNumber[number]; ok {
		delete(s.byNumber, number)
		s.global--
	}
}

// expired pops every assignment whose deadline has already passed,
// freeing their slots so the caller can reassign and penalize the slow
// peer (§4.7 "a deadline triggers re-assignment"). Prque exposes no peek,
// so the head is popped, tested, and pushed back the moment it isn't due.
func (s *scheduler) expired(now time.Time) []*assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*assignment
	for !s.pending.Empty() {
		v, priority := s.pending.Pop()
		a := v.(*assignment)
		if -priority > float32(now.UnixNano()) {
			s.pending.Push(a, priority)
			break
		}
		if current, ok := s.byNumber[a.number]; ok && current == a {
			delete(s.byNumber, a.number)
			s.global--
			out = append(out, a)
		}
	}
	return out
}

func (s *scheduler) globalInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.global
}
