package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/types"
)

func header(number uint64, parent common.Hash) *types.Header {
	return &types.Header{
		CompactTarget: types.CompactTarget(0x21000000),
		Timestamp:     uint64(number) * 1000,
		Number:        number,
		ParentHash:    parent,
	}
}

func chainOfHeaders(n int) []*types.Header {
	headers := make([]*types.Header, n)
	var parent common.Hash
	for i := 0; i < n; i++ {
		h := header(uint64(i), parent)
		headers[i] = h
		parent = h.Hash()
	}
	return headers
}

func TestHeaderIndexLinksInOrderAndRejectsOrphans(t *testing.T) {
	headers := chainOfHeaders(3)
	idx := newHeaderIndex(headers[0])

	require.True(t, idx.add(headers[1]))
	require.True(t, idx.add(headers[2]))

	orphan := header(10, common.Hash{0xff})
	require.False(t, idx.add(orphan))
}

func TestHeaderIndexAncestorIsConsistent(t *testing.T) {
	headers := chainOfHeaders(20)
	idx := newHeaderIndex(headers[0])
	for _, h := range headers[1:] {
		require.True(t, idx.add(h))
	}

	tip := headers[19].Hash()
	first, ok := idx.ancestor(tip, 5)
	require.True(t, ok)
	require.Equal(t, headers[5].Hash(), first)

	// Repeated queries against the same tip and number must agree, since
	// headers never mutate once linked.
	second, ok := idx.ancestor(tip, 5)
	require.True(t, ok)
	require.Equal(t, first, second)

	_, ok = idx.ancestor(tip, 50)
	require.False(t, ok)
}

func TestHeaderIndexLocatorIncludesGenesisAndRecentTip(t *testing.T) {
	headers := chainOfHeaders(30)
	idx := newHeaderIndex(headers[0])
	for _, h := range headers[1:] {
		require.True(t, idx.add(h))
	}

	loc := idx.locator(headers[29].Hash())
	require.NotEmpty(t, loc)
	require.Equal(t, headers[29].Hash(), loc[0])
	require.Equal(t, headers[0].Hash(), loc[len(loc)-1])
}

func TestPeerInFlightRespectsPerPeerCap(t *testing.T) {
	p, err := NewPeer("peer-1", "session-1", nil, DefaultConfig)
	require.NoError(t, err)

	require.True(t, p.AddInFlight(1, time.Now().Add(time.Minute), 2))
	require.True(t, p.AddInFlight(2, time.Now().Add(time.Minute), 2))
	require.False(t, p.AddInFlight(3, time.Now().Add(time.Minute), 2))
	require.Equal(t, 2, p.InFlightCount())
}

func TestPeerExpiredInFlightClearsPastDeadlines(t *testing.T) {
	p, err := NewPeer("peer-1", "session-1", nil, DefaultConfig)
	require.NoError(t, err)

	past := time.Now().Add(-time.Second)
	future := time.Now().Add(time.Hour)
	require.True(t, p.AddInFlight(1, past, 10))
	require.True(t, p.AddInFlight(2, future, 10))

	expired := p.ExpiredInFlight(time.Now())
	require.Equal(t, []uint64{1}, expired)
	require.Equal(t, 1, p.InFlightCount())
}

func TestPeerMisbehaviorCrossesThreshold(t *testing.T) {
	p, err := NewPeer("peer-1", "session-1", nil, DefaultConfig)
	require.NoError(t, err)

	require.False(t, p.Misbehave(40, 100))
	require.False(t, p.Misbehave(40, 100))
	require.True(t, p.Misbehave(40, 100))
}

func TestPeerKnownTxFilterSuppressesRepeatAnnouncement(t *testing.T) {
	p, err := NewPeer("peer-1", "session-1", nil, DefaultConfig)
	require.NoError(t, err)

	var hash common.Hash
	hash[0] = 0x42
	require.False(t, p.KnowsTx(hash))
	p.MarkKnownTx(hash)
	require.True(t, p.KnowsTx(hash))
}

func TestPeerSetBestPeerPicksHighestBestKnown(t *testing.T) {
	ps := NewPeerSet()
	a, _ := NewPeer("a", "sa", nil, DefaultConfig)
	b, _ := NewPeer("b", "sb", nil, DefaultConfig)
	a.SetBestKnown(common.Hash{1}, 5)
	b.SetBestKnown(common.Hash{2}, 9)
	require.NoError(t, ps.Register(a))
	require.NoError(t, ps.Register(b))

	require.Equal(t, "b", ps.BestPeer().ID())
	require.Len(t, ps.PeersAhead(6), 1)
}

func TestPeerSetRejectsDuplicateRegistration(t *testing.T) {
	ps := NewPeerSet()
	a, _ := NewPeer("a", "sa", nil, DefaultConfig)
	require.NoError(t, ps.Register(a))
	require.ErrorIs(t, ps.Register(a), ErrPeerAlreadyKnown)
}

func TestSchedulerAssignEnforcesGlobalCap(t *testing.T) {
	s := newScheduler()
	p, err := NewPeer("peer-1", "session-1", nil, DefaultConfig)
	require.NoError(t, err)

	require.True(t, s.assign(p, 1, time.Minute, 1))
	require.False(t, s.assign(p, 2, time.Minute, 1))
	require.Equal(t, 1, s.globalInFlight())
}

func TestSchedulerExpiredFreesSlotForReassignment(t *testing.T) {
	s := newScheduler()
	p, err := NewPeer("peer-1", "session-1", nil, DefaultConfig)
	require.NoError(t, err)

	require.True(t, s.assign(p, 1, -time.Minute, 10))
	expired := s.expired(time.Now())
	require.Len(t, expired, 1)
	require.Equal(t, uint64(1), expired[0].number)
	require.Equal(t, 0, s.globalInFlight())
}

func TestSchedulerCandidatesSkipsInFlightNumbers(t *testing.T) {
	s := newScheduler()
	p, err := NewPeer("peer-1", "session-1", nil, DefaultConfig)
	require.NoError(t, err)
	require.True(t, s.assign(p, 5, time.Minute, 10))

	candidates := s.candidates(1, 10, 100)
	for _, c := range candidates {
		require.NotEqual(t, uint64(5), c)
	}
	require.Len(t, candidates, 9)
}
