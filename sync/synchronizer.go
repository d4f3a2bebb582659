package sync

import (
	"sync"
	"time"

	"github.com/nervosnetwork/ckb-go/chain"
	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/params"
	"github.com/nervosnetwork/ckb-go/pkg/log"
	"github.com/nervosnetwork/ckb-go/types"
)

var logger = log.NewModuleLogger(log.Sync)

// Synchronizer drives headers-first catch-up and steady-state block
// scheduling across every connected peer, and owns the relay loop once
// IBD is no longer engaged (§4.7).
type Synchronizer struct {
	cfg   Config
	chain *chain.Chain

	peers     *PeerSet
	headers   *headerIndex
	scheduler *scheduler
	relay     *relay

	wg     sync.WaitGroup
	stopCh chan struct{}

	mu  sync.Mutex
	ibd bool
}

// New wires a Synchronizer against an already-constructed chain, the
// same dependency direction chain.PoolNotifier established: this package
// depends on chain, never the reverse.
func New(cfg Config, c *chain.Chain, genesis *types.Header, txs TxSource) *Synchronizer {
	cfg = cfg.sanitize()
	s := &Synchronizer{
		cfg:       cfg,
		chain:     c,
		peers:     NewPeerSet(),
		headers:   newHeaderIndex(genesis),
		scheduler: newScheduler(),
		stopCh:    make(chan struct{}),
	}
	s.relay = newRelay(s.peers, txs)
	return s
}

// Start launches the background tick loop that drives deadline
// reassignment, IBD detection, and scheduling. It returns immediately;
// Stop blocks until the loop has fully drained (a SUPPLEMENTED FEATURES
// requirement shared with chain.Chain and txpool.Pool).
func (s *Synchronizer) Start() {
	s.wg.Add(1)
	go s.loop()
}

func (s *Synchronizer) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Synchronizer) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Synchronizer) tick() {
	peerCountGauge.Update(int64(s.peers.Len()))
	inFlightGauge.Update(int64(s.scheduler.globalInFlight()))
	s.refreshIBDState()
	s.reassignExpired()
	s.scheduleBlocks()
}

// refreshIBDState engages Initial Block Download when the local tip's
// timestamp has fallen more than IBDLagThreshold behind wall clock, and
// disengages it once caught up (§4.7 "engaged whenever the tip's
// timestamp lags wall clock by more than a threshold").
func (s *Synchronizer) refreshIBDState() {
	hash, _ := s.chain.Tip()
	header, ok := s.chain.HeaderByHash(hash)
	if !ok {
		return
	}
	lag := time.Since(time.UnixMilli(int64(header.Timestamp)))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ibd = lag > s.cfg.IBDLagThreshold
}

func (s *Synchronizer) InIBD() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ibd
}

// reassignExpired releases every block request past its deadline,
// penalizes the peer that missed it, and bans peers that cross the
// misbehavior threshold (§4.7, §7).
func (s *Synchronizer) reassignExpired() {
	for _, p := range s.peers.All() {
		for _, number := range p.ExpiredInFlight(time.Now()) {
			s.scheduler.complete(number)
			blockTimeoutCounter.Inc(1)
			if p.Misbehave(params.MisbehaviorScoreMinor, s.cfg.MisbehaviorBanThreshold) {
				peerBannedCounter.Inc(1)
				p.transport.Disconnect("exceeded misbehavior threshold on block request timeout")
				s.peers.Unregister(p.ID())
			}
		}
	}
}

// scheduleBlocks assigns unclaimed candidate block numbers to peers known
// to have them, one peer per number, bounded by each peer's response
// bucket and by the per-peer/global in-flight caps (§4.7, §5, §8).
func (s *Synchronizer) scheduleBlocks() {
	_, localNumber := s.chain.Tip()
	for _, p := range s.peers.PeersAhead(localNumber) {
		if p.InFlightCount() >= s.cfg.PeerInFlightCap {
			continue
		}
		if s.scheduler.globalInFlight() >= s.cfg.GlobalInFlightCap {
			return
		}
		lastCommon, lastNumber := p.LastCommon()
		if lastCommon == (common.Hash{}) {
			lastNumber = localNumber
		}
		_, best := p.BestKnown()
		want := p.BatchSize() - p.InFlightCount()
		if want <= 0 {
			continue
		}
		for _, number := range s.scheduler.candidates(lastNumber+1, best, want) {
			if !s.scheduler.assign(p, number, s.cfg.BlockRequestTimeout, s.cfg.GlobalInFlightCap) {
				break
			}
			if err := p.transport.SendGetBlocks([]uint64{number}); err != nil {
				p.transport.Disconnect(err.Error())
				break
			}
		}
	}
}

// OnPeerConnected registers p and sends it our current locator, starting
// headers-first exchange (§4.7 "sent on connect").
func (s *Synchronizer) OnPeerConnected(p *Peer) error {
	if err := s.peers.Register(p); err != nil {
		return err
	}
	tip, _ := s.chain.Tip()
	locator := s.headers.locator(tip)
	return p.transport.SendGetHeaders(locator, s.cfg.MaxHeaders)
}

func (s *Synchronizer) OnPeerDisconnected(id string) {
	s.peers.Unregister(id)
}

// HandleHeaders validates each header non-contextually (PoW and version
// ceiling only — full contextual and script verification needs the body,
// which hasn't arrived yet), links it into the header-only index, and
// advances the sending peer's best-known tip (§4.7 "Validate each header
// non-contextually, link to parent, store, update peer's best-known").
func (s *Synchronizer) HandleHeaders(from *Peer, headers []*types.Header) error {
	headersReceivedMeter.Mark(int64(len(headers)))
	for _, h := range headers {
		if !h.MeetsTarget() || h.Version > params.BlockVersionMax {
			if from.Misbehave(params.MisbehaviorScoreMajor, s.cfg.MisbehaviorBanThreshold) {
				from.transport.Disconnect("sent header failing proof of work or version ceiling")
			}
			return &SyncError{PeerID: from.ID(), Severity: SeverityMajor, Cause: ErrMalformedMessage}
		}
		if !s.headers.add(h) {
			// Orphan header: out of order relative to what we've linked so
			// far. Not itself evidence of misbehavior — headers can arrive
			// reordered across batches.
			continue
		}
		from.SetBestKnown(h.Hash(), h.Number)
	}
	return nil
}

// HandleBlock hands a fully assembled block to the chain service, which
// performs the actual contextual, script, and fork-choice work (§4.6);
// this package's job ends at scheduling and dedup bookkeeping.
func (s *Synchronizer) HandleBlock(from *Peer, block *types.Block) (chain.ProcessResult, error) {
	blocksReceivedMeter.Mark(1)
	s.scheduler.complete(block.Number())
	from.RemoveInFlight(block.Number())
	from.MarkKnownBlock(block.Hash())

	result, err := s.chain.Process(block)
	if err != nil {
		if from.Misbehave(params.MisbehaviorScoreMajor, s.cfg.MisbehaviorBanThreshold) {
			from.transport.Disconnect("submitted block failed verification")
		}
		return result, &SyncError{PeerID: from.ID(), Severity: SeverityMajor, Cause: err}
	}
	if result == chain.ResultExtended {
		from.SetLastCommon(block.Hash(), block.Number())
		s.relay.AnnounceBlock(block, BuildCompactBlock(block), from)
	}
	return result, nil
}

// Relay exposes the propagation half for callers that need to announce a
// locally submitted transaction.
func (s *Synchronizer) Relay() *relay { return s.relay }

func (s *Synchronizer) Peers() *PeerSet { return s.peers }
