package txpool

import (
	"sort"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/params"
	"github.com/nervosnetwork/ckb-go/pkg/log"
	"github.com/nervosnetwork/ckb-go/types"
	"github.com/nervosnetwork/ckb-go/verifier"
)

var logger = log.NewModuleLogger(log.TxPool)

var (
	admittedCounter = metrics.NewRegisteredCounter("txpool/admitted", nil)
	rejectedCounter = metrics.NewRegisteredCounter("txpool/rejected", nil)
	evictedCounter  = metrics.NewRegisteredCounter("txpool/evicted", nil)
	poolSizeGauge   = metrics.NewRegisteredGauge("txpool/size_bytes", nil)
	poolCyclesGauge = metrics.NewRegisteredGauge("txpool/cycles", nil)
)

// TipResolver is how the pool reaches the rest of the node: a resolution
// Context over the current canonical tip's cell set, the tip's own block
// number, and a release func for whatever snapshot backs the Context.
// The chain service implements this; the pool never touches cellset or
// store directly (same separation the verifier package draws).
type TipResolver interface {
	Resolve() (ctx *verifier.Context, tipNumber uint64, release func(), err error)
}

// Pool is the §4.5 Tx Pool: pending/gap/proposed staging plus a
// recently-committed cache for reorg replay.
type Pool struct {
	cfg      Config
	txv      *verifier.TransactionVerifier
	resolver TipResolver

	mu       sync.RWMutex
	pending  map[common.Hash]*entry
	gap      map[common.Hash]*entry
	proposed map[common.Hash]*entry
	byShort  map[types.ProposalShortID]common.Hash // proposed entries, indexed by short id
	byOutput map[types.OutPoint]common.Hash        // pool-visible outpoints -> owning tx hash, for in-pool parent detection

	committed common.Cache // recently committed entries, keyed by tx hash

	totalSize   uint64
	totalCycles uint64

	wg     sync.WaitGroup
	closed chan struct{}
}

// New constructs a Pool and starts its expiry-sweep loop (mirrors the
// teacher's NewBridgeTxPool: sanitize config, then spin up the
// background loop before returning).
func New(cfg Config, txv *verifier.TransactionVerifier, resolver TipResolver) (*Pool, error) {
	cfg = cfg.sanitize()

	committed, err := common.NewCache(common.LRUConfig{CacheSize: 4096})
	if err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:       cfg,
		txv:       txv,
		resolver:  resolver,
		pending:   make(map[common.Hash]*entry),
		gap:       make(map[common.Hash]*entry),
		proposed:  make(map[common.Hash]*entry),
		byShort:   make(map[types.ProposalShortID]common.Hash),
		byOutput:  make(map[types.OutPoint]common.Hash),
		committed: committed,
		closed:    make(chan struct{}),
	}

	p.wg.Add(1)
	go p.loop()

	return p, nil
}

func (p *Pool) loop() {
	defer p.wg.Done()

	reap := time.NewTicker(p.cfg.ReapInterval)
	defer reap.Stop()

	for {
		select {
		case <-reap.C:
			p.mu.Lock()
			p.reapExpiredLocked()
			p.mu.Unlock()
		case <-p.closed:
			logger.Info("txpool loop is closing")
			return
		}
	}
}

// Stop terminates the pool's background loop (mirrors BridgeTxPool.Stop).
func (p *Pool) Stop() {
	close(p.closed)
	p.wg.Wait()
	logger.Info("txpool stopped")
}

func (p *Pool) reapExpiredLocked() {
	cutoff := time.Now().Add(-p.cfg.ExpireAfter)
	for _, set := range []map[common.Hash]*entry{p.pending, p.gap, p.proposed} {
		for hash, e := range set {
			if e.AddedAt.Before(cutoff) {
				p.evictLocked(hash, e)
			}
		}
	}
}

// lookupLocked finds an entry in any of the three live sets.
func (p *Pool) lookupLocked(hash common.Hash) (*entry, bool) {
	if e, ok := p.pending[hash]; ok {
		return e, true
	}
	if e, ok := p.gap[hash]; ok {
		return e, true
	}
	if e, ok := p.proposed[hash]; ok {
		return e, true
	}
	return nil, false
}

// Submit admits tx into the pool (§4.5 admission). It resolves inputs
// against the current tip, classifies an otherwise-valid transaction
// with an unresolved input as a gap entry rather than rejecting it
// outright (the spec's "pending but waiting on an unresolved input that
// is expected to appear"), and runs the full Transaction Verifier
// before enforcing fee-rate, size, cycle, and ancestor-depth caps.
func (p *Pool) Submit(tx *types.Transaction) error {
	hash := tx.Hash()

	p.mu.Lock()
	if _, ok := p.lookupLocked(hash); ok {
		p.mu.Unlock()
		rejectedCounter.Inc(1)
		return &PoolError{TxHash: hash, Cause: ErrKnownTransaction}
	}
	if _, ok := p.committed.Get(hash); ok {
		p.mu.Unlock()
		rejectedCounter.Inc(1)
		return &PoolError{TxHash: hash, Cause: ErrKnownTransaction}
	}
	p.mu.Unlock()

	ctx, _, release, err := p.resolver.Resolve()
	if err != nil {
		rejectedCounter.Inc(1)
		return &PoolError{TxHash: hash, Cause: err}
	}
	defer release()

	e := &entry{
		Tx:      tx,
		Hash:    hash,
		ShortID: tx.ShortID(),
		Size:    tx.SerializedSize(),
		Parents: make(map[common.Hash]bool),
		AddedAt: time.Now(),
	}

	p.mu.RLock()
	for _, in := range tx.Inputs {
		if parent, ok := p.byOutput[in.PreviousCell]; ok {
			e.Parents[parent] = true
		}
	}
	p.mu.RUnlock()

	missing := p.firstUnresolvedInput(tx, ctx)
	if missing != nil {
		e.State = stateGap
		e.MissingInput = missing
		p.mu.Lock()
		p.gap[hash] = e
		p.indexOutputsLocked(e)
		p.mu.Unlock()
		return nil
	}

	verdict, err := p.txv.Verify(tx, false, ctx, params.TxCycleLimit)
	if err != nil {
		rejectedCounter.Inc(1)
		return &PoolError{TxHash: hash, Cause: err}
	}
	e.Fee = verdict.Fee
	e.CyclesUsed = verdict.CyclesUsed

	if e.feeRatePerKB() < p.cfg.MinFeeRate {
		rejectedCounter.Inc(1)
		return &PoolError{TxHash: hash, Cause: ErrFeeRateTooLow}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ancestorChainLengthLocked(e) > p.cfg.MaxAncestors {
		rejectedCounter.Inc(1)
		return &PoolError{TxHash: hash, Cause: ErrTooManyAncestors}
	}
	if p.totalSize+e.Size > p.cfg.MaxPoolSizeBytes {
		rejectedCounter.Inc(1)
		return &PoolError{TxHash: hash, Cause: ErrPoolSizeExceeded}
	}
	if p.totalCycles+e.CyclesUsed > p.cfg.MaxCycles {
		rejectedCounter.Inc(1)
		return &PoolError{TxHash: hash, Cause: ErrPoolCyclesExceeded}
	}

	e.State = statePending
	p.pending[hash] = e
	p.indexOutputsLocked(e)
	p.totalSize += e.Size
	p.totalCycles += e.CyclesUsed
	poolSizeGauge.Update(int64(p.totalSize))
	poolCyclesGauge.Update(int64(p.totalCycles))
	admittedCounter.Inc(1)

	return nil
}

func (p *Pool) indexOutputsLocked(e *entry) {
	for i := range e.Tx.Outputs {
		p.byOutput[types.OutPoint{TxHash: e.Hash, Index: uint32(i)}] = e.Hash
	}
}

func (p *Pool) deindexOutputsLocked(e *entry) {
	for i := range e.Tx.Outputs {
		delete(p.byOutput, types.OutPoint{TxHash: e.Hash, Index: uint32(i)})
	}
}

// firstUnresolvedInput reports the first input that doesn't resolve
// against ctx, or nil if every input resolves.
func (p *Pool) firstUnresolvedInput(tx *types.Transaction, ctx *verifier.Context) *types.OutPoint {
	for _, in := range tx.Inputs {
		if _, ok := ctx.Cells.Get(in.PreviousCell); ok {
			continue
		}
		if _, ok := ctx.IntraBlockCells[in.PreviousCell]; ok {
			continue
		}
		op := in.PreviousCell
		return &op
	}
	return nil
}

// ancestorChainLengthLocked counts e's transitive in-pool ancestor set,
// the cap §4.5's admission rule enforces.
func (p *Pool) ancestorChainLengthLocked(e *entry) int {
	visited := make(map[common.Hash]bool)
	var walk func(h common.Hash)
	walk = func(h common.Hash) {
		if visited[h] {
			return
		}
		visited[h] = true
		anc, ok := p.lookupLocked(h)
		if !ok {
			return
		}
		for parent := range anc.Parents {
			walk(parent)
		}
	}
	for parent := range e.Parents {
		walk(parent)
	}
	return len(visited)
}

func (p *Pool) evictLocked(hash common.Hash, e *entry) {
	delete(p.pending, hash)
	delete(p.gap, hash)
	delete(p.proposed, hash)
	delete(p.byShort, e.ShortID)
	p.deindexOutputsLocked(e)
	if e.State != stateGap {
		p.totalSize -= e.Size
		p.totalCycles -= e.CyclesUsed
		poolSizeGauge.Update(int64(p.totalSize))
		poolCyclesGauge.Update(int64(p.totalCycles))
	}
	evictedCounter.Inc(1)
}

// AttachBlock applies a newly-attached block's effect on the pool (§4.5
// "Block attached"): drop included transactions into the committed
// cache, promote pending entries whose short id the block proposed, and
// prune proposed entries whose activation window has closed.
func (p *Pool) AttachBlock(block *types.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, tx := range block.Transactions {
		hash := tx.Hash()
		if e, ok := p.lookupLocked(hash); ok {
			delete(p.pending, hash)
			delete(p.gap, hash)
			delete(p.proposed, hash)
			delete(p.byShort, e.ShortID)
			p.deindexOutputsLocked(e)
			if e.State != stateGap {
				p.totalSize -= e.Size
				p.totalCycles -= e.CyclesUsed
			}
			p.committed.Add(hash, e)
		}
	}

	blockNumber := block.Number()
	for _, shortID := range block.Proposals {
		for hash, e := range p.pending {
			if e.ShortID == shortID {
				delete(p.pending, hash)
				e.State = stateProposed
				e.ProposedAtBlock = blockNumber
				p.proposed[hash] = e
				p.byShort[shortID] = hash
				break
			}
		}
	}

	for hash, e := range p.proposed {
		if blockNumber > e.ProposedAtBlock+params.ProposalWindowFarthest {
			delete(p.proposed, hash)
			delete(p.byShort, e.ShortID)
			p.deindexOutputsLocked(e)
			p.totalSize -= e.Size
			p.totalCycles -= e.CyclesUsed
			evictedCounter.Inc(1)
		}
	}

	poolSizeGauge.Update(int64(p.totalSize))
	poolCyclesGauge.Update(int64(p.totalCycles))
}

// DetachBlock re-introduces a detached block's non-cellbase transactions
// as proposed entries, best effort (§4.5 "Block detached"): a
// transaction that no longer resolves against the reverted tip is
// dropped rather than failing the whole detach.
func (p *Pool) DetachBlock(block *types.Block) {
	ctx, _, release, err := p.resolver.Resolve()
	if err != nil {
		logger.Error("detach block: resolve failed, dropping re-admission", "err", err)
		return
	}
	defer release()

	for _, tx := range block.NonCellbaseTransactions() {
		hash := tx.Hash()

		p.mu.RLock()
		_, known := p.lookupLocked(hash)
		p.mu.RUnlock()
		if known {
			continue
		}

		verdict, err := p.txv.Verify(tx, false, ctx, params.TxCycleLimit)
		if err != nil {
			logger.Warn("detach block: re-admission failed, dropping transaction", "hash", hash.Hex(), "err", err)
			continue
		}

		e := &entry{
			Tx:              tx,
			Hash:            hash,
			ShortID:         tx.ShortID(),
			Fee:             verdict.Fee,
			CyclesUsed:      verdict.CyclesUsed,
			Size:            tx.SerializedSize(),
			Parents:         make(map[common.Hash]bool),
			AddedAt:         time.Now(),
			State:           stateProposed,
			ProposedAtBlock: block.Number(),
		}

		p.mu.Lock()
		p.proposed[hash] = e
		p.byShort[e.ShortID] = hash
		p.indexOutputsLocked(e)
		p.totalSize += e.Size
		p.totalCycles += e.CyclesUsed
		p.mu.Unlock()
	}
}

// Reorg replays a chain reorganization (§4.5 "Reorg"): detach the losing
// branch oldest-to-newest, then attach the winning branch in order.
func (p *Pool) Reorg(detach, attach []*types.Block) {
	for _, b := range detach {
		p.DetachBlock(b)
	}
	for _, b := range attach {
		p.AttachBlock(b)
	}
}

// Package selects proposed entries for a miner's next block (§4.5):
// fee-rate descending, respecting ancestor dependencies, until a byte,
// cycle, or count limit is reached.
func (p *Pool) Package(maxBytes, maxCycles uint64, maxCount int) []*types.Transaction {
	p.mu.RLock()
	remaining := make([]*entry, 0, len(p.proposed))
	for _, e := range p.proposed {
		remaining = append(remaining, e)
	}
	p.mu.RUnlock()

	sort.Slice(remaining, func(i, j int) bool {
		return remaining[i].feeRatePerKB() > remaining[j].feeRatePerKB()
	})

	included := make(map[common.Hash]bool, len(remaining))
	var result []*types.Transaction
	var usedBytes, usedCycles uint64

	for progressed := true; progressed && len(result) < maxCount; {
		progressed = false
		for _, e := range remaining {
			if included[e.Hash] {
				continue
			}
			if !p.ancestorsSatisfied(e, included) {
				continue
			}
			if usedBytes+e.Size > maxBytes || usedCycles+e.CyclesUsed > maxCycles {
				included[e.Hash] = true // not selectable; skip permanently
				continue
			}
			result = append(result, e.Tx)
			included[e.Hash] = true
			usedBytes += e.Size
			usedCycles += e.CyclesUsed
			progressed = true
			if len(result) >= maxCount {
				break
			}
		}
	}

	return result
}

// ancestorsSatisfied reports whether every in-pool parent of e has
// already been selected (or isn't itself in the proposed set, meaning
// it's already committed and therefore satisfied externally).
func (p *Pool) ancestorsSatisfied(e *entry, included map[common.Hash]bool) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for parent := range e.Parents {
		if _, inProposed := p.proposed[parent]; inProposed && !included[parent] {
			return false
		}
	}
	return true
}

// Len reports how many entries the pool currently holds, across all
// three live states.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pending) + len(p.gap) + len(p.proposed)
}

// Get returns a pooled transaction by hash, or nil if it isn't known.
func (p *Pool) Get(hash common.Hash) *types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if e, ok := p.lookupLocked(hash); ok {
		return e.Tx
	}
	return nil
}
