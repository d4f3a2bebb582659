package chain

import (
	"math/big"
	"sync"

	"github.com/nervosnetwork/ckb-go/cellset"
	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/pkg/event"
	"github.com/nervosnetwork/ckb-go/pkg/log"
	"github.com/nervosnetwork/ckb-go/store"
	"github.com/nervosnetwork/ckb-go/types"
	"github.com/nervosnetwork/ckb-go/verifier"
)

var logger = log.NewModuleLogger(log.Chain)

// Chain is the single writer of canonical state (§4.6). Every
// state-advancing call serializes through mu, the same single-lock
// discipline §5 requires over the cell set, header index, and tip
// pointer together: a reader observing the tip never sees it move out
// from under a cell-set lookup it is mid-way through.
type Chain struct {
	mu sync.Mutex

	cfg Config
	db  store.Manager

	cells *cellset.Set
	data  *cellDataSource
	txv   *verifier.TransactionVerifier
	pool  PoolNotifier

	headers   map[common.Hash]*headerEntry
	canonical map[uint64]common.Hash
	tip       common.Hash
	tipNumber uint64

	// attachedJournals holds the cellset.BlockJournal for every block
	// presently canonical, so a reorg detaching it can undo exactly what
	// AttachBlock applied without recomputation (§4.6).
	attachedJournals map[common.Hash]*cellset.BlockJournal

	orphans orphanPool
	invalid map[common.Hash]bool

	feed *event.Feed[TipEvent]

	genesis *types.Block
}

// New builds a chain service rooted at genesis. It is always a cold start:
// reconstructing an in-memory header index from a store a previous run
// left behind is out of scope for this module (see this package's
// DESIGN.md entry); a node restart replays from genesis or a snapshot
// import, neither of which lives here.
func New(cfg Config, db store.Manager, txv *verifier.TransactionVerifier, pool PoolNotifier, genesis *types.Block) (*Chain, error) {
	cfg = cfg.sanitize()

	cells, err := cellset.New(cfg.Cells, db)
	if err != nil {
		return nil, err
	}

	c := &Chain{
		cfg:              cfg,
		db:               db,
		cells:            cells,
		data:             newCellDataSource(cells, db),
		txv:              txv,
		pool:             pool,
		headers:          make(map[common.Hash]*headerEntry),
		canonical:        make(map[uint64]common.Hash),
		attachedJournals: make(map[common.Hash]*cellset.BlockJournal),
		orphans:          make(orphanPool),
		invalid:          make(map[common.Hash]bool),
		feed:             event.NewFeed[TipEvent](),
		genesis:          genesis,
	}

	genesisHash := genesis.Hash()
	journal, err := cells.AttachBlock(genesis, 0)
	if err != nil {
		return nil, err
	}
	if err := putCellData(db, genesis); err != nil {
		return nil, err
	}
	td := genesis.Header.CompactTarget.Difficulty()
	if err := c.persistHeaderAndBody(genesis, td); err != nil {
		return nil, err
	}

	c.headers[genesisHash] = &headerEntry{Header: genesis.Header, TotalDifficulty: td}
	c.canonical[0] = genesisHash
	c.attachedJournals[genesisHash] = journal
	c.tip = genesisHash
	c.tipNumber = 0

	return c, nil
}

// Subscribe returns a channel of canonical tip changes; Unsubscribe stops
// delivery (§4.6 step 7).
func (c *Chain) Subscribe() (<-chan TipEvent, event.Subscription) {
	return c.feed.Subscribe(c.cfg.TipEventBufferSize)
}

func (c *Chain) Tip() (common.Hash, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tip, c.tipNumber
}

func (c *Chain) HeaderByHash(h common.Hash) (*types.Header, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.headerByHashLocked(h)
	if !ok {
		return nil, false
	}
	return e.Header, true
}

// HeaderByNumber looks up the canonical header at number, or ok=false if
// number is beyond the current tip or was never canonical.
func (c *Chain) HeaderByNumber(number uint64) (*types.Header, bool) {
	c.mu.Lock()
	hash, ok := c.canonical[number]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	return c.HeaderByHash(hash)
}

// BlockByHash returns the full stored block body for hash, read straight
// from store.BodyDB, the same path getBlock uses internally during a
// reorg's branch walk.
func (c *Chain) BlockByHash(h common.Hash) (*types.Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getBlock(h)
}

// BlockByNumber resolves the canonical hash at number and returns its
// stored body.
func (c *Chain) BlockByNumber(number uint64) (*types.Block, bool) {
	c.mu.Lock()
	hash, ok := c.canonical[number]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	defer c.mu.Unlock()
	return c.getBlock(hash)
}

// LiveCell looks up a cell's current record and data bytes directly
// against the live cell set, for a point-in-time read that doesn't need
// the consistency TipContext's snapshot guarantees (cellset.Set.Get and
// cellDataSource.CellData each take their own lock, and c.cells/c.data
// are set once at construction, so this never touches c.mu).
func (c *Chain) LiveCell(op types.OutPoint) (rec *cellset.Record, data []byte, ok bool) {
	rec, ok = c.cells.Get(op)
	if !ok {
		return nil, nil, false
	}
	data, _ = c.data.CellData(op)
	return rec, data, true
}

// Process runs the §4.6 process-block pipeline: parent lookup, orphan
// parking, non-contextual and header-level contextual verification, fork
// choice by accumulated difficulty, and (when the new block out-weighs
// the current tip) a common-ancestor reorg with script-level verification
// deferred to attach time and rolled back on failure.
//
// Script/cell-level verification (VerifyTransactionsParallel) only ever
// runs against the live cell set, at the moment a block is actually being
// attached to it — whether that's a direct tip extension or a reorg's
// attach phase. A side branch that never overtakes the tip is stored with
// only header-level verification; this is a deliberate simplification
// recorded in this package's DESIGN.md (replaying every side branch's
// full cell-set state eagerly would mean one live cellset.Set per branch).
func (c *Chain) Process(block *types.Block) (ProcessResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processLocked(block)
}

func (c *Chain) processLocked(block *types.Block) (ProcessResult, error) {
	blockHash := block.Hash()

	if c.invalid[blockHash] {
		return 0, &ProcessError{BlockHash: blockHash, Cause: ErrKnownInvalid}
	}
	if _, ok := c.headers[blockHash]; ok {
		return ResultStored, nil
	}

	parentHash := block.Header.ParentHash
	parentEntry, knownParent := c.headerByHashLocked(parentHash)
	if !knownParent {
		c.orphans.add(block)
		return ResultOrphan, nil
	}

	if err := verifier.VerifyNonContextual(block); err != nil {
		c.invalid[blockHash] = true
		return 0, &ProcessError{BlockHash: blockHash, Cause: err}
	}

	bctx := c.blockContextFor(parentEntry.Header)
	if err := verifier.VerifyContextual(block, bctx); err != nil {
		c.invalid[blockHash] = true
		return 0, &ProcessError{BlockHash: blockHash, Cause: err}
	}

	totalDifficulty := new(big.Int).Add(parentEntry.TotalDifficulty, block.Header.CompactTarget.Difficulty())
	if err := c.persistHeaderAndBody(block, totalDifficulty); err != nil {
		return 0, &ProcessError{BlockHash: blockHash, Cause: err}
	}
	c.headers[blockHash] = &headerEntry{Header: block.Header, TotalDifficulty: totalDifficulty}

	var result ProcessResult
	if parentHash == c.tip {
		journal, verdicts, err := c.verifyAndAttachLive(block)
		if err != nil {
			c.invalid[blockHash] = true
			return 0, &ProcessError{BlockHash: blockHash, Cause: err}
		}
		_ = verdicts

		c.attachedJournals[blockHash] = journal
		c.canonical[block.Number()] = blockHash
		c.tip = blockHash
		c.tipNumber = block.Number()

		if c.pool != nil {
			c.pool.AttachBlock(block)
		}
		c.publishTip(totalDifficulty, []*types.Block{block}, nil)
		result = ResultExtended
	} else {
		currentTip := c.headers[c.tip]
		if totalDifficulty.Cmp(currentTip.TotalDifficulty) <= 0 {
			result = ResultStored
		} else {
			attached, detached, err := c.reorgTo(blockHash)
			if err != nil {
				c.invalid[blockHash] = true
				return 0, &ProcessError{BlockHash: blockHash, Cause: err}
			}
			c.publishTip(totalDifficulty, attached, detached)
			result = ResultExtended
		}
	}

	if result == ResultExtended {
		c.drainOrphansLocked(blockHash)
	}

	return result, nil
}

// blockContextFor builds the header-level BlockContext a block on top of
// parent must satisfy, using only the header index and stored bodies
// (never the live cell set), so it can be evaluated for any branch.
func (c *Chain) blockContextFor(parent *types.Header) *verifier.BlockContext {
	parentHash := parent.Hash()
	expectedEpoch, expectedTarget := c.computeNextEpoch(parent)
	return &verifier.BlockContext{
		ParentHeader:          parent,
		Headers:               &chainHeaderSource{c: c, fromHash: parentHash},
		MedianTimePast:        c.computeMedianTimePast(parentHash),
		ExpectedEpoch:         expectedEpoch,
		ExpectedCompactTarget: expectedTarget,
		KnownAncestorOrUncle: func(h common.Hash) bool {
			_, ok := c.headerByHashLocked(h)
			return ok
		},
		ProposedShortIDs: c.gatherProposalWindow(parentHash, parent.Number),
	}
}

// verifyAndAttachLive runs script-level verification against the live
// cell set (which, at this call site, always reflects exactly the state
// on top of which block was built) and applies it on success.
func (c *Chain) verifyAndAttachLive(block *types.Block) (*cellset.BlockJournal, []*verifier.Verdict, error) {
	cellsByIndex, dataByIndex := buildIntraBlockIndex(block)
	resolveCtx := func(i int) *verifier.Context {
		return &verifier.Context{
			Cells:              c.cells,
			Data:               c.data,
			Headers:            &chainHeaderSource{c: c, fromHash: block.Header.ParentHash},
			TargetBlockNumber:  block.Number(),
			CurrentEpochNumber: block.Header.Epoch.Number(),
			MedianTimePast:     c.computeMedianTimePast(block.Header.ParentHash),
			IntraBlockCells:    cellsByIndex[i],
			IntraBlockData:     dataByIndex[i],
		}
	}

	verdicts, err := verifier.VerifyTransactionsParallel(block, c.txv, resolveCtx)
	if err != nil {
		return nil, nil, err
	}

	journal, err := c.cells.AttachBlock(block, block.Number())
	if err != nil {
		return nil, nil, err
	}
	if err := putCellData(c.db, block); err != nil {
		return nil, nil, err
	}
	return journal, verdicts, nil
}

func (c *Chain) persistHeaderAndBody(block *types.Block, td *big.Int) error {
	hash := block.Hash()

	encHeader, err := encodeHeader(block.Header)
	if err != nil {
		return err
	}
	if err := c.db.Put(store.HeaderDB, hash[:], encHeader); err != nil {
		return err
	}

	encBlock, err := encodeBlock(block)
	if err != nil {
		return err
	}
	if err := c.db.Put(store.BodyDB, hash[:], encBlock); err != nil {
		return err
	}

	return putTotalDifficulty(c.db, hash, td)
}

// drainOrphansLocked recursively processes every block that was waiting
// on parentHash, now that it has been accepted (§4.6 step 6). Errors from
// an orphan are logged, not propagated: the block that triggered the
// drain already succeeded, and one bad descendant shouldn't be reported
// as if it were.
func (c *Chain) drainOrphansLocked(parentHash common.Hash) {
	for _, orphan := range c.orphans.drain(parentHash) {
		result, err := c.processLocked(orphan)
		if err != nil {
			logger.Warn("orphan failed verification after its parent arrived", "hash", orphan.Hash(), "err", err)
			continue
		}
		if result == ResultExtended {
			c.drainOrphansLocked(orphan.Hash())
		}
	}
}

func (c *Chain) publishTip(td *big.Int, attached, detached []*types.Block) {
	c.feed.Send(TipEvent{
		Header:          c.headers[c.tip].Header,
		TotalDifficulty: td,
		Attached:        attached,
		Detached:        detached,
	})
}
