package cellset

import (
	"fmt"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	lru "github.com/hashicorp/golang-lru"

	"github.com/nervosnetwork/ckb-go/pkg/log"
	"github.com/nervosnetwork/ckb-go/store"
	"github.com/nervosnetwork/ckb-go/types"
)

var logger = log.NewModuleLogger(log.CellSet)

// Config sizes the index's hot set and spill cache.
type Config struct {
	// HotCapacity bounds the number of records the LRU keeps fully
	// resident before spilling the coldest to storage.
	HotCapacity int
	// SpillCacheBytes sizes the fastcache layer that absorbs re-fetches
	// of recently spilled records, avoiding a storage round trip for
	// cells that bounce back to live shortly after eviction.
	SpillCacheBytes int
}

func (c *Config) sanitize() {
	if c.HotCapacity <= 0 {
		c.HotCapacity = 1_000_000
	}
	if c.SpillCacheBytes <= 0 {
		c.SpillCacheBytes = 64 * 1024 * 1024
	}
}

// Set is the authoritative live-cell index over the canonical tip (§4.1).
// Reads may run concurrently against a Snapshot; mutation (Attach/Detach)
// is exclusive and is expected to be serialized by the chain service's
// single writer.
type Set struct {
	mu    sync.RWMutex
	hot   *lru.Cache
	spill *fastcache.Cache
	db    store.Manager
}

func New(cfg Config, db store.Manager) (*Set, error) {
	cfg.sanitize()
	s := &Set{
		spill: fastcache.New(cfg.SpillCacheBytes),
		db:    db,
	}
	hot, err := lru.NewWithEvict(cfg.HotCapacity, s.onEvict)
	if err != nil {
		return nil, err
	}
	s.hot = hot
	return s, nil
}

// onEvict runs with s.mu already held by the caller (Add/Remove on the
// underlying lru.Cache invoke it synchronously). The evicted record is
// not gone, only demoted: it is durably persisted so Get can re-fetch it.
func (s *Set) onEvict(key, value interface{}) {
	op := key.(types.OutPoint)
	rec := value.(*Record)
	k := outPointKey(op)
	enc := rec.encode()
	s.spill.Set(k[:], enc)
	if err := s.db.Put(store.CellDataDB, k[:], enc); err != nil {
		logger.Error("failed to spill evicted cell record to storage", "outpoint", op, "err", err)
	}
}

// Get returns the record currently indexed for op, checking the hot set,
// then the spill read-cache, then the durable store, in that order.
func (s *Set) Get(op types.OutPoint) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(op)
}

func (s *Set) getLocked(op types.OutPoint) (*Record, bool) {
	if v, ok := s.hot.Get(op); ok {
		return v.(*Record), true
	}

	k := outPointKey(op)
	if enc, ok := s.spill.HasGet(nil, k[:]); ok {
		rec, err := decodeRecord(enc)
		if err != nil {
			logger.Error("corrupt spilled cell record", "outpoint", op, "err", err)
			return nil, false
		}
		return rec, true
	}

	enc, err := s.db.Get(store.CellDataDB, k[:])
	if err != nil {
		return nil, false
	}
	rec, err := decodeRecord(enc)
	if err != nil {
		logger.Error("corrupt stored cell record", "outpoint", op, "err", err)
		return nil, false
	}
	return rec, true
}

// MarkLive indexes a newly created cell. Per §4.1's attach order this is
// called once per transaction output, after every input in the same
// transaction has been marked dead.
func (s *Set) MarkLive(op types.OutPoint, rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hot.Add(op, rec)
}

// MarkDead removes a consumed cell from the index and returns the record
// it held, for the caller to journal. A miss here means the set has
// diverged from the transactions it has already applied — §4.1 treats
// that as a fatal inconsistency, not a recoverable error, since there is
// no way to keep validating inputs once a dead cell is referenced.
func (s *Set) MarkDead(op types.OutPoint) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.getLocked(op)
	if !ok {
		logger.Crit("cell set inconsistency: marking dead a cell not present in the index", "outpoint", op)
		return nil, fmt.Errorf("cellset: outpoint %v not found", op)
	}

	s.hot.Remove(op)
	k := outPointKey(op)
	s.spill.Del(k[:])
	if err := s.db.Delete(store.CellDataDB, k[:]); err != nil {
		logger.Error("failed to delete spilled cell record", "outpoint", op, "err", err)
	}
	return rec, nil
}

// Len reports the number of cells currently held in the hot set; it does
// not count records spilled to storage.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hot.Len()
}

// TxMutation is the per-transaction journal of an Attach, recording what
// MarkDead returned for each input so a later Detach can restore it
// exactly, and which outputs were newly marked live so Detach knows what
// to remove (§4.6 "journaling intended mutations before applying").
type TxMutation struct {
	DeadInputs    []types.OutPoint
	RevivedRecord []*Record // parallel to DeadInputs
	LiveOutputs   []types.OutPoint
}

// BlockJournal is the ordered list of per-transaction mutations Attach
// applied, consumed in reverse by Detach.
type BlockJournal struct {
	Txs []TxMutation
}

// AttachBlock applies block at blockNumber: for each transaction in
// order, every non-cellbase input is marked dead, then every output is
// marked live (§4.1). The returned journal lets the chain service reorg
// back out exactly what was applied, without recomputation.
func (s *Set) AttachBlock(block *types.Block, blockNumber uint64) (*BlockJournal, error) {
	journal := &BlockJournal{Txs: make([]TxMutation, len(block.Transactions))}

	for ti, tx := range block.Transactions {
		isCellbase := tx.IsCellbase()
		mut := TxMutation{}

		if !isCellbase {
			for _, in := range tx.Inputs {
				rec, err := s.MarkDead(in.PreviousCell)
				if err != nil {
					return journal, err
				}
				mut.DeadInputs = append(mut.DeadInputs, in.PreviousCell)
				mut.RevivedRecord = append(mut.RevivedRecord, rec)
			}
		}

		txHash := tx.Hash()
		for i, out := range tx.Outputs {
			op := types.OutPoint{TxHash: txHash, Index: uint32(i)}
			var dataLen int
			if i < len(tx.OutputsData) {
				dataLen = len(tx.OutputsData[i])
			}
			rec := &Record{
				Output:     out,
				DataHash:   types.Hash256(dataAt(tx, i)),
				DataLen:    uint64(dataLen),
				IsCellbase: isCellbase,
				CreatedBy:  blockNumber,
			}
			s.MarkLive(op, rec)
			mut.LiveOutputs = append(mut.LiveOutputs, op)
		}

		journal.Txs[ti] = mut
	}

	return journal, nil
}

func dataAt(tx *types.Transaction, i int) []byte {
	if i < len(tx.OutputsData) {
		return tx.OutputsData[i]
	}
	return nil
}

// DetachBlock undoes journal in reverse transaction order, and within
// each transaction reverses output then input order, exactly mirroring
// AttachBlock's application order (§4.1).
func (s *Set) DetachBlock(journal *BlockJournal) {
	for ti := len(journal.Txs) - 1; ti >= 0; ti-- {
		mut := journal.Txs[ti]

		for i := len(mut.LiveOutputs) - 1; i >= 0; i-- {
			s.mu.Lock()
			s.hot.Remove(mut.LiveOutputs[i])
			s.mu.Unlock()
			k := outPointKey(mut.LiveOutputs[i])
			s.spill.Del(k[:])
			if err := s.db.Delete(store.CellDataDB, k[:]); err != nil {
				logger.Error("failed to remove detached output from storage", "err", err)
			}
		}

		for i := len(mut.DeadInputs) - 1; i >= 0; i-- {
			s.MarkLive(mut.DeadInputs[i], mut.RevivedRecord[i])
		}
	}
}

// Snapshot is a read-only view of the set consistent with a specific tip
// (§4.1). It never blocks Set's writer: the durable layer snapshot comes
// from the storage adapter's own point-in-time view, and the hot set is
// copied under a brief read lock.
type Snapshot struct {
	hot map[types.OutPoint]*Record
	db  store.Manager
}

func (s *Set) Snapshot() (*Snapshot, func(), error) {
	s.mu.RLock()
	hot := make(map[types.OutPoint]*Record, s.hot.Len())
	for _, k := range s.hot.Keys() {
		if v, ok := s.hot.Peek(k); ok {
			hot[k.(types.OutPoint)] = v.(*Record)
		}
	}
	s.mu.RUnlock()

	dbSnap, release, err := s.db.Snapshot()
	if err != nil {
		return nil, nil, err
	}
	return &Snapshot{hot: hot, db: dbSnap}, release, nil
}

func (v *Snapshot) Get(op types.OutPoint) (*Record, bool) {
	if rec, ok := v.hot[op]; ok {
		return rec, true
	}
	k := outPointKey(op)
	enc, err := v.db.Get(store.CellDataDB, k[:])
	if err != nil {
		return nil, false
	}
	rec, err := decodeRecord(enc)
	if err != nil {
		return nil, false
	}
	return rec, true
}
