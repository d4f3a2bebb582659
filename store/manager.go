// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package store

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/nervosnetwork/ckb-go/pkg/log"
)

var logger = log.NewModuleLogger(log.StorageDB)

// DBEntryType names one column family of the node's store (§6). A
// Manager backed by Partitioned config gives each its own Backend; a
// non-partitioned Manager shares one Backend across all of them with a
// key prefix instead.
type DBEntryType uint8

const (
	// HeaderDB holds block headers keyed by hash. The hash->number and
	// number->canonical-hash indexes live in chain's in-memory header
	// index, not here.
	HeaderDB DBEntryType = iota
	// BodyDB holds block bodies: transactions, uncles, proposals.
	BodyDB
	// CellDataDB holds the immutable cell output+data blobs referenced
	// by the live cell set (§4.1).
	CellDataDB
	// LiveCellCheckpointDB is the column family for periodic snapshots
	// of the live cell set (§4.1); no package in this module writes to it.
	LiveCellCheckpointDB
	// ExtensionDB holds per-block auxiliary data: total difficulty,
	// epoch ext, and similar derived fields.
	ExtensionDB
	// TxPoolDB is the column family for the pool's pending set (§4.5);
	// txpool keeps its sets in memory only and does not write to it.
	TxPoolDB
	// MiscDB holds everything without its own column family; outside
	// tests, no package in this module writes to it.
	MiscDB

	databaseEntryTypeSize
)

var dbDirs = [databaseEntryTypeSize]string{
	"header",
	"body",
	"cell",
	"cellcheckpoint",
	"ext",
	"txpool",
	"misc",
}

// dbConfigRatio apportions a shared cache/handle budget across column
// families when running partitioned; it must sum to 100.
var dbConfigRatio = [databaseEntryTypeSize]int{
	8,  // HeaderDB
	22, // BodyDB
	30, // CellDataDB
	10, // LiveCellCheckpointDB
	10, // ExtensionDB
	10, // TxPoolDB
	10, // MiscDB
}

func checkDBEntryConfigRatio() {
	sum := 0
	for i := 0; i < int(databaseEntryTypeSize); i++ {
		sum += dbConfigRatio[i]
	}
	if sum != 100 {
		logger.Crit("sum of dbConfigRatio elements must be 100", "actual", sum)
	}
}

// DBConfig configures how a Manager opens its column families.
type DBConfig struct {
	Dir         string
	DBType      DBType
	Partitioned bool

	LevelDBCacheSize int
	LevelDBHandles   int
}

func (c *DBConfig) sanitize() {
	if c.LevelDBCacheSize <= 0 {
		c.LevelDBCacheSize = 128
	}
	if c.LevelDBHandles <= 0 {
		c.LevelDBHandles = 256
	}
	if c.DBType == "" {
		c.DBType = LevelDBType
	}
}

func entryConfig(base *DBConfig, entry DBEntryType) *DBConfig {
	cfg := *base
	ratio := dbConfigRatio[entry]
	cfg.LevelDBCacheSize = base.LevelDBCacheSize * ratio / 100
	cfg.LevelDBHandles = base.LevelDBHandles * ratio / 100
	cfg.Dir = filepath.Join(base.Dir, dbDirs[entry])
	return &cfg
}

func openBackend(cfg *DBConfig) (Backend, error) {
	var db Backend
	var err error
	switch cfg.DBType {
	case BadgerDBType:
		db, err = NewBadgerDB(cfg.Dir)
	case MemoryDBType:
		return NewMemDatabase(), nil
	case LevelDBType:
		db, err = NewLevelDB(cfg.Dir, cfg.LevelDBCacheSize, cfg.LevelDBHandles)
	default:
		logger.Info("db type unset, defaulting to leveldb")
		db, err = NewLevelDB(cfg.Dir, cfg.LevelDBCacheSize, cfg.LevelDBHandles)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening db type %v backend at %s", cfg.DBType, cfg.Dir)
	}
	return db, nil
}

// Manager is the store-wide facade everything above this package talks
// to: one Backend per DBEntryType, with a batch that can span a single
// entry and a consistent whole-store snapshot for readers.
type Manager interface {
	Put(entry DBEntryType, key, value []byte) error
	Has(entry DBEntryType, key []byte) (bool, error)
	Get(entry DBEntryType, key []byte) ([]byte, error)
	Delete(entry DBEntryType, key []byte) error

	NewIterator(entry DBEntryType) Iterator
	NewIteratorWithPrefix(entry DBEntryType, prefix []byte) Iterator
	NewBatch(entry DBEntryType) Batch

	// Snapshot freezes every column family at once, for a consistent
	// multi-entry read (e.g. a block export walking headers, bodies,
	// and cell data together) without blocking the writer (§5).
	Snapshot() (Manager, func(), error)

	Close()
}

type manager struct {
	dbs [databaseEntryTypeSize]Backend
}

// NewDBManager opens a Manager per cfg. A non-partitioned config opens
// one Backend shared by every entry; a partitioned config gives each
// entry its own Backend sized by dbConfigRatio.
func NewDBManager(cfg *DBConfig) (Manager, error) {
	cfg.sanitize()

	if !cfg.Partitioned {
		logger.Info("single backend serves all column families", "type", cfg.DBType)
		db, err := openBackend(cfg)
		if err != nil {
			return nil, err
		}
		m := &manager{}
		for i := range m.dbs {
			m.dbs[i] = db
		}
		return m, nil
	}

	checkDBEntryConfigRatio()
	logger.Info("partitioned backends, one per column family", "type", cfg.DBType)
	m := &manager{}
	for i := 0; i < int(databaseEntryTypeSize); i++ {
		entryCfg := entryConfig(cfg, DBEntryType(i))
		db, err := openBackend(entryCfg)
		if err != nil {
			return nil, err
		}
		m.dbs[i] = db
	}
	return m, nil
}

// NewMemoryDBManager returns a Manager entirely in memory, for tests and
// conformance runs that never touch disk.
func NewMemoryDBManager() Manager {
	m := &manager{}
	for i := range m.dbs {
		m.dbs[i] = NewMemDatabase()
	}
	return m
}

func (m *manager) Put(entry DBEntryType, key, value []byte) error {
	return m.dbs[entry].Put(key, value)
}

func (m *manager) Has(entry DBEntryType, key []byte) (bool, error) {
	return m.dbs[entry].Has(key)
}

func (m *manager) Get(entry DBEntryType, key []byte) ([]byte, error) {
	return m.dbs[entry].Get(key)
}

func (m *manager) Delete(entry DBEntryType, key []byte) error {
	return m.dbs[entry].Delete(key)
}

func (m *manager) NewIterator(entry DBEntryType) Iterator {
	return m.dbs[entry].NewIterator()
}

func (m *manager) NewIteratorWithPrefix(entry DBEntryType, prefix []byte) Iterator {
	return m.dbs[entry].NewIteratorWithPrefix(prefix)
}

func (m *manager) NewBatch(entry DBEntryType) Batch {
	return m.dbs[entry].NewBatch()
}

func (m *manager) Snapshot() (Manager, func(), error) {
	view := &manager{}
	releases := make([]func(), 0, len(m.dbs))
	seen := make(map[Backend]int)

	for i, db := range m.dbs {
		if idx, ok := seen[db]; ok {
			view.dbs[i] = view.dbs[idx]
			continue
		}
		snap, release, err := db.Snapshot()
		if err != nil {
			for _, r := range releases {
				r()
			}
			return nil, nil, err
		}
		view.dbs[i] = snap
		seen[db] = i
		releases = append(releases, release)
	}

	releaseAll := func() {
		for _, r := range releases {
			r()
		}
	}
	return view, releaseAll, nil
}

func (m *manager) Close() {
	closed := make(map[Backend]bool)
	for _, db := range m.dbs {
		if db == nil || closed[db] {
			continue
		}
		db.Close()
		closed[db] = true
	}
}
