// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package store

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/nervosnetwork/ckb-go/pkg/log"
)

var OpenFileLimit = 64

type levelDB struct {
	fn string
	db *leveldb.DB

	log log.Logger
}

func ldbOptions(cacheSizeMB, numHandles int) *opt.Options {
	if cacheSizeMB < 16 {
		cacheSizeMB = 16
	}
	if numHandles < 16 {
		numHandles = 16
	}
	return &opt.Options{
		OpenFilesCacheCapacity: numHandles,
		BlockCacheCapacity:     cacheSizeMB / 2 * opt.MiB,
		WriteBuffer:            cacheSizeMB / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
		DisableBufferPool:      true,
	}
}

// NewLevelDB opens (or recovers) a column family's on-disk store at file.
func NewLevelDB(file string, cacheSizeMB, numHandles int) (Backend, error) {
	logger := log.New("store", file)

	db, err := leveldb.OpenFile(file, ldbOptions(cacheSizeMB, numHandles))
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		logger.Warn("Corrupted leveldb found, attempting recovery")
		db, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, err
	}
	return &levelDB{fn: file, db: db, log: logger}, nil
}

func (db *levelDB) Type() DBType { return LevelDBType }
func (db *levelDB) Path() string { return db.fn }

func (db *levelDB) Put(key, value []byte) error {
	return db.db.Put(key, value, nil)
}

func (db *levelDB) Has(key []byte) (bool, error) {
	return db.db.Has(key, nil)
}

func (db *levelDB) Get(key []byte) ([]byte, error) {
	v, err := db.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrKeyNotFound
	}
	return v, err
}

func (db *levelDB) Delete(key []byte) error {
	return db.db.Delete(key, nil)
}

func (db *levelDB) NewIterator() Iterator {
	return &ldbIterator{it: db.db.NewIterator(nil, nil)}
}

func (db *levelDB) NewIteratorWithPrefix(prefix []byte) Iterator {
	return &ldbIterator{it: db.db.NewIterator(util.BytesPrefix(prefix), nil)}
}

func (db *levelDB) NewBatch() Batch {
	return &ldbBatch{db: db.db, b: new(leveldb.Batch)}
}

// Snapshot takes a native leveldb snapshot: a consistent read view that
// never blocks the writer goroutine (§5 single-writer chain service).
func (db *levelDB) Snapshot() (Backend, func(), error) {
	snap, err := db.db.GetSnapshot()
	if err != nil {
		return nil, nil, err
	}
	view := &levelDBSnapshot{fn: db.fn, snap: snap}
	return view, snap.Release, nil
}

func (db *levelDB) Close() {
	if err := db.db.Close(); err != nil {
		db.log.Error("Failed to close database", "err", err)
	} else {
		db.log.Info("Database closed")
	}
}

type ldbIterator struct {
	it interface {
		Next() bool
		Key() []byte
		Value() []byte
		Release()
	}
}

func (i *ldbIterator) Next() bool    { return i.it.Next() }
func (i *ldbIterator) Key() []byte   { return i.it.Key() }
func (i *ldbIterator) Value() []byte { return i.it.Value() }
func (i *ldbIterator) Release()      { i.it.Release() }

type ldbBatch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

func (b *ldbBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(value)
	return nil
}

func (b *ldbBatch) Delete(key []byte) error {
	b.b.Delete(key)
	return nil
}

func (b *ldbBatch) Write() error {
	return b.db.Write(b.b, nil)
}

func (b *ldbBatch) ValueSize() int { return b.size }

func (b *ldbBatch) Reset() {
	b.b.Reset()
	b.size = 0
}

// levelDBSnapshot is a read-only Backend backed by a native leveldb
// snapshot handle. Writes are rejected; the handle must be released via
// the func() returned from Snapshot.
type levelDBSnapshot struct {
	fn   string
	snap *leveldb.Snapshot
}

func (s *levelDBSnapshot) Type() DBType { return LevelDBType }
func (s *levelDBSnapshot) Path() string { return s.fn }

func (s *levelDBSnapshot) Put(key, value []byte) error { return errSnapshotReadOnly }
func (s *levelDBSnapshot) Delete(key []byte) error      { return errSnapshotReadOnly }
func (s *levelDBSnapshot) NewBatch() Batch              { return nil }

func (s *levelDBSnapshot) Has(key []byte) (bool, error) {
	return s.snap.Has(key, nil)
}

func (s *levelDBSnapshot) Get(key []byte) ([]byte, error) {
	v, err := s.snap.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrKeyNotFound
	}
	return v, err
}

func (s *levelDBSnapshot) NewIterator() Iterator {
	return &ldbIterator{it: s.snap.NewIterator(nil, nil)}
}

func (s *levelDBSnapshot) NewIteratorWithPrefix(prefix []byte) Iterator {
	return &ldbIterator{it: s.snap.NewIterator(util.BytesPrefix(prefix), nil)}
}

func (s *levelDBSnapshot) Snapshot() (Backend, func(), error) {
	return s, func() {}, nil
}

func (s *levelDBSnapshot) Close() {}
