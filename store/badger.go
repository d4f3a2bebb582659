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
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger"

	"github.com/nervosnetwork/ckb-go/pkg/log"
)

const gcSizeThreshold = int64(1 << 30) // 1 GiB of stale value-log before a GC pass
const gcTickInterval = time.Minute

type badgerDB struct {
	fn string
	db *badger.DB

	gcTicker *time.Ticker
	log      log.Logger
}

// NewBadgerDB opens (creating if absent) a column family's badger store at
// dir.
func NewBadgerDB(dir string) (Backend, error) {
	logger := log.New("store", dir)

	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return nil, fmt.Errorf("store: %s is not a directory", dir)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
		}
	} else {
		return nil, fmt.Errorf("store: stat %s: %w", dir, err)
	}

	opts := badger.DefaultOptions(dir)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger at %s: %w", dir, err)
	}

	bg := &badgerDB{
		fn:       dir,
		db:       db,
		log:      logger,
		gcTicker: time.NewTicker(gcTickInterval),
	}
	go bg.runValueLogGC()
	return bg, nil
}

func (bg *badgerDB) runValueLogGC() {
	_, lastSize := bg.db.Size()
	for range bg.gcTicker.C {
		_, currSize := bg.db.Size()
		if currSize-lastSize < gcSizeThreshold {
			continue
		}
		if err := bg.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
			bg.log.Error("value log gc failed", "err", err)
			continue
		}
		_, lastSize = bg.db.Size()
	}
}

func (bg *badgerDB) Type() DBType { return BadgerDBType }
func (bg *badgerDB) Path() string { return bg.fn }

func (bg *badgerDB) Put(key, value []byte) error {
	return bg.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (bg *badgerDB) Has(key []byte) (bool, error) {
	var found bool
	err := bg.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (bg *badgerDB) Get(key []byte) ([]byte, error) {
	var value []byte
	err := bg.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

func (bg *badgerDB) Delete(key []byte) error {
	return bg.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (bg *badgerDB) NewIterator() Iterator {
	return bg.NewIteratorWithPrefix(nil)
}

func (bg *badgerDB) NewIteratorWithPrefix(prefix []byte) Iterator {
	txn := bg.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	it.Rewind()
	return &badgerIterator{txn: txn, it: it, prefix: prefix, started: false}
}

func (bg *badgerDB) NewBatch() Batch {
	return &badgerBatch{db: bg.db, txn: bg.db.NewTransaction(true)}
}

// Snapshot opens a long-lived read transaction, badger's MVCC mechanism
// giving it a consistent point-in-time view without copying data (§5).
func (bg *badgerDB) Snapshot() (Backend, func(), error) {
	txn := bg.db.NewTransaction(false)
	view := &badgerSnapshot{fn: bg.fn, txn: txn}
	return view, txn.Discard, nil
}

func (bg *badgerDB) Close() {
	bg.gcTicker.Stop()
	if err := bg.db.Close(); err != nil {
		bg.log.Error("failed to close database", "err", err)
	} else {
		bg.log.Info("database closed")
	}
}

type badgerIterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	prefix  []byte
	started bool
}

func (bi *badgerIterator) Next() bool {
	if !bi.started {
		bi.started = true
	} else {
		bi.it.Next()
	}
	if len(bi.prefix) > 0 {
		return bi.it.ValidForPrefix(bi.prefix)
	}
	return bi.it.Valid()
}

func (bi *badgerIterator) Key() []byte {
	return bi.it.Item().KeyCopy(nil)
}

func (bi *badgerIterator) Value() []byte {
	v, _ := bi.it.Item().ValueCopy(nil)
	return v
}

func (bi *badgerIterator) Release() {
	bi.it.Close()
	if bi.txn != nil {
		bi.txn.Discard()
	}
}

type badgerBatch struct {
	db   *badger.DB
	txn  *badger.Txn
	size int
}

func (b *badgerBatch) Put(key, value []byte) error {
	if err := b.txn.Set(key, value); err == badger.ErrTxnTooBig {
		if werr := b.txn.Commit(nil); werr != nil {
			return werr
		}
		b.txn = b.db.NewTransaction(true)
		err = b.txn.Set(key, value)
	} else if err != nil {
		return err
	}
	b.size += len(value)
	return nil
}

func (b *badgerBatch) Delete(key []byte) error {
	return b.txn.Delete(key)
}

func (b *badgerBatch) Write() error {
	return b.txn.Commit(nil)
}

func (b *badgerBatch) ValueSize() int { return b.size }

func (b *badgerBatch) Reset() {
	b.txn = b.db.NewTransaction(true)
	b.size = 0
}

// badgerSnapshot is a read-only Backend over a held badger transaction.
type badgerSnapshot struct {
	fn  string
	txn *badger.Txn
}

func (s *badgerSnapshot) Type() DBType { return BadgerDBType }
func (s *badgerSnapshot) Path() string { return s.fn }

func (s *badgerSnapshot) Put(key, value []byte) error { return errSnapshotReadOnly }
func (s *badgerSnapshot) Delete(key []byte) error      { return errSnapshotReadOnly }
func (s *badgerSnapshot) NewBatch() Batch              { return nil }

func (s *badgerSnapshot) Has(key []byte) (bool, error) {
	_, err := s.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *badgerSnapshot) Get(key []byte) ([]byte, error) {
	item, err := s.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (s *badgerSnapshot) NewIterator() Iterator {
	return s.NewIteratorWithPrefix(nil)
}

func (s *badgerSnapshot) NewIteratorWithPrefix(prefix []byte) Iterator {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := s.txn.NewIterator(opts)
	it.Rewind()
	return &badgerIterator{txn: nil, it: it, prefix: prefix, started: false}
}

func (s *badgerSnapshot) Snapshot() (Backend, func(), error) {
	return s, func() {}, nil
}

func (s *badgerSnapshot) Close() {}
