// Copyright 2015 The go-ethereum Authors
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

// Package store is the storage adapter boundary described in §6: a keyed
// byte-blob store with column families for headers, block bodies,
// transaction metadata, cell data snapshots, and the live-cell index
// checkpoint. Everything above this package (cellset, chain, txpool)
// depends only on the Manager interface in manager.go; Backend and its
// three implementations (leveldb, badger, memory) are swappable without
// touching a caller.
package store

import "errors"

var errSnapshotReadOnly = errors.New("store: snapshot view is read-only")

// DBType selects which on-disk engine backs a Backend.
type DBType string

const (
	LevelDBType DBType = "leveldb"
	BadgerDBType DBType = "badger"
	MemoryDBType DBType = "memory"
)

// Iterator walks a key range, optionally restricted to a prefix.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
}

// Batch accumulates writes for a single atomic commit (§6 "atomic batch
// write").
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Write() error
	ValueSize() int
	Reset()
}

// Backend is a single column family: a point-get/put/delete byte store
// plus prefix iteration, atomic batching, and a point-in-time snapshot.
type Backend interface {
	Type() DBType
	Path() string

	Put(key, value []byte) error
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error

	NewIterator() Iterator
	NewIteratorWithPrefix(prefix []byte) Iterator
	NewBatch() Batch

	// Snapshot returns a read-only, point-in-time view. Readers that
	// take a snapshot never block a concurrent writer (§5).
	Snapshot() (Backend, func(), error)

	Close()
}
