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
	"errors"
	"sort"
	"sync"
)

var ErrKeyNotFound = errors.New("store: key not found")

// memDatabase is an in-process Backend used by tests and by the memory
// DBEntryType (ephemeral node operation, e.g. for conformance suites).
type memDatabase struct {
	mu sync.RWMutex
	db map[string][]byte
}

func NewMemDatabase() Backend {
	return &memDatabase{db: make(map[string][]byte)}
}

func (m *memDatabase) Type() DBType { return MemoryDBType }
func (m *memDatabase) Path() string { return "" }

func (m *memDatabase) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.db[string(key)] = cp
	return nil
}

func (m *memDatabase) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.db[string(key)]
	return ok, nil
}

func (m *memDatabase) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.db[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *memDatabase) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.db, string(key))
	return nil
}

func (m *memDatabase) NewIterator() Iterator {
	return m.NewIteratorWithPrefix(nil)
}

func (m *memDatabase) NewIteratorWithPrefix(prefix []byte) Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.db))
	for k := range m.db {
		if len(prefix) == 0 || (len(k) >= len(prefix) && k[:len(prefix)] == string(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = m.db[k]
	}
	return &memIterator{keys: keys, values: values, idx: -1}
}

type memIterator struct {
	keys   []string
	values [][]byte
	idx    int
}

func (it *memIterator) Next() bool {
	it.idx++
	return it.idx < len(it.keys)
}

func (it *memIterator) Key() []byte   { return []byte(it.keys[it.idx]) }
func (it *memIterator) Value() []byte { return it.values[it.idx] }
func (it *memIterator) Release()      {}

func (m *memDatabase) NewBatch() Batch {
	return &memBatch{parent: m}
}

// Snapshot returns an independent copy of the map. Memory is used only
// for tests and ephemeral runs, so a full copy is an acceptable cost in
// exchange for trivial correctness.
func (m *memDatabase) Snapshot() (Backend, func(), error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := make(map[string][]byte, len(m.db))
	for k, v := range m.db {
		vv := make([]byte, len(v))
		copy(vv, v)
		cp[k] = vv
	}
	return &memDatabase{db: cp}, func() {}, nil
}

func (m *memDatabase) Close() {}

type memOp struct {
	key    []byte
	value  []byte
	delete bool
}

type memBatch struct {
	parent *memDatabase
	ops    []memOp
	size   int
}

func (b *memBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, memOp{key: key, value: value})
	b.size += len(value)
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	b.ops = append(b.ops, memOp{key: key, delete: true})
	return nil
}

func (b *memBatch) Write() error {
	b.parent.mu.Lock()
	defer b.parent.mu.Unlock()
	for _, op := range b.ops {
		if op.delete {
			delete(b.parent.db, string(op.key))
			continue
		}
		cp := make([]byte, len(op.value))
		copy(cp, op.value)
		b.parent.db[string(op.key)] = cp
	}
	return nil
}

func (b *memBatch) ValueSize() int { return b.size }

func (b *memBatch) Reset() {
	b.ops = nil
	b.size = 0
}
