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

package common

import (
	"errors"

	lru "github.com/hashicorp/golang-lru"

	"github.com/nervosnetwork/ckb-go/pkg/log"
)

type CacheType int

const (
	LRUCacheType CacheType = iota
	ARCCacheType
)

// CacheScale lets an operator shrink or grow every configured cache size by
// a percentage without touching each call site, same knob as the teacher.
var CacheScale = 100

var logger = log.NewModuleLogger(log.Common)

// Cache is the shared shape used by the script-verification cache (keyed
// by witness hash, per §4.3 and §5), the tx pool's recently-committed
// cache and the per-peer known-block cache in sync. Keys are Hash so one
// interface serves all three without reflection.
type Cache interface {
	Add(key Hash, value interface{}) (evicted bool)
	Get(key Hash) (value interface{}, ok bool)
	Contains(key Hash) bool
	Remove(key Hash)
	Purge()
	Len() int
}

type lruCache struct {
	lru *lru.Cache
}

func (c *lruCache) Add(key Hash, value interface{}) (evicted bool) { return c.lru.Add(key, value) }
func (c *lruCache) Get(key Hash) (value interface{}, ok bool)      { return c.lru.Get(key) }
func (c *lruCache) Contains(key Hash) bool                         { return c.lru.Contains(key) }
func (c *lruCache) Remove(key Hash)                                { c.lru.Remove(key) }
func (c *lruCache) Purge()                                         { c.lru.Purge() }
func (c *lruCache) Len() int                                       { return c.lru.Len() }

type arcCache struct {
	arc *lru.ARCCache
}

func (c *arcCache) Add(key Hash, value interface{}) (evicted bool) { c.arc.Add(key, value); return true }
func (c *arcCache) Get(key Hash) (value interface{}, ok bool)      { return c.arc.Get(key) }
func (c *arcCache) Contains(key Hash) bool                         { return c.arc.Contains(key) }
func (c *arcCache) Remove(key Hash)                                { c.arc.Remove(key) }
func (c *arcCache) Purge()                                         { c.arc.Purge() }
func (c *arcCache) Len() int                                       { return c.arc.Len() }

// CacheConfiger is implemented by the handful of cache configs below;
// NewCache dispatches to whichever a caller constructed.
type CacheConfiger interface {
	newCache() (Cache, error)
}

func NewCache(config CacheConfiger) (Cache, error) {
	if config == nil {
		return nil, errors.New("cache config is nil")
	}
	return config.newCache()
}

// LRUConfig backs the ordinary least-recently-used caches: the
// script-verification result cache, the tx pool's recently-committed
// cache and the per-peer known-block cache.
type LRUConfig struct {
	CacheSize int
}

func (c LRUConfig) newCache() (Cache, error) {
	size := c.CacheSize * CacheScale / 100
	if size < 1 {
		size = 1
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &lruCache{l}, nil
}

// ARCConfig backs adaptive-replacement caches, for where recency and
// frequency both matter. No package in this module builds one; every
// cache listed above uses LRUConfig.
type ARCConfig struct {
	CacheSize int
}

func (c ARCConfig) newCache() (Cache, error) {
	arc, err := lru.NewARC(c.CacheSize)
	if err != nil {
		return nil, err
	}
	return &arcCache{arc}, nil
}
