// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
//
// Package cache holds a bounded LRU front cache for sub-block replay
// lookups, narrowed to the one key type this module needs instead of a
// generic cache-key family.
package cache

import (
	lru "github.com/hashicorp/golang-lru"
)

// Key identifies one sub-block: a chain and the block height it was
// produced at.
type Key struct {
	Chain  string
	Height uint64
}

// SubBlockCache is a bounded, thread-safe front cache over the
// confirmation layer's unbounded replay history. It never changes
// retention semantics: a miss falls through to the authoritative store,
// a hit just avoids re-walking it.
type SubBlockCache struct {
	lru *lru.Cache
}

// NewSubBlockCache builds a cache holding up to size recent (chain, height)
// lookups. size <= 0 disables caching (Get always misses, Add is a no-op),
// which is useful for tests that want to exercise the fallback path.
func NewSubBlockCache(size int) *SubBlockCache {
	if size <= 0 {
		return &SubBlockCache{}
	}
	c, err := lru.New(size)
	if err != nil {
		// lru.New only errors on size <= 0, already excluded above.
		panic("cache: " + err.Error())
	}
	return &SubBlockCache{lru: c}
}

// Get returns the cached value for key, if present.
func (c *SubBlockCache) Get(key Key) (interface{}, bool) {
	if c.lru == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

// Add inserts or refreshes the cached value for key.
func (c *SubBlockCache) Add(key Key, value interface{}) {
	if c.lru == nil {
		return
	}
	c.lru.Add(key, value)
}

// Purge drops every cached entry; used on shutdown.
func (c *SubBlockCache) Purge() {
	if c.lru == nil {
		return
	}
	c.lru.Purge()
}
