// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
//
// ChainSet adapts gopkg.in/fatih/set.v0 to the one membership question this
// module asks repeatedly: "is chain X one of these chains". A typed wrapper
// keeps every call site in ChainId instead of interface{}.
package types

import set "gopkg.in/fatih/set.v0"

// ChainSet is a thread-safe set of ChainId, used for registered-chain
// bookkeeping in the confirmation layer and the hyper scheduler.
type ChainSet struct {
	s *set.Set
}

// NewChainSet builds a ChainSet containing the given chains.
func NewChainSet(chains ...ChainId) *ChainSet {
	items := make([]interface{}, len(chains))
	for i, c := range chains {
		items[i] = c
	}
	return &ChainSet{s: set.New(items...)}
}

// Add inserts chain into the set; a no-op if already present.
func (cs *ChainSet) Add(chain ChainId) { cs.s.Add(chain) }

// Has reports whether chain is a member.
func (cs *ChainSet) Has(chain ChainId) bool { return cs.s.Has(chain) }

// Size returns the number of members.
func (cs *ChainSet) Size() int { return cs.s.Size() }

// List returns the members in unspecified order.
func (cs *ChainSet) List() []ChainId {
	items := cs.s.List()
	out := make([]ChainId, 0, len(items))
	for _, it := range items {
		out = append(out, it.(ChainId))
	}
	return out
}
