// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
//
// catAggregate is the scheduler's bookkeeping for one open CAT: the
// constituent set recorded from the first proposal, the per-chain proposals
// received so far, and the expiry deadline.
package hyperscheduler

import "github.com/hyperplane-sim/hyperplane/types"

type catAggregate struct {
	id                  types.CATId
	constituentChains   []types.ChainId
	chainwise           map[types.ChainId]types.Proposal
	firstProposalHeight types.BlockHeight
	deadline            types.BlockHeight
}

func (a *catAggregate) allSucceeded() bool {
	return len(a.chainwise) == len(a.constituentChains)
}

func containsChain(chains []types.ChainId, target types.ChainId) bool {
	for _, c := range chains {
		if c == target {
			return true
		}
	}
	return false
}
