// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
//
// Per-CAT and pending-queue bookkeeping records. Everything a gateway
// tracks about one in-flight CAT (held locks, speculative overlay, proposal,
// deadline) lives in a single catRecord rather than parallel maps.
package hyperig

import "github.com/hyperplane-sim/hyperplane/types"

// catRecord is one HIG's bookkeeping for one in-flight CAT leg.
type catRecord struct {
	id types.CATId

	// legTxId is this chain's Transaction.Id for this CAT.
	legTxId types.TransactionId

	// lockedKeys are the keys this CAT currently holds a lock on.
	lockedKeys []string

	// op is the operation to (maybe) apply on commit.
	op types.Op

	// overlay holds the resulting value for each locked key if this CAT's
	// speculative execution is later committed.
	overlay map[string]int64

	// proposal is what this HIG proposed to HS.
	proposal types.Proposal

	// proposedHeight is the block height the proposal was sent at;
	// deadline = proposedHeight + CatLifetimeBlocks.
	proposedHeight types.BlockHeight
	deadline       types.BlockHeight
}

// pendingEntry is one regular transaction parked in the pending-dependency
// queue, annotated with the set of CATs it is blocked behind. A CAT leg
// never enters this queue: it either proposes Failure immediately or
// proceeds to speculative execution under its own lock.
type pendingEntry struct {
	tx           types.Transaction
	op           types.Op
	blockingCats map[types.CATId]bool
}

func (e *pendingEntry) blocked() bool { return len(e.blockingCats) > 0 }
