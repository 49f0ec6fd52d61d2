// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
//
// Execution, key-lock and pending-queue logic for the Hyper Information
// Gateway. Every entry point here assumes the caller already holds n.mu
// ("Locked" suffix); channel sends happen on the sender goroutine, never
// under the lock.
package hyperig

import (
	"time"

	"github.com/hyperplane-sim/hyperplane/types"
)

type sendJob struct {
	proposal types.CATStatusProposal
	delay    time.Duration
}

// processTransactionLocked routes one transaction to the regular, CAT-leg
// or status-update path per its Data grammar.
func (n *Node) processTransactionLocked(tx types.Transaction) {
	parsed, err := types.ParseData(tx.Data)
	if err != nil {
		n.log.Error("unparsable transaction data", "tx", tx.Id, "data", tx.Data, "err", err)
		n.txStatus[tx.Id] = types.StatusFailure
		return
	}

	switch parsed.Kind {
	case types.KindRegular:
		n.handleRegularLocked(tx, parsed.Op)
	case types.KindCAT:
		n.handleCATLegLocked(tx, parsed.Op, parsed.CatId)
	case types.KindStatusUpdate:
		n.handleStatusUpdateLocked(parsed.CatId, parsed.StatusUpdateVerdict)
	}
}

// handleRegularLocked executes a regular transaction, or parks it in the
// pending queue when any touched key is locked by an in-flight CAT.
func (n *Node) handleRegularLocked(tx types.Transaction, op types.Op) {
	keys := op.Keys()
	if n.anyKeyLockedLocked(keys) {
		n.enqueuePendingLocked(tx, op, keys)
		n.txStatus[tx.Id] = types.StatusPending
		return
	}

	if n.applyOpLocked(op) {
		n.txStatus[tx.Id] = types.StatusSuccess
	} else {
		n.txStatus[tx.Id] = types.StatusFailure
	}
}

// handleCATLegLocked decides this chain's proposal for one CAT leg: lock
// the touched keys, execute speculatively, and report the outcome upstream.
func (n *Node) handleCATLegLocked(tx types.Transaction, op types.Op, catId types.CATId) {
	keys := op.Keys()
	locked := n.anyKeyLockedLocked(keys)

	if locked && !n.cfg.AllowCatPendingDependencies {
		n.txStatus[tx.Id] = types.StatusFailure
		n.queueProposalLocked(catId, tx.ConstituentChains, types.ProposalFailure)
		n.log.Debug("CAT leg rejected: key already locked and pending dependencies disallowed",
			"cat", catId, "tx", tx.Id)
		return
	}

	// Either the keys were free, or they were locked and
	// allow_cat_pending_dependencies permits stacking behind the existing
	// holders. Both paths acquire a lock (FIFO-appended, so they land
	// behind whatever already holds the key) and speculate against the
	// current, authoritative kv.
	for _, k := range keys {
		n.keyLocks[k] = append(n.keyLocks[k], catId)
	}

	overlay, ok := n.speculateOpLocked(op)
	proposal := types.ProposalSuccess
	if !ok {
		proposal = types.ProposalFailure
	}

	n.cats[catId] = &catRecord{
		id:             catId,
		legTxId:        tx.Id,
		lockedKeys:     keys,
		op:             op,
		overlay:        overlay,
		proposal:       proposal,
		proposedHeight: n.currentHeight,
		deadline:       n.currentHeight + types.BlockHeight(n.cfg.CatLifetimeBlocks),
	}
	n.txStatus[tx.Id] = types.StatusPending
	n.catsProposed.Inc(1)

	n.queueProposalLocked(catId, tx.ConstituentChains, proposal)
}

// handleStatusUpdateLocked applies the scheduler's binding verdict to this
// chain's leg: commit or discard the speculative effects, release the
// locks, and drain the pending queue.
func (n *Node) handleStatusUpdateLocked(catId types.CATId, verdict types.Proposal) {
	rec, ok := n.cats[catId]
	if !ok {
		// Either this leg proposed Failure-at-entry (no record was ever
		// kept for it) or this HIG already force-expired the CAT locally.
		// Either way there is nothing left to commit, discard or unlock.
		n.log.Debug("status update for CAT with no open local record", "cat", catId, "verdict", verdict)
		return
	}
	n.resolveCATLocked(rec, verdict)
}

func (n *Node) resolveCATLocked(rec *catRecord, verdict types.Proposal) {
	if verdict == types.ProposalSuccess {
		for k, v := range rec.overlay {
			n.kv[k] = v
		}
	}
	n.txStatus[rec.legTxId] = verdict.ToTxStatus()
	n.releaseLocksLocked(rec)
	delete(n.cats, rec.id)
}

// expireLocked forces Failure on every CAT whose deadline has passed
// without a status update. It never re-sends a proposal: the scheduler
// tracks the same deadline independently on the same block clock.
func (n *Node) expireLocked() {
	for catId, rec := range n.cats {
		if rec.deadline > n.currentHeight {
			continue
		}
		n.txStatus[rec.legTxId] = types.StatusFailure
		n.releaseLocksLocked(rec)
		delete(n.cats, catId)
		n.catsExpired.Inc(1)
		n.log.Info("CAT expired locally", "cat", catId, "deadline", rec.deadline, "height", n.currentHeight)
	}
}

func (n *Node) releaseLocksLocked(rec *catRecord) {
	for _, k := range rec.lockedKeys {
		n.keyLocks[k] = removeCAT(n.keyLocks[k], rec.id)
		if len(n.keyLocks[k]) == 0 {
			delete(n.keyLocks, k)
		}
	}
	n.drainPendingForCATLocked(rec.id)
}

// drainPendingForCATLocked removes catId from every queued entry's blocking
// set and re-evaluates, front-to-back, any entry that is now unblocked.
func (n *Node) drainPendingForCATLocked(catId types.CATId) {
	remaining := n.pending[:0]
	var ready []*pendingEntry
	for _, e := range n.pending {
		delete(e.blockingCats, catId)
		if e.blocked() {
			remaining = append(remaining, e)
		} else {
			ready = append(ready, e)
		}
	}
	n.pending = remaining
	n.pendingGauge.Update(int64(len(n.pending)))

	for _, e := range ready {
		n.reevaluateLocked(e)
	}
}

// reevaluateLocked re-runs a parked regular transaction once its blocking
// set has gone empty. CAT legs never enter the pending queue in this
// grammar (handleCATLegLocked either rejects a locked key outright or
// acquires its own FIFO-appended lock), so there is only ever a regular
// transaction to re-run here.
func (n *Node) reevaluateLocked(e *pendingEntry) {
	keys := e.op.Keys()
	if n.anyKeyLockedLocked(keys) {
		n.enqueuePendingLocked(e.tx, e.op, keys)
		return
	}
	if n.applyOpLocked(e.op) {
		n.txStatus[e.tx.Id] = types.StatusSuccess
	} else {
		n.txStatus[e.tx.Id] = types.StatusFailure
	}
}

func (n *Node) enqueuePendingLocked(tx types.Transaction, op types.Op, keys []string) {
	blocking := make(map[types.CATId]bool)
	for _, k := range keys {
		for _, c := range n.keyLocks[k] {
			blocking[c] = true
		}
	}
	n.pending = append(n.pending, &pendingEntry{
		tx: tx, op: op, blockingCats: blocking,
	})
	n.pendingGauge.Update(int64(len(n.pending)))
}

func (n *Node) anyKeyLockedLocked(keys []string) bool {
	for _, k := range keys {
		if len(n.keyLocks[k]) > 0 {
			return true
		}
	}
	return false
}

// applyOpLocked executes op directly against kv. It returns false (an
// execution Failure, never a panic or retry) when a send would overdraw
// the sender.
func (n *Node) applyOpLocked(op types.Op) bool {
	switch op.Name {
	case types.OpCredit:
		n.kv[op.Account] += op.Amount
		return true
	case types.OpSend:
		if n.kv[op.From] < op.Amount {
			return false
		}
		n.kv[op.From] -= op.Amount
		n.kv[op.To] += op.Amount
		return true
	default:
		return false
	}
}

// speculateOpLocked computes op's effect without mutating kv, returning the
// resulting value for each key it would touch.
func (n *Node) speculateOpLocked(op types.Op) (map[string]int64, bool) {
	switch op.Name {
	case types.OpCredit:
		return map[string]int64{op.Account: n.kv[op.Account] + op.Amount}, true
	case types.OpSend:
		if n.kv[op.From] < op.Amount {
			return nil, false
		}
		return map[string]int64{
			op.From: n.kv[op.From] - op.Amount,
			op.To:   n.kv[op.To] + op.Amount,
		}, true
	default:
		return nil, false
	}
}

func removeCAT(s []types.CATId, target types.CATId) []types.CATId {
	out := s[:0]
	for _, c := range s {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

// queueProposalLocked hands a proposal off to the dedicated sender
// goroutine so the outbound channel send (and any artificial message
// delay) happens outside n.mu.
func (n *Node) queueProposalLocked(catId types.CATId, constituentChains []types.ChainId, proposal types.Proposal) {
	job := sendJob{
		proposal: types.CATStatusProposal{
			CatId:             catId,
			FromChain:         n.chainId,
			ConstituentChains: constituentChains,
			Proposal:          proposal,
		},
		delay: n.cfg.MessageDelay,
	}
	select {
	case n.sendQueue <- job:
	default:
		// Internal queue saturated (far more CATs proposed in one
		// sub-block than the queue's capacity): fall back to a detached
		// sender rather than stall the state-mutating goroutine. This can
		// reorder this one proposal relative to others from the same HIG;
		// it is the one place that guarantee is not absolute.
		go n.sendJobDetached(job)
	}
}

func (n *Node) sendJobDetached(job sendJob) {
	if job.delay > 0 {
		time.Sleep(job.delay)
	}
	if !n.proposalOut.Send(job.proposal) {
		n.log.Warn("dropped CAT proposal send: HS channel closed", "cat", job.proposal.CatId)
	}
}
