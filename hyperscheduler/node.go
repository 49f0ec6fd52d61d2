// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
//
// Package hyperscheduler implements the Hyper Scheduler (HS): the single
// global aggregator that collects each Hyper Information Gateway's CAT
// proposal and, once every constituent chain has weighed in (or any one has
// failed), emits a binding verdict back through the Confirmation Layer.
// One consumer goroutine runs per registered chain's proposal stream, plus
// one for the block-height feed that drives the independent expiry clock;
// all of them mutate one state behind one mutex.
package hyperscheduler

import (
	"sort"
	"sync"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/hyperplane-sim/hyperplane/internal/comm"
	"github.com/hyperplane-sim/hyperplane/internal/log"
	"github.com/hyperplane-sim/hyperplane/types"
)

type chainRegistration struct {
	id      types.ChainId
	inbound comm.Receiver[types.CATStatusProposal]
}

// Node is the Hyper Scheduler. One instance is the whole role; there is no
// replication.
type Node struct {
	mu sync.Mutex

	cfg Config

	registered    []chainRegistration
	registeredSet *types.ChainSet

	cats     map[types.CATId]*catAggregate
	resolved map[types.CATId]types.Verdict

	currentHeight types.BlockHeight

	statusOut comm.Sender[types.CLTransaction]
	heightIn  comm.Receiver[types.BlockHeight]
	sendQueue chan types.CLTransaction

	log log.Logger

	catsFinalized gometrics.Counter
	catsExpired   gometrics.Counter
	pendingGauge  gometrics.Gauge

	quit    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewNode builds a Hyper Scheduler. statusOut is the Confirmation Layer's
// StatusUpdateInbound() sender; heightIn is a receiver fed by the same
// layer's RegisterHeightListener, so the scheduler's deadline tracking
// advances from the identical block-height clock each gateway measures its
// own local expiry against.
func NewNode(cfg Config, statusOut comm.Sender[types.CLTransaction], heightIn comm.Receiver[types.BlockHeight]) *Node {
	return &Node{
		cfg:           cfg,
		registeredSet: types.NewChainSet(),
		cats:          make(map[types.CATId]*catAggregate),
		resolved:      make(map[types.CATId]types.Verdict),
		statusOut:     statusOut,
		heightIn:      heightIn,
		sendQueue:     make(chan types.CLTransaction, 1024),
		log:           log.NewModuleLogger("HS"),
		catsFinalized: gometrics.NewCounter(),
		catsExpired:   gometrics.NewCounter(),
		pendingGauge:  gometrics.NewGauge(),
		quit:          make(chan struct{}),
	}
}

// RegisterChain binds chain_id's inbound CAT-proposal stream.
func (n *Node) RegisterChain(chainId types.ChainId, inbound comm.Receiver[types.CATStatusProposal]) error {
	n.mu.Lock()
	if n.registeredSet.Has(chainId) {
		n.mu.Unlock()
		return errorsWrapChainAlreadyRegistered(chainId)
	}
	n.registeredSet.Add(chainId)
	reg := chainRegistration{id: chainId, inbound: inbound}
	n.registered = append(n.registered, reg)
	running := n.running
	n.mu.Unlock()

	n.log.Info("chain registered", "chain", chainId)
	if running {
		n.wg.Add(1)
		go n.consumeProposals(reg)
	}
	return nil
}

// ProcessCatStatusProposal records one chain's proposal for a CAT and
// finalizes the CAT when the aggregate allows it. Gateways submit proposals
// over an async channel rather than calling this directly, but the method
// is exported so direct callers (tests included) get the same return code
// consumeProposals otherwise only logs.
func (n *Node) ProcessCatStatusProposal(
	catId types.CATId,
	fromChain types.ChainId,
	constituentChains []types.ChainId,
	proposal types.Proposal,
) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.processCatStatusProposalLocked(catId, fromChain, constituentChains, proposal)
}

// GetCATStatus returns cat_id's current aggregate status.
func (n *Node) GetCATStatus(catId types.CATId) (types.Verdict, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.cats[catId]; ok {
		return types.VerdictPending, nil
	}
	if v, ok := n.resolved[catId]; ok {
		return v, nil
	}
	return types.VerdictPending, errorsWrapUnknownCAT(catId)
}

// GetPendingCATs returns every cat_id with an aggregate still open, sorted
// for deterministic output.
func (n *Node) GetPendingCATs() []types.CATId {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]types.CATId, 0, len(n.cats))
	for id := range n.cats {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Start launches the proposal-consumer and height-feed loops. Idempotent.
func (n *Node) Start() {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.quit = make(chan struct{})
	regs := make([]chainRegistration, len(n.registered))
	copy(regs, n.registered)
	n.mu.Unlock()

	n.wg.Add(2)
	go n.runHeightLoop()
	go n.runSender()

	for _, reg := range regs {
		n.wg.Add(1)
		go n.consumeProposals(reg)
	}
}

// Shutdown stops every loop and clears all aggregation state. Idempotent and
// safe before Start; a following Start begins from empty state. Registered
// proposal inbounds are closed so a gateway mid-send observes the drop
// instead of blocking; re-registration after a restart supplies fresh ones.
func (n *Node) Shutdown() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		n.closeInbounds()
		n.resetState()
		return
	}
	n.running = false
	close(n.quit)
	n.mu.Unlock()

	n.closeInbounds()
	n.wg.Wait()

	n.mu.Lock()
	n.resetState()
	n.mu.Unlock()
}

func (n *Node) closeInbounds() {
	n.mu.Lock()
	regs := make([]chainRegistration, len(n.registered))
	copy(regs, n.registered)
	n.mu.Unlock()
	for _, reg := range regs {
		reg.inbound.Close()
	}
	n.heightIn.Close()
}

func (n *Node) resetState() {
	n.registered = nil
	n.registeredSet = types.NewChainSet()
	n.cats = make(map[types.CATId]*catAggregate)
	n.resolved = make(map[types.CATId]types.Verdict)
	n.currentHeight = 0
	n.pendingGauge.Update(0)
}

func (n *Node) consumeProposals(reg chainRegistration) {
	defer n.wg.Done()

	ch := reg.inbound.RecvChan()
	done := reg.inbound.Done()

	for {
		select {
		case p := <-ch:
			if err := n.ProcessCatStatusProposal(p.CatId, p.FromChain, p.ConstituentChains, p.Proposal); err != nil {
				n.log.Debug("rejected CAT status proposal", "cat", p.CatId, "from", p.FromChain, "err", err)
			}

		case <-done:
			ch = nil
			done = nil

		case <-n.quit:
			return
		}
	}
}

func (n *Node) runHeightLoop() {
	defer n.wg.Done()

	ch := n.heightIn.RecvChan()
	done := n.heightIn.Done()

	for {
		select {
		case h := <-ch:
			n.mu.Lock()
			n.advanceBlockLocked(h)
			n.mu.Unlock()

		case <-done:
			ch = nil
			done = nil

		case <-n.quit:
			return
		}
	}
}

func (n *Node) runSender() {
	defer n.wg.Done()
	for {
		select {
		case cltx := <-n.sendQueue:
			n.sendStatusUpdate(cltx)
		case <-n.quit:
			return
		}
	}
}

func (n *Node) sendStatusUpdate(cltx types.CLTransaction) {
	if !n.statusOut.Send(cltx) {
		n.log.Warn("dropped status-update CLTransaction: CL channel closed", "cl_id", cltx.CLId)
	}
}

// advanceBlockLocked ages every open CAT against the block clock: any CAT
// whose independently tracked deadline has passed without a final verdict
// is forced to Failure, regardless of straggler proposals.
func (n *Node) advanceBlockLocked(h types.BlockHeight) {
	n.currentHeight = h
	for catId, agg := range n.cats {
		if agg.deadline > h {
			continue
		}
		n.finalizeLocked(agg, types.VerdictFailure)
		delete(n.cats, catId)
		n.catsExpired.Inc(1)
		n.log.Info("CAT expired on HS clock", "cat", catId, "deadline", agg.deadline, "height", h)
	}
	n.pendingGauge.Update(int64(len(n.cats)))
}

// processCatStatusProposalLocked applies the aggregation rule: first
// proposal records the constituent set; any Failure finalizes immediately;
// all chains proposing Success finalizes Success.
func (n *Node) processCatStatusProposalLocked(
	catId types.CATId,
	fromChain types.ChainId,
	constituentChains []types.ChainId,
	proposal types.Proposal,
) error {
	if !n.registeredSet.Has(fromChain) {
		return errorsWrapUnknownChain(fromChain)
	}

	agg, ok := n.cats[catId]
	if !ok {
		if _, wasResolved := n.resolved[catId]; wasResolved {
			return errorsWrapDuplicateProposal(catId, fromChain)
		}
		agg = &catAggregate{
			id:                  catId,
			constituentChains:   append([]types.ChainId(nil), constituentChains...),
			chainwise:           make(map[types.ChainId]types.Proposal),
			firstProposalHeight: n.currentHeight,
			deadline:            n.currentHeight + types.BlockHeight(n.cfg.CatLifetimeBlocks),
		}
		n.cats[catId] = agg
		n.pendingGauge.Update(int64(len(n.cats)))
	}

	if !containsChain(agg.constituentChains, fromChain) {
		return errorsWrapChainNotInCAT(catId, fromChain)
	}
	if _, dup := agg.chainwise[fromChain]; dup {
		return errorsWrapDuplicateProposal(catId, fromChain)
	}
	agg.chainwise[fromChain] = proposal

	if proposal == types.ProposalFailure {
		n.finalizeLocked(agg, types.VerdictFailure)
		delete(n.cats, catId)
		n.pendingGauge.Update(int64(len(n.cats)))
		return nil
	}
	if agg.allSucceeded() {
		n.finalizeLocked(agg, types.VerdictSuccess)
		delete(n.cats, catId)
		n.pendingGauge.Update(int64(len(n.cats)))
	}
	return nil
}

// finalizeLocked records the binding verdict and queues the single
// status-update CLTransaction this CAT will ever produce.
func (n *Node) finalizeLocked(agg *catAggregate, verdict types.Verdict) {
	n.resolved[agg.id] = verdict
	n.catsFinalized.Inc(1)

	cltx := buildStatusUpdateCLTransaction(agg.id, agg.constituentChains, verdict)
	select {
	case n.sendQueue <- cltx:
	default:
		go n.sendStatusUpdate(cltx)
	}
}

func buildStatusUpdateCLTransaction(catId types.CATId, chains []types.ChainId, verdict types.Verdict) types.CLTransaction {
	clId := types.CLTransactionId(catId)
	proposal := types.ProposalSuccess
	if verdict == types.VerdictFailure {
		proposal = types.ProposalFailure
	}
	legs := make([]types.Transaction, len(chains))
	for i, c := range chains {
		legs[i] = types.Transaction{
			Id:                types.TransactionId(string(catId) + ":" + string(c) + ":status"),
			ChainId:           c,
			ConstituentChains: chains,
			Data:              types.EncodeStatusUpdate(proposal, catId),
			CLId:              clId,
		}
	}
	return types.CLTransaction{CLId: clId, ConstituentChains: chains, Transactions: legs}
}
