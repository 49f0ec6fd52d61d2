// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
//
// Package confirmationlayer implements the Confirmation Layer (CL): the
// single global sequencer that accepts CLTransactions, produces blocks at a
// fixed cadence, and fans out per-chain sub-blocks. One background goroutine
// owns the production loop, selecting over the block ticker, the scheduler's
// status-update feed, and a quit channel; all state lives behind one mutex
// and no channel send happens while it is held.
package confirmationlayer

import (
	"sync"
	"time"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/hyperplane-sim/hyperplane/internal/cache"
	"github.com/hyperplane-sim/hyperplane/internal/comm"
	"github.com/hyperplane-sim/hyperplane/internal/log"
	"github.com/hyperplane-sim/hyperplane/types"
)

// Block is one produced block: the height it was sealed at and every
// CLTransaction's legs that were drained into it, in submission order.
type Block struct {
	Height BlockHeight
	Txs    []types.Transaction
}

// BlockHeight is re-exported for package-local readability.
type BlockHeight = types.BlockHeight

type chainRegistration struct {
	id       types.ChainId
	outbound comm.Sender[types.SubBlock]
}

// Node is the Confirmation Layer. One instance is the whole role; there is
// no replication.
type Node struct {
	mu sync.Mutex

	cfg Config

	registered    []chainRegistration
	registeredSet *types.ChainSet

	// heightListeners are notified with the height of every produced block,
	// e.g. the Hyper Scheduler's independent CAT-expiry clock. CAT lifetime
	// is measured in blocks, not wall time, so every observer of this feed
	// ages CATs against the same clock.
	heightListeners []comm.Sender[types.BlockHeight]

	pending []types.CLTransaction

	currentHeight BlockHeight
	blocks        []Block
	// subBlocks holds each chain's sub-blocks in height order, starting at
	// the first block produced after that chain registered.
	subBlocks map[types.ChainId][]types.SubBlock

	cache *cache.SubBlockCache

	statusUpdateRecv comm.Receiver[types.CLTransaction]
	statusUpdateSend comm.Sender[types.CLTransaction]

	log log.Logger

	blocksProduced gometrics.Counter
	pendingGauge   gometrics.Gauge

	quit    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewNode builds a Confirmation Layer with the given configuration. cfg
// must already be valid; NewNode does not re-validate it so that callers
// surface configuration errors at the point they built cfg.
func NewNode(cfg Config) *Node {
	sendCLTx, recvCLTx := comm.New[types.CLTransaction](cfg.ChannelBufferSize)
	return &Node{
		cfg:              cfg,
		registeredSet:    types.NewChainSet(),
		subBlocks:        make(map[types.ChainId][]types.SubBlock),
		cache:            cache.NewSubBlockCache(cfg.SubBlockCacheSize),
		statusUpdateRecv: recvCLTx,
		statusUpdateSend: sendCLTx,
		log:              log.NewModuleLogger("CL"),
		blocksProduced:   gometrics.NewCounter(),
		pendingGauge:     gometrics.NewGauge(),
		quit:             make(chan struct{}),
	}
}

// StatusUpdateInbound returns the send-only endpoint the Hyper Scheduler
// uses to submit a resolved CAT's status-update CLTransaction. This is the
// channel-based counterpart to client submission; the scheduler never calls
// into CL's methods directly.
func (n *Node) StatusUpdateInbound() comm.Sender[types.CLTransaction] {
	return n.statusUpdateSend
}

// RegisterHeightListener adds a receiver of this CL's produced-block
// heights. Typically bound once, by the Hyper Scheduler.
func (n *Node) RegisterHeightListener(s comm.Sender[types.BlockHeight]) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.heightListeners = append(n.heightListeners, s)
}

// RegisterChain binds chainId's outbound sub-block channel. Idempotent by
// error: a second registration of the same chain fails.
func (n *Node) RegisterChain(chainId types.ChainId, outbound comm.Sender[types.SubBlock]) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.registeredSet.Has(chainId) {
		return errorsWrapChainAlreadyRegistered(chainId)
	}
	n.registeredSet.Add(chainId)
	n.registered = append(n.registered, chainRegistration{id: chainId, outbound: outbound})
	n.log.Info("chain registered", "chain", chainId)
	return nil
}

// SubmitTransaction validates cltx and appends it to pending_transactions
// in arrival order.
func (n *Node) SubmitTransaction(cltx types.CLTransaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.appendPendingLocked(cltx)
}

func (n *Node) appendPendingLocked(cltx types.CLTransaction) error {
	if err := cltx.Validate(); err != nil {
		return err
	}
	for _, chainId := range cltx.ConstituentChains {
		if !n.registeredSet.Has(chainId) {
			return errorsWrapUnknownChain(chainId)
		}
	}
	n.pending = append(n.pending, cltx)
	n.pendingGauge.Update(int64(len(n.pending)))
	return nil
}

// GetSubBlock returns the sub-block delivered to chainId at height, served
// from the LRU front cache when possible and falling back to the
// authoritative history otherwise. History is retained for the life of the
// run, so any height from the chain's registration up to the current block
// can be replayed.
func (n *Node) GetSubBlock(chainId types.ChainId, height BlockHeight) (types.SubBlock, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.registeredSet.Has(chainId) {
		return types.SubBlock{}, errorsWrapUnknownChain(chainId)
	}
	key := cache.Key{Chain: string(chainId), Height: uint64(height)}
	if v, ok := n.cache.Get(key); ok {
		return v.(types.SubBlock), nil
	}
	history := n.subBlocks[chainId]
	if len(history) == 0 || height < history[0].BlockHeight ||
		uint64(height-history[0].BlockHeight) >= uint64(len(history)) {
		return types.SubBlock{}, errorsWrapUnknownHeight(height)
	}
	sub := history[height-history[0].BlockHeight]
	n.cache.Add(key, sub)
	return sub, nil
}

// GetCurrentBlock returns the height of the most recently produced block.
func (n *Node) GetCurrentBlock() BlockHeight {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentHeight
}

// GetRegisteredChains returns every registered chain in registration order.
func (n *Node) GetRegisteredChains() []types.ChainId {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]types.ChainId, len(n.registered))
	for i, r := range n.registered {
		out[i] = r.id
	}
	return out
}

// SetBlockInterval changes the block-production cadence; it must be > 0.
// Takes effect at the next tick.
func (n *Node) SetBlockInterval(d time.Duration) error {
	if d <= 0 {
		return errorsWrapInvalidBlockInterval(d)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cfg.BlockInterval = d
	return nil
}

func (n *Node) blockInterval() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cfg.BlockInterval
}

// Start launches the block-production loop. Idempotent: calling Start on an
// already-running Node is a no-op.
func (n *Node) Start() {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.quit = make(chan struct{})
	n.mu.Unlock()

	n.wg.Add(1)
	go n.runLoop()
}

// Shutdown stops the block-production loop and clears all state. Idempotent
// and safe to call before Start. A subsequent Start begins from empty state.
// The status-update inbound is closed so a scheduler mid-send observes the
// drop instead of blocking on a sequencer that is gone.
func (n *Node) Shutdown() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		n.statusUpdateRecv.Close()
		n.resetState()
		return
	}
	n.running = false
	close(n.quit)
	n.mu.Unlock()

	n.statusUpdateRecv.Close()
	n.wg.Wait()

	n.mu.Lock()
	n.resetState()
	n.mu.Unlock()
}

func (n *Node) resetState() {
	n.registered = nil
	n.registeredSet = types.NewChainSet()
	n.heightListeners = nil
	n.pending = nil
	n.currentHeight = 0
	n.blocks = nil
	n.subBlocks = make(map[types.ChainId][]types.SubBlock)
	n.cache.Purge()
	n.pendingGauge.Update(0)
}

func (n *Node) runLoop() {
	defer n.wg.Done()

	ticker := time.NewTicker(n.blockInterval())
	defer ticker.Stop()
	currentInterval := n.blockInterval()

	statusUpdateCh := n.statusUpdateRecv.RecvChan()
	statusUpdateDone := n.statusUpdateRecv.Done()

	for {
		select {
		case <-ticker.C:
			n.produceBlock()
			if iv := n.blockInterval(); iv != currentInterval {
				ticker.Reset(iv)
				currentInterval = iv
			}

		case cltx := <-statusUpdateCh:
			n.mu.Lock()
			if err := n.appendPendingLocked(cltx); err != nil {
				n.log.Error("rejected status-update CLTransaction from HS", "cl_id", cltx.CLId, "err", err)
			}
			n.mu.Unlock()

		case <-statusUpdateDone:
			statusUpdateCh = nil
			statusUpdateDone = nil

		case <-n.quit:
			return
		}
	}
}

// produceBlock drains pending CLTransactions into a new block, records the
// per-chain sub-blocks, and delivers them in registration order. Empty
// blocks are still produced and delivered: they are the forward-progress
// clock HIGs and the scheduler measure CAT lifetime against.
func (n *Node) produceBlock() {
	n.mu.Lock()
	cltxs := n.pending
	n.pending = nil
	n.pendingGauge.Update(0)
	n.currentHeight++
	height := n.currentHeight
	chains := make([]chainRegistration, len(n.registered))
	copy(chains, n.registered)
	n.mu.Unlock()

	// Flatten every sealed CLTransaction into its constituent legs, in
	// submission order: each leg's own ChainId (not the shared
	// constituent_chains set) is what routes it into a sub-block.
	var legs []types.Transaction
	for _, cltx := range cltxs {
		legs = append(legs, cltx.Transactions...)
	}

	for _, c := range chains {
		var subTxs []types.Transaction
		for _, leg := range legs {
			if leg.ChainId == c.id {
				subTxs = append(subTxs, leg)
			}
		}
		sub := types.SubBlock{BlockHeight: height, ChainId: c.id, Transactions: subTxs}

		n.mu.Lock()
		n.subBlocks[c.id] = append(n.subBlocks[c.id], sub)
		n.cache.Add(cache.Key{Chain: string(c.id), Height: uint64(height)}, sub)
		n.mu.Unlock()

		if !c.outbound.Send(sub) {
			n.log.Warn("dropped sub-block send to closed chain", "chain", c.id, "height", height)
		}
	}

	n.mu.Lock()
	n.blocks = append(n.blocks, Block{Height: height, Txs: legs})
	listeners := make([]comm.Sender[types.BlockHeight], len(n.heightListeners))
	copy(listeners, n.heightListeners)
	n.mu.Unlock()

	for _, l := range listeners {
		if !l.Send(height) {
			n.log.Debug("dropped height notification to closed listener", "height", height)
		}
	}

	n.blocksProduced.Inc(1)
	n.log.Debug("block produced", "height", height, "tx_count", len(legs))
}
