// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
//
// Package hyperig implements the Hyper Information Gateway (HIG): one
// instance per chain, holding that chain's key-value state, its transaction
// status table, its key-lock engine and pending-dependency queue, and its
// CAT proposal/expiry logic. The sub-block consumer goroutine doubles as
// the CAT expiry tick: each consumed sub-block advances the logical clock
// and fires any CAT whose deadline has passed.
package hyperig

import (
	"sync"
	"time"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/hyperplane-sim/hyperplane/internal/comm"
	"github.com/hyperplane-sim/hyperplane/internal/log"
	"github.com/hyperplane-sim/hyperplane/types"
)

// Node is one chain's Hyper Information Gateway.
type Node struct {
	mu sync.Mutex

	chainId types.ChainId
	cfg     Config

	kv       map[string]int64
	txStatus map[types.TransactionId]types.TxStatus
	keyLocks map[string][]types.CATId
	pending  []*pendingEntry
	cats     map[types.CATId]*catRecord

	currentHeight types.BlockHeight

	subBlockIn  comm.Receiver[types.SubBlock]
	proposalOut comm.Sender[types.CATStatusProposal]
	sendQueue   chan sendJob

	log log.Logger

	catsProposed gometrics.Counter
	catsExpired  gometrics.Counter
	pendingGauge gometrics.Gauge

	quit    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewNode builds a HIG for chainId, seeded with an initial kv state
// (balances present before the simulation starts).
func NewNode(
	chainId types.ChainId,
	cfg Config,
	subBlockIn comm.Receiver[types.SubBlock],
	proposalOut comm.Sender[types.CATStatusProposal],
	initialKV map[string]int64,
) *Node {
	kv := make(map[string]int64, len(initialKV))
	for k, v := range initialKV {
		kv[k] = v
	}
	return &Node{
		chainId:      chainId,
		cfg:          cfg,
		kv:           kv,
		txStatus:     make(map[types.TransactionId]types.TxStatus),
		keyLocks:     make(map[string][]types.CATId),
		cats:         make(map[types.CATId]*catRecord),
		subBlockIn:   subBlockIn,
		proposalOut:  proposalOut,
		sendQueue:    make(chan sendJob, 1024),
		log:          log.NewModuleLogger("HIG:" + string(chainId)),
		catsProposed: gometrics.NewCounter(),
		catsExpired:  gometrics.NewCounter(),
		pendingGauge: gometrics.NewGauge(),
		quit:         make(chan struct{}),
	}
}

// SetMessageDelay sets the artificial outbound delay applied before sending
// a CATStatusProposal, modeling network/processing latency for simulation
// studies.
func (n *Node) SetMessageDelay(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cfg.MessageDelay = d
}

// GetTransactionStatus returns the current status of a transaction this HIG
// has seen.
func (n *Node) GetTransactionStatus(id types.TransactionId) (types.TxStatus, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	st, ok := n.txStatus[id]
	if !ok {
		return 0, errorsWrapUnknownTransaction(id)
	}
	return st, nil
}

// GetChainState returns a snapshot copy of the account balances.
func (n *Node) GetChainState() map[string]int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]int64, len(n.kv))
	for k, v := range n.kv {
		out[k] = v
	}
	return out
}

// Start launches the sub-block consumer / expiry-tick loop. Idempotent.
func (n *Node) Start() {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.quit = make(chan struct{})
	n.mu.Unlock()

	n.wg.Add(2)
	go n.runLoop()
	go n.runSender()
}

// Shutdown stops the loop and clears all state. Idempotent; safe before
// Start. Closing the sub-block inbound drops in-flight deliveries and
// unblocks a sequencer mid-send to this chain, which would otherwise hold
// up the whole block-production loop waiting on a gateway that is gone.
func (n *Node) Shutdown() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		n.subBlockIn.Close()
		n.resetState()
		return
	}
	n.running = false
	close(n.quit)
	n.mu.Unlock()

	n.subBlockIn.Close()
	n.wg.Wait()

	n.mu.Lock()
	n.resetState()
	n.mu.Unlock()
}

func (n *Node) resetState() {
	n.kv = make(map[string]int64)
	n.txStatus = make(map[types.TransactionId]types.TxStatus)
	n.keyLocks = make(map[string][]types.CATId)
	n.pending = nil
	n.cats = make(map[types.CATId]*catRecord)
	n.currentHeight = 0
	n.pendingGauge.Update(0)
}

func (n *Node) runLoop() {
	defer n.wg.Done()

	subCh := n.subBlockIn.RecvChan()
	subDone := n.subBlockIn.Done()

	for {
		select {
		case sub := <-subCh:
			n.consumeSubBlock(sub)

		case <-subDone:
			subCh = nil
			subDone = nil

		case <-n.quit:
			return
		}
	}
}

// runSender is the single goroutine that actually performs outbound
// CATStatusProposal sends, strictly in the order queueProposalLocked
// enqueued them, so two proposals from this gateway are observed by the
// scheduler in the order they were decided.
func (n *Node) runSender() {
	defer n.wg.Done()
	for {
		select {
		case job := <-n.sendQueue:
			n.sendJobDetached(job)
		case <-n.quit:
			return
		}
	}
}

// consumeSubBlock processes every transaction in delivery order, then
// advances the logical clock and fires any CAT whose deadline has passed.
func (n *Node) consumeSubBlock(sub types.SubBlock) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.currentHeight = sub.BlockHeight
	for _, tx := range sub.Transactions {
		n.processTransactionLocked(tx)
	}
	n.expireLocked()
}
