// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
package hyperig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperplane-sim/hyperplane/internal/comm"
	"github.com/hyperplane-sim/hyperplane/types"
)

func newTestNode(cfg Config) (*Node, comm.Sender[types.SubBlock], comm.Receiver[types.CATStatusProposal]) {
	subSend, subRecv := comm.New[types.SubBlock](8)
	propSend, propRecv := comm.New[types.CATStatusProposal](8)
	n := NewNode("chain-1", cfg, subRecv, propSend, map[string]int64{"1": 100})
	return n, subSend, propRecv
}

func recvProposal(t *testing.T, recv comm.Receiver[types.CATStatusProposal]) types.CATStatusProposal {
	t.Helper()
	select {
	case p := <-recv.RecvChan():
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for proposal")
		return types.CATStatusProposal{}
	}
}

func TestRegularCreditSucceeds(t *testing.T) {
	n, subSend, _ := newTestNode(DefaultConfig())
	n.Start()
	defer n.Shutdown()

	tx := types.Transaction{Id: "t1", ChainId: "chain-1", ConstituentChains: []types.ChainId{"chain-1"}, Data: "REGULAR.credit 1 100"}
	require.True(t, subSend.Send(types.SubBlock{BlockHeight: 1, ChainId: "chain-1", Transactions: []types.Transaction{tx}}))

	assert.Eventually(t, func() bool {
		st, err := n.GetTransactionStatus("t1")
		return err == nil && st == types.StatusSuccess
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(200), n.GetChainState()["1"])
}

func TestRegularSendInsufficientFundsFails(t *testing.T) {
	n, subSend, _ := newTestNode(DefaultConfig())
	n.Start()
	defer n.Shutdown()

	tx := types.Transaction{Id: "t1", ChainId: "chain-1", ConstituentChains: []types.ChainId{"chain-1"}, Data: "REGULAR.send 1 2 1000"}
	require.True(t, subSend.Send(types.SubBlock{BlockHeight: 1, ChainId: "chain-1", Transactions: []types.Transaction{tx}}))

	assert.Eventually(t, func() bool {
		st, err := n.GetTransactionStatus("t1")
		return err == nil && st == types.StatusFailure
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(100), n.GetChainState()["1"])
}

func TestCATLegLocksKeyAndProposes(t *testing.T) {
	n, subSend, propRecv := newTestNode(DefaultConfig())
	n.Start()
	defer n.Shutdown()

	tx := types.Transaction{
		Id: "t1", ChainId: "chain-1", ConstituentChains: []types.ChainId{"chain-1", "chain-2"},
		Data: "CAT.send 1 2 50.CAT_ID:cat-A",
	}
	require.True(t, subSend.Send(types.SubBlock{BlockHeight: 1, ChainId: "chain-1", Transactions: []types.Transaction{tx}}))

	p := recvProposal(t, propRecv)
	assert.Equal(t, types.CATId("cat-A"), p.CatId)
	assert.Equal(t, types.ProposalSuccess, p.Proposal)
	assert.Equal(t, types.ChainId("chain-1"), p.FromChain)

	assert.Eventually(t, func() bool {
		st, err := n.GetTransactionStatus("t1")
		return err == nil && st == types.StatusPending
	}, time.Second, 5*time.Millisecond)

	// Key 1 is locked: a regular transaction touching it must queue.
	blocked := types.Transaction{Id: "t2", ChainId: "chain-1", ConstituentChains: []types.ChainId{"chain-1"}, Data: "REGULAR.send 1 2 10"}
	require.True(t, subSend.Send(types.SubBlock{BlockHeight: 2, ChainId: "chain-1", Transactions: []types.Transaction{blocked}}))

	assert.Eventually(t, func() bool {
		st, err := n.GetTransactionStatus("t2")
		return err == nil && st == types.StatusPending
	}, time.Second, 5*time.Millisecond)

	// Resolve the CAT as Success: balance commits, lock releases, t2 re-evaluates.
	update := types.Transaction{Id: "t1-su", ChainId: "chain-1", ConstituentChains: []types.ChainId{"chain-1"}, Data: "STATUS_UPDATE:Success.CAT_ID:cat-A"}
	require.True(t, subSend.Send(types.SubBlock{BlockHeight: 3, ChainId: "chain-1", Transactions: []types.Transaction{update}}))

	assert.Eventually(t, func() bool {
		st, err := n.GetTransactionStatus("t1")
		return err == nil && st == types.StatusSuccess
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		st, err := n.GetTransactionStatus("t2")
		return err == nil && st != types.StatusPending
	}, time.Second, 5*time.Millisecond)

	st, err := n.GetTransactionStatus("t2")
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, st)
	assert.Equal(t, int64(40), n.GetChainState()["1"]) // 100 - 50 (CAT) - 10 (t2)
	assert.Equal(t, int64(60), n.GetChainState()["2"]) // 50 (CAT) + 10 (t2)
}

func TestCATLegRollsBackOnFailureVerdict(t *testing.T) {
	n, subSend, propRecv := newTestNode(DefaultConfig())
	n.Start()
	defer n.Shutdown()

	tx := types.Transaction{
		Id: "t1", ChainId: "chain-1", ConstituentChains: []types.ChainId{"chain-1", "chain-2"},
		Data: "CAT.send 1 2 50.CAT_ID:cat-B",
	}
	require.True(t, subSend.Send(types.SubBlock{BlockHeight: 1, ChainId: "chain-1", Transactions: []types.Transaction{tx}}))
	recvProposal(t, propRecv)

	update := types.Transaction{Id: "t1-su", ChainId: "chain-1", ConstituentChains: []types.ChainId{"chain-1"}, Data: "STATUS_UPDATE:Failure.CAT_ID:cat-B"}
	require.True(t, subSend.Send(types.SubBlock{BlockHeight: 2, ChainId: "chain-1", Transactions: []types.Transaction{update}}))

	assert.Eventually(t, func() bool {
		st, err := n.GetTransactionStatus("t1")
		return err == nil && st == types.StatusFailure
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(100), n.GetChainState()["1"])
	assert.Equal(t, int64(0), n.GetChainState()["2"])
}

func TestCATLegRejectedImmediatelyWhenKeyLockedAndDependenciesDisallowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowCatPendingDependencies = false
	n, subSend, propRecv := newTestNode(cfg)
	n.Start()
	defer n.Shutdown()

	first := types.Transaction{Id: "t1", ChainId: "chain-1", ConstituentChains: []types.ChainId{"chain-1", "chain-2"}, Data: "CAT.send 1 2 10.CAT_ID:cat-C"}
	require.True(t, subSend.Send(types.SubBlock{BlockHeight: 1, ChainId: "chain-1", Transactions: []types.Transaction{first}}))
	p1 := recvProposal(t, propRecv)
	assert.Equal(t, types.ProposalSuccess, p1.Proposal)

	second := types.Transaction{Id: "t2", ChainId: "chain-1", ConstituentChains: []types.ChainId{"chain-1", "chain-2"}, Data: "CAT.send 1 2 10.CAT_ID:cat-D"}
	require.True(t, subSend.Send(types.SubBlock{BlockHeight: 2, ChainId: "chain-1", Transactions: []types.Transaction{second}}))
	p2 := recvProposal(t, propRecv)
	assert.Equal(t, types.CATId("cat-D"), p2.CatId)
	assert.Equal(t, types.ProposalFailure, p2.Proposal)

	assert.Eventually(t, func() bool {
		st, err := n.GetTransactionStatus("t2")
		return err == nil && st == types.StatusFailure
	}, time.Second, 5*time.Millisecond)
}

func TestCATExpiresLocallyAfterDeadline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CatLifetimeBlocks = 2
	n, subSend, propRecv := newTestNode(cfg)
	n.Start()
	defer n.Shutdown()

	tx := types.Transaction{Id: "t1", ChainId: "chain-1", ConstituentChains: []types.ChainId{"chain-1", "chain-2"}, Data: "CAT.send 1 2 10.CAT_ID:cat-E"}
	require.True(t, subSend.Send(types.SubBlock{BlockHeight: 1, ChainId: "chain-1", Transactions: []types.Transaction{tx}}))
	recvProposal(t, propRecv)

	// Advance the logical clock with empty sub-blocks until past the deadline
	// (proposed at height 1, deadline = 1+2 = 3).
	require.True(t, subSend.Send(types.SubBlock{BlockHeight: 2, ChainId: "chain-1"}))
	require.True(t, subSend.Send(types.SubBlock{BlockHeight: 3, ChainId: "chain-1"}))

	assert.Eventually(t, func() bool {
		st, err := n.GetTransactionStatus("t1")
		return err == nil && st == types.StatusFailure
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(100), n.GetChainState()["1"], "expiry must roll back any speculative effect")

	// The lock must be gone: a regular send touching key 1 now succeeds.
	after := types.Transaction{Id: "t2", ChainId: "chain-1", ConstituentChains: []types.ChainId{"chain-1"}, Data: "REGULAR.send 1 2 5"}
	require.True(t, subSend.Send(types.SubBlock{BlockHeight: 4, ChainId: "chain-1", Transactions: []types.Transaction{after}}))

	assert.Eventually(t, func() bool {
		st, err := n.GetTransactionStatus("t2")
		return err == nil && st == types.StatusSuccess
	}, time.Second, 5*time.Millisecond)
}

func TestUnknownTransactionStatus(t *testing.T) {
	n, _, _ := newTestNode(DefaultConfig())
	_, err := n.GetTransactionStatus("nope")
	assert.ErrorIs(t, err, types.ErrUnknownTransaction)
}

func TestShutdownClearsHIGState(t *testing.T) {
	n, subSend, _ := newTestNode(DefaultConfig())
	n.Start()

	tx := types.Transaction{Id: "t1", ChainId: "chain-1", ConstituentChains: []types.ChainId{"chain-1"}, Data: "REGULAR.credit 1 1"}
	require.True(t, subSend.Send(types.SubBlock{BlockHeight: 1, ChainId: "chain-1", Transactions: []types.Transaction{tx}}))
	assert.Eventually(t, func() bool {
		st, err := n.GetTransactionStatus("t1")
		return err == nil && st == types.StatusSuccess
	}, time.Second, 5*time.Millisecond)

	n.Shutdown()
	assert.Empty(t, n.GetChainState())
	_, err := n.GetTransactionStatus("t1")
	assert.ErrorIs(t, err, types.ErrUnknownTransaction)
}
