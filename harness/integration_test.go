// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperplane-sim/hyperplane/internal/comm"
	"github.com/hyperplane-sim/hyperplane/types"
)

func fastConfig(chainIds ...types.ChainId) Config {
	cfg := DefaultConfig(chainIds...)
	cfg.CL.BlockInterval = 10 * time.Millisecond
	return cfg
}

func buildTx(id types.TransactionId, chain types.ChainId, constituents []types.ChainId, clId types.CLTransactionId, data string) types.Transaction {
	return types.Transaction{Id: id, ChainId: chain, ConstituentChains: constituents, CLId: clId, Data: data}
}

// A single-chain regular credit commits
// immediately and is visible in the chain's balance.
func TestScenarioSingleChainRegularCredit(t *testing.T) {
	cfg := fastConfig("chain-A")
	sys, err := NewWiredSystem(cfg)
	require.NoError(t, err)
	sys.Start()
	defer sys.Shutdown()

	cltx := types.CLTransaction{
		CLId:              "cl-1",
		ConstituentChains: []types.ChainId{"chain-A"},
		Transactions:      []types.Transaction{buildTx("t1", "chain-A", []types.ChainId{"chain-A"}, "cl-1", types.EncodeRegularCredit("1", 100))},
	}
	require.NoError(t, sys.SubmitTransaction(cltx))

	hig, ok := sys.HIG("chain-A")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		st, err := hig.GetTransactionStatus("t1")
		return err == nil && st == types.StatusSuccess
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(100), hig.GetChainState()["1"])
}

// A two-chain CAT where both legs succeed
// resolves Success end to end and commits on both chains.
func TestScenarioTwoChainCATSuccess(t *testing.T) {
	cfg := fastConfig("chain-A", "chain-B")
	for i := range cfg.Chains {
		cfg.Chains[i].InitialKV = map[string]int64{"1": 100}
	}
	sys, err := NewWiredSystem(cfg)
	require.NoError(t, err)
	sys.Start()
	defer sys.Shutdown()

	chains := []types.ChainId{"chain-A", "chain-B"}
	cltx := types.CLTransaction{
		CLId:              "cl-2",
		ConstituentChains: chains,
		Transactions: []types.Transaction{
			buildTx("leg-A", "chain-A", chains, "cl-2", types.EncodeCATSend("1", "2", 30, "cat-x")),
			buildTx("leg-B", "chain-B", chains, "cl-2", types.EncodeCATSend("1", "2", 30, "cat-x")),
		},
	}
	require.NoError(t, sys.SubmitTransaction(cltx))

	higA, _ := sys.HIG("chain-A")
	higB, _ := sys.HIG("chain-B")

	assert.Eventually(t, func() bool {
		v, err := sys.HS.GetCATStatus("cat-x")
		return err == nil && v == types.VerdictSuccess
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		stA, errA := higA.GetTransactionStatus("leg-A")
		stB, errB := higB.GetTransactionStatus("leg-B")
		return errA == nil && errB == nil && stA == types.StatusSuccess && stB == types.StatusSuccess
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(70), higA.GetChainState()["1"])
	assert.Equal(t, int64(130), higB.GetChainState()["2"])
}

// One chain's leg fails (insufficient funds),
// so the whole CAT resolves Failure and every chain rolls back.
func TestScenarioTwoChainCATFailure(t *testing.T) {
	cfg := fastConfig("chain-A", "chain-B")
	cfg.Chains[0].InitialKV = map[string]int64{"1": 100}
	cfg.Chains[1].InitialKV = map[string]int64{"1": 5} // insufficient for the send below
	sys, err := NewWiredSystem(cfg)
	require.NoError(t, err)
	sys.Start()
	defer sys.Shutdown()

	chains := []types.ChainId{"chain-A", "chain-B"}
	cltx := types.CLTransaction{
		CLId:              "cl-3",
		ConstituentChains: chains,
		Transactions: []types.Transaction{
			buildTx("leg-A", "chain-A", chains, "cl-3", types.EncodeCATSend("1", "2", 30, "cat-y")),
			buildTx("leg-B", "chain-B", chains, "cl-3", types.EncodeCATSend("1", "2", 30, "cat-y")),
		},
	}
	require.NoError(t, sys.SubmitTransaction(cltx))

	higA, _ := sys.HIG("chain-A")

	assert.Eventually(t, func() bool {
		v, err := sys.HS.GetCATStatus("cat-y")
		return err == nil && v == types.VerdictFailure
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		st, err := higA.GetTransactionStatus("leg-A")
		return err == nil && st == types.StatusFailure
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(100), higA.GetChainState()["1"], "the successfully-locked leg must roll back once the CAT resolves Failure")
}

// A CAT whose counterparty chain never
// proposes expires on both the HIG's and the HS's independent clocks.
func TestScenarioCATExpiry(t *testing.T) {
	cfg := fastConfig("chain-A", "chain-B")
	for i := range cfg.Chains {
		cfg.Chains[i].HIG.CatLifetimeBlocks = 2
		cfg.Chains[i].InitialKV = map[string]int64{"1": 100}
	}
	cfg.HS.CatLifetimeBlocks = 2
	sys, err := NewWiredSystem(cfg)
	require.NoError(t, err)
	sys.Start()
	defer sys.Shutdown()

	chains := []types.ChainId{"chain-A", "chain-B"}
	cltx := types.CLTransaction{
		CLId:              "cl-4",
		ConstituentChains: []types.ChainId{"chain-A"},
		Transactions: []types.Transaction{
			buildTx("leg-A", "chain-A", chains, "cl-4", types.EncodeCATSend("1", "2", 10, "cat-z")),
		},
	}
	require.NoError(t, sys.SubmitTransaction(cltx))

	higA, _ := sys.HIG("chain-A")

	assert.Eventually(t, func() bool {
		v, err := sys.HS.GetCATStatus("cat-z")
		return err == nil && v == types.VerdictFailure
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		st, err := higA.GetTransactionStatus("leg-A")
		return err == nil && st == types.StatusFailure
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(100), higA.GetChainState()["1"])
}

// A regular transaction queued behind a
// locked key re-evaluates once the CAT holding it resolves.
func TestScenarioPendingDependencyReevaluates(t *testing.T) {
	cfg := fastConfig("chain-A", "chain-B")
	// A slower cadence keeps each intermediate Pending state observable for
	// a whole block interval.
	cfg.CL.BlockInterval = 100 * time.Millisecond
	cfg.Chains[0].HIG.AllowCatPendingDependencies = true
	for i := range cfg.Chains {
		cfg.Chains[i].InitialKV = map[string]int64{"1": 100, "2": 0}
	}
	sys, err := NewWiredSystem(cfg)
	require.NoError(t, err)
	defer sys.Shutdown()

	chains := []types.ChainId{"chain-A", "chain-B"}
	cat := types.CLTransaction{
		CLId:              "cl-5a",
		ConstituentChains: chains,
		Transactions: []types.Transaction{
			buildTx("leg-A", "chain-A", chains, "cl-5a", types.EncodeCATSend("1", "2", 20, "cat-w")),
			buildTx("leg-B", "chain-B", chains, "cl-5a", types.EncodeCATSend("1", "2", 20, "cat-w")),
		},
	}
	require.NoError(t, sys.SubmitTransaction(cat))

	// Both CLTransactions are submitted before Start so they are sealed into
	// block 1 with the CAT leg first: t-blocked then finds key 1 locked by
	// cat-w. Submitted later, it could share a block with cat-w's
	// status update and execute without ever being blocked.
	blocked := types.CLTransaction{
		CLId:              "cl-5b",
		ConstituentChains: []types.ChainId{"chain-A"},
		Transactions: []types.Transaction{
			buildTx("t-blocked", "chain-A", []types.ChainId{"chain-A"}, "cl-5b", types.EncodeRegularSend("1", "2", 15)),
		},
	}
	require.NoError(t, sys.SubmitTransaction(blocked))

	sys.Start()

	higA, _ := sys.HIG("chain-A")
	assert.Eventually(t, func() bool {
		st, err := higA.GetTransactionStatus("leg-A")
		return err == nil && st == types.StatusPending
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		st, err := higA.GetTransactionStatus("t-blocked")
		return err == nil && st == types.StatusPending
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		v, err := sys.HS.GetCATStatus("cat-w")
		return err == nil && v == types.VerdictSuccess
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		st, err := higA.GetTransactionStatus("t-blocked")
		return err == nil && st != types.StatusPending
	}, 2*time.Second, 5*time.Millisecond)

	st, err := higA.GetTransactionStatus("t-blocked")
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, st)
	assert.Equal(t, int64(65), higA.GetChainState()["1"]) // 100 - 20 (cat) - 15 (blocked)
}

// Shutdown clears every role's state, and the
// system comes back up empty and ready to re-register.
func TestScenarioShutdownClearsWholeSystem(t *testing.T) {
	cfg := fastConfig("chain-A")
	sys, err := NewWiredSystem(cfg)
	require.NoError(t, err)
	sys.Start()

	cltx := types.CLTransaction{
		CLId:              "cl-6",
		ConstituentChains: []types.ChainId{"chain-A"},
		Transactions:      []types.Transaction{buildTx("t1", "chain-A", []types.ChainId{"chain-A"}, "cl-6", types.EncodeRegularCredit("1", 1))},
	}
	require.NoError(t, sys.SubmitTransaction(cltx))

	higA, _ := sys.HIG("chain-A")
	assert.Eventually(t, func() bool {
		st, err := higA.GetTransactionStatus("t1")
		return err == nil && st == types.StatusSuccess
	}, 2*time.Second, 5*time.Millisecond)

	sys.Shutdown()

	assert.Equal(t, types.BlockHeight(0), sys.CL.GetCurrentBlock())
	assert.Empty(t, sys.CL.GetRegisteredChains())
	assert.Empty(t, higA.GetChainState())
	assert.Empty(t, sys.HS.GetPendingCATs())
}

func TestConcurrentChainRegistrationIsSafe(t *testing.T) {
	cfg := fastConfig()
	sys, err := NewWiredSystem(cfg)
	require.NoError(t, err)
	sys.Start()
	defer sys.Shutdown()

	done := make(chan error, 4)
	ids := []types.ChainId{"chain-1", "chain-2", "chain-3", "chain-4"}
	for _, id := range ids {
		id := id
		go func() {
			send, _ := comm.New[types.SubBlock](1)
			done <- sys.CL.RegisterChain(id, send)
		}()
	}
	for range ids {
		require.NoError(t, <-done)
	}
	assert.Len(t, sys.CL.GetRegisteredChains(), 4)
}
