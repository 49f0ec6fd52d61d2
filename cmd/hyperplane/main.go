// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
//
// hyperplane is a minimal orchestration entry point: it wires one
// Confirmation Layer, a handful of Hyper Information Gateways and one Hyper
// Scheduler together via harness.NewWiredSystem and drives a few demo
// transactions through them. It is not a load generator or parameter-sweep
// driver; those live outside this module.
package main

import (
	"fmt"
	"time"

	"github.com/hyperplane-sim/hyperplane/harness"
	"github.com/hyperplane-sim/hyperplane/internal/idgen"
	"github.com/hyperplane-sim/hyperplane/internal/log"
	"github.com/hyperplane-sim/hyperplane/types"
)

var logger = log.NewModuleLogger("demo")

func main() {
	const chainA, chainB = types.ChainId("chain-1"), types.ChainId("chain-2")

	cfg := harness.DefaultConfig(chainA, chainB)
	cfg.CL.BlockInterval = 50 * time.Millisecond
	cfg.Chains[0].InitialKV = map[string]int64{"1": 100}
	cfg.Chains[1].InitialKV = map[string]int64{"1": 100}

	sys, err := harness.NewWiredSystem(cfg)
	if err != nil {
		logger.Crit("failed to wire system", "err", err)
		return
	}
	sys.Start()
	defer sys.Shutdown()

	submitRegularCredit(sys, chainA)
	time.Sleep(200 * time.Millisecond)

	catId := types.CATId(idgen.Prefixed("cat"))
	submitCAT(sys, catId, "2", 50, chainA, chainB)
	time.Sleep(500 * time.Millisecond)

	for _, chainId := range []types.ChainId{chainA, chainB} {
		hig, ok := sys.HIG(chainId)
		if !ok {
			continue
		}
		logger.Info("final chain state", "chain", chainId, "kv", hig.GetChainState())
	}

	verdict, err := sys.HS.GetCATStatus(catId)
	if err != nil {
		logger.Warn("CAT status lookup failed", "cat", catId, "err", err)
		return
	}
	fmt.Printf("CAT %s resolved: %s\n", catId, verdict)
}

func submitRegularCredit(sys *harness.System, chainId types.ChainId) {
	txId := types.TransactionId(idgen.Prefixed("tx"))
	clId := types.CLTransactionId(idgen.Prefixed("cl"))
	tx := types.Transaction{
		Id:                txId,
		ChainId:           chainId,
		ConstituentChains: []types.ChainId{chainId},
		Data:              types.EncodeRegularCredit("1", 100),
		CLId:              clId,
	}
	cltx := types.CLTransaction{
		CLId:              clId,
		ConstituentChains: []types.ChainId{chainId},
		Transactions:      []types.Transaction{tx},
	}
	if err := sys.SubmitTransaction(cltx); err != nil {
		logger.Error("submit regular credit failed", "err", err)
	}
}

// submitCAT builds a CLTransaction with one "credit <account> <amount>" leg
// per chain, all sharing catId.
func submitCAT(sys *harness.System, catId types.CATId, account string, amount int64, chains ...types.ChainId) {
	clId := types.CLTransactionId(idgen.Prefixed("cl"))
	legs := make([]types.Transaction, len(chains))
	for i, chainId := range chains {
		legs[i] = types.Transaction{
			Id:                types.TransactionId(idgen.Prefixed("tx")),
			ChainId:           chainId,
			ConstituentChains: chains,
			Data:              types.EncodeCATCredit(account, amount, catId),
			CLId:              clId,
		}
	}
	cltx := types.CLTransaction{CLId: clId, ConstituentChains: chains, Transactions: legs}
	if err := sys.SubmitTransaction(cltx); err != nil {
		logger.Error("submit CAT failed", "cat", catId, "err", err)
	}
}
