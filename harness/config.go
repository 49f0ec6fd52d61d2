// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
package harness

import (
	"github.com/hyperplane-sim/hyperplane/confirmationlayer"
	"github.com/hyperplane-sim/hyperplane/hyperig"
	"github.com/hyperplane-sim/hyperplane/hyperscheduler"
	"github.com/hyperplane-sim/hyperplane/types"
)

// ChainSpec describes one chain's Hyper Information Gateway before wiring.
type ChainSpec struct {
	Id        types.ChainId
	InitialKV map[string]int64
	HIG       hyperig.Config
}

// DefaultChainSpec builds a ChainSpec using hyperig.DefaultConfig.
func DefaultChainSpec(id types.ChainId, initialKV map[string]int64) ChainSpec {
	return ChainSpec{Id: id, InitialKV: initialKV, HIG: hyperig.DefaultConfig()}
}

// Config is the full configuration for one wired system: one Confirmation
// Layer, one Hyper Scheduler, and a Hyper Information Gateway per chain.
type Config struct {
	CL     confirmationlayer.Config
	HS     hyperscheduler.Config
	Chains []ChainSpec
}

// DefaultConfig builds a Config for the given chain ids, each preloaded with
// an empty kv and hyperig.DefaultConfig.
func DefaultConfig(chainIds ...types.ChainId) Config {
	chains := make([]ChainSpec, len(chainIds))
	for i, id := range chainIds {
		chains[i] = DefaultChainSpec(id, nil)
	}
	return Config{
		CL:     confirmationlayer.DefaultConfig(),
		HS:     hyperscheduler.DefaultConfig(),
		Chains: chains,
	}
}

// Validate checks the CL and HS sub-configurations and every chain's
// hyperig.Config, so NewWiredSystem surfaces any role's configuration error
// before it builds a node (none of the NewNode constructors re-validate).
func (c Config) Validate() error {
	if err := c.CL.Validate(); err != nil {
		return err
	}
	if err := c.HS.Validate(); err != nil {
		return err
	}
	for _, spec := range c.Chains {
		if err := spec.HIG.Validate(); err != nil {
			return err
		}
	}
	return nil
}
