// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
//
// Package harness wires one Confirmation Layer, one Hyper Scheduler and a
// Hyper Information Gateway per chain into a runnable system. It exists so
// integration tests (and cmd/hyperplane's demo driver) build the channel
// plumbing once instead of repeating it at every call site.
package harness

import (
	"github.com/hyperplane-sim/hyperplane/confirmationlayer"
	"github.com/hyperplane-sim/hyperplane/hyperig"
	"github.com/hyperplane-sim/hyperplane/hyperscheduler"
	"github.com/hyperplane-sim/hyperplane/internal/comm"
	"github.com/hyperplane-sim/hyperplane/types"
)

// System is one fully wired CL + HS + {HIG} topology.
type System struct {
	CL   *confirmationlayer.Node
	HS   *hyperscheduler.Node
	HIGs map[types.ChainId]*hyperig.Node
}

// NewWiredSystem builds and wires a System per cfg but does not start it;
// call System.Start when ready to run.
func NewWiredSystem(cfg Config) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cl := confirmationlayer.NewNode(cfg.CL)

	heightSend, heightRecv := comm.New[types.BlockHeight](cfg.CL.ChannelBufferSize)
	cl.RegisterHeightListener(heightSend)

	hs := hyperscheduler.NewNode(cfg.HS, cl.StatusUpdateInbound(), heightRecv)

	higs := make(map[types.ChainId]*hyperig.Node, len(cfg.Chains))
	for _, spec := range cfg.Chains {
		subSend, subRecv := comm.New[types.SubBlock](cfg.CL.ChannelBufferSize)
		propSend, propRecv := comm.New[types.CATStatusProposal](cfg.CL.ChannelBufferSize)

		hig := hyperig.NewNode(spec.Id, spec.HIG, subRecv, propSend, spec.InitialKV)

		if err := cl.RegisterChain(spec.Id, subSend); err != nil {
			return nil, err
		}
		if err := hs.RegisterChain(spec.Id, propRecv); err != nil {
			return nil, err
		}

		higs[spec.Id] = hig
	}

	return &System{CL: cl, HS: hs, HIGs: higs}, nil
}

// Start launches every role's background loop.
func (s *System) Start() {
	s.CL.Start()
	s.HS.Start()
	for _, h := range s.HIGs {
		h.Start()
	}
}

// Shutdown stops every role, HIGs first so no in-flight sub-block is lost
// mid-processing before CL itself stops producing.
func (s *System) Shutdown() {
	for _, h := range s.HIGs {
		h.Shutdown()
	}
	s.HS.Shutdown()
	s.CL.Shutdown()
}

// SubmitTransaction is a thin convenience wrapper over CL.SubmitTransaction.
func (s *System) SubmitTransaction(cltx types.CLTransaction) error {
	return s.CL.SubmitTransaction(cltx)
}

// HIG returns the Hyper Information Gateway for chainId, if wired.
func (s *System) HIG(chainId types.ChainId) (*hyperig.Node, bool) {
	h, ok := s.HIGs[chainId]
	return h, ok
}
