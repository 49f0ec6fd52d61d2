// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
package hyperscheduler

import (
	"github.com/pkg/errors"

	"github.com/hyperplane-sim/hyperplane/types"
)

func errorsWrapChainAlreadyRegistered(chainId types.ChainId) error {
	return errors.Wrapf(types.ErrChainAlreadyRegistered, "chain %s", chainId)
}

func errorsWrapChainNotInCAT(catId types.CATId, chainId types.ChainId) error {
	return errors.Wrapf(types.ErrChainNotInCAT, "cat %s, chain %s", catId, chainId)
}

func errorsWrapDuplicateProposal(catId types.CATId, chainId types.ChainId) error {
	return errors.Wrapf(types.ErrDuplicateProposal, "cat %s, chain %s", catId, chainId)
}

func errorsWrapUnknownCAT(catId types.CATId) error {
	return errors.Wrapf(types.ErrUnknownCAT, "cat %s", catId)
}

func errorsWrapUnknownChain(chainId types.ChainId) error {
	return errors.Wrapf(types.ErrUnknownChain, "chain %s", chainId)
}
