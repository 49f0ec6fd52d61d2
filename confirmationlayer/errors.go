// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
package confirmationlayer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hyperplane-sim/hyperplane/types"
)

func errorsWrapChainAlreadyRegistered(chainId types.ChainId) error {
	return errors.Wrapf(types.ErrChainAlreadyRegistered, "chain %s", chainId)
}

func errorsWrapUnknownChain(chainId types.ChainId) error {
	return errors.Wrapf(types.ErrUnknownChain, "chain %s", chainId)
}

func errorsWrapUnknownHeight(height BlockHeight) error {
	return errors.Wrapf(types.ErrUnknownHeight, "height %d", height)
}

func errorsWrapInvalidBlockInterval(d time.Duration) error {
	return errors.Wrapf(types.ErrInvalidBlockInterval, "got %s", d)
}
