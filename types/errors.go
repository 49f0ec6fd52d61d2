// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
package types

import "errors"

// Boundary errors reported by the roles' public operations. Each is a
// distinct sentinel so callers can compare with errors.Is even after a role
// wraps it with call-site context via github.com/pkg/errors.
var (
	ErrUnknownChain             = errors.New("unknown chain")
	ErrChainAlreadyRegistered   = errors.New("chain already registered")
	ErrUnknownHeight            = errors.New("unknown block height")
	ErrInvalidBlockInterval     = errors.New("block interval must be > 0")
	ErrInvalidTransactionShape  = errors.New("invalid transaction shape")
	ErrDuplicateProposal        = errors.New("duplicate CAT status proposal")
	ErrChainNotInCAT            = errors.New("chain is not a constituent of this CAT")
	ErrUnknownCAT               = errors.New("unknown CAT id")
	ErrUnknownTransaction       = errors.New("unknown transaction id")
	ErrInvalidChannelBufferSize = errors.New("channel buffer size must be >= 1")
	ErrInvalidCatLifetime       = errors.New("cat lifetime blocks must be > 0")
)
