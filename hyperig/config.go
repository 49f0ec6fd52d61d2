// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
package hyperig

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hyperplane-sim/hyperplane/types"
)

// Config holds one Hyper Information Gateway's tunables. CatLifetimeBlocks
// must match the scheduler's so both expire a CAT on the same block.
// MessageDelay is a per-chain artificial outbound delay for simulation
// studies; AllowCatPendingDependencies decides whether a CAT leg touching
// an already-locked key may queue behind the holder instead of failing.
type Config struct {
	CatLifetimeBlocks           uint64
	AllowCatPendingDependencies bool
	MessageDelay                time.Duration
}

// DefaultConfig returns the values used absent an override.
func DefaultConfig() Config {
	return Config{
		CatLifetimeBlocks:           10,
		AllowCatPendingDependencies: false,
		MessageDelay:                0,
	}
}

// Validate enforces CatLifetimeBlocks > 0.
func (c Config) Validate() error {
	if c.CatLifetimeBlocks == 0 {
		return errors.Wrap(types.ErrInvalidCatLifetime, "must be > 0")
	}
	return nil
}
