// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
package hyperscheduler

import (
	"github.com/pkg/errors"

	"github.com/hyperplane-sim/hyperplane/types"
)

// Config holds the Hyper Scheduler's tunables. CatLifetimeBlocks is the
// same constant every Hyper Information Gateway is configured with, so the
// scheduler's independent expiry clock agrees with each gateway's local
// one.
type Config struct {
	CatLifetimeBlocks uint64
}

// DefaultConfig matches hyperig.DefaultConfig's CatLifetimeBlocks.
func DefaultConfig() Config {
	return Config{CatLifetimeBlocks: 10}
}

// Validate enforces CatLifetimeBlocks > 0.
func (c Config) Validate() error {
	if c.CatLifetimeBlocks == 0 {
		return errors.Wrap(types.ErrInvalidCatLifetime, "must be > 0")
	}
	return nil
}
