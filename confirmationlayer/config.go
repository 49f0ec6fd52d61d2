// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
package confirmationlayer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hyperplane-sim/hyperplane/types"
)

// Config holds the confirmation layer's tunables. It is passed to NewNode
// directly rather than loaded from a file; config-file loading belongs to
// the external driver.
type Config struct {
	BlockInterval     time.Duration
	ChannelBufferSize int
	// SubBlockCacheSize bounds the LRU front cache over replay history;
	// 0 disables the cache (every get_subblock falls through to the
	// authoritative, unbounded history).
	SubBlockCacheSize int
}

// DefaultConfig returns the values used absent an override.
func DefaultConfig() Config {
	return Config{
		BlockInterval:     100 * time.Millisecond,
		ChannelBufferSize: 100,
		SubBlockCacheSize: 256,
	}
}

// Validate enforces BlockInterval > 0 and ChannelBufferSize >= 1.
func (c Config) Validate() error {
	if c.BlockInterval <= 0 {
		return errors.Wrapf(types.ErrInvalidBlockInterval, "got %s", c.BlockInterval)
	}
	if c.ChannelBufferSize < 1 {
		return errors.Wrapf(types.ErrInvalidChannelBufferSize, "got %d", c.ChannelBufferSize)
	}
	return nil
}
