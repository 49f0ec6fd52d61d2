// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
package types

import "github.com/pkg/errors"

// Transaction is the unit of execution on one chain. When
// ConstituentChains is the singleton {ChainId} the transaction is Regular;
// otherwise it is one leg of a CAT.
type Transaction struct {
	Id                TransactionId
	ChainId           ChainId
	ConstituentChains []ChainId
	Data              string
	CLId              CLTransactionId
}

// IsRegular reports whether this leg is a single-chain transaction.
func (t Transaction) IsRegular() bool {
	return len(t.ConstituentChains) == 1 && t.ConstituentChains[0] == t.ChainId
}

// Validate checks that chain_id is a member of constituent_chains and that
// constituent_chains is non-empty.
func (t Transaction) Validate() error {
	if len(t.ConstituentChains) == 0 {
		return errors.Wrap(ErrInvalidTransactionShape, "empty constituent_chains")
	}
	found := false
	for _, c := range t.ConstituentChains {
		if c == t.ChainId {
			found = true
			break
		}
	}
	if !found {
		return errors.Wrapf(ErrInvalidTransactionShape, "chain_id %s not in constituent_chains", t.ChainId)
	}
	return nil
}

// CLTransaction is the unit accepted by the confirmation layer: one
// CLTransactionId spanning a set of constituent chains, with exactly one
// leg Transaction per chain.
type CLTransaction struct {
	CLId              CLTransactionId
	ConstituentChains []ChainId
	Transactions      []Transaction
}

// Validate enforces the CLTransaction shape invariant: the transaction list
// has exactly one entry per element of ConstituentChains, each with the
// matching ChainId and the same CLId.
func (c CLTransaction) Validate() error {
	if len(c.ConstituentChains) == 0 {
		return errors.Wrap(ErrInvalidTransactionShape, "empty constituent_chains")
	}
	if len(c.Transactions) != len(c.ConstituentChains) {
		return errors.Wrapf(ErrInvalidTransactionShape,
			"expected %d legs, got %d", len(c.ConstituentChains), len(c.Transactions))
	}
	seen := make(map[ChainId]bool, len(c.ConstituentChains))
	for _, ch := range c.ConstituentChains {
		seen[ch] = true
	}
	legFor := make(map[ChainId]bool, len(c.Transactions))
	for _, tx := range c.Transactions {
		if tx.CLId != c.CLId {
			return errors.Wrapf(ErrInvalidTransactionShape,
				"leg for chain %s carries cl_id %s, expected %s", tx.ChainId, tx.CLId, c.CLId)
		}
		if !seen[tx.ChainId] {
			return errors.Wrapf(ErrInvalidTransactionShape,
				"leg chain_id %s not in constituent_chains", tx.ChainId)
		}
		if legFor[tx.ChainId] {
			return errors.Wrapf(ErrInvalidTransactionShape,
				"duplicate leg for chain %s", tx.ChainId)
		}
		legFor[tx.ChainId] = true
		if err := tx.Validate(); err != nil {
			return err
		}
	}
	for ch := range seen {
		if !legFor[ch] {
			return errors.Wrapf(ErrInvalidTransactionShape, "missing leg for chain %s", ch)
		}
	}
	return nil
}

// SubBlock is the per-chain projection of a CL block delivered to one
// chain's HIG: the ordered slice of the block's transaction legs whose own
// ChainId is chain_id. A CAT leg for another chain is not included, even
// though chain_id is among its constituent chains.
type SubBlock struct {
	BlockHeight  BlockHeight
	ChainId      ChainId
	Transactions []Transaction
}
