// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.

// Package types holds the wire-level value types shared by the
// confirmation layer, the hyper information gateways and the hyper
// scheduler: identifiers, transactions, sub-blocks, CAT proposals/status
// updates, and the boundary error taxonomy. Nothing in this package talks
// to a channel or holds a lock; it is pure data plus its own validation.
package types

// ChainId identifies one chain. Opaque, compared bytewise; test harnesses
// conventionally use "chain-1", "chain-2", ... but nothing here depends on
// that shape.
type ChainId string

// TransactionId identifies one leg of a (possibly cross-chain) transaction.
type TransactionId string

// CLTransactionId uniquely identifies a CLTransaction process-wide.
type CLTransactionId string

// CATId identifies a cross-chain atomic transaction. The submitter chooses
// it and carries it in each leg's Data (CAT_ID:<id>); it is not derived
// from, or checked against, the CLTransactionId of the CLTransaction that
// carries the CAT. The scheduler reuses it as the CLTransactionId of the
// CAT's status-update CLTransaction.
type CATId string

// BlockHeight is the confirmation layer's monotonic block counter, and the
// clock CAT lifetime is measured against.
type BlockHeight uint64

func (c ChainId) String() string         { return string(c) }
func (t TransactionId) String() string   { return string(t) }
func (c CLTransactionId) String() string { return string(c) }
func (c CATId) String() string           { return string(c) }
