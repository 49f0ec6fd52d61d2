// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.

// Package idgen generates identifiers for the demo orchestration entry
// point. The core protocol never generates ids itself (every ChainId,
// TransactionId, CLTransactionId and CATId is supplied by the caller), so
// this package exists only for cmd/hyperplane and test harnesses that need
// to hand out fresh ids.
package idgen

import uuid "github.com/hashicorp/go-uuid"

// New returns a fresh random identifier string, panicking only if the
// platform's CSPRNG is unavailable (matching hashicorp/go-uuid's own
// failure mode, which the caller cannot meaningfully recover from).
func New() string {
	id, err := uuid.GenerateUUID()
	if err != nil {
		panic("idgen: " + err.Error())
	}
	return id
}

// Prefixed returns New() prefixed with a readable label, e.g. Prefixed("cat")
// -> "cat-3f9e...".
func Prefixed(label string) string {
	return label + "-" + New()
}
