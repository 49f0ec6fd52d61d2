// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
package hyperig

import (
	"github.com/pkg/errors"

	"github.com/hyperplane-sim/hyperplane/types"
)

func errorsWrapUnknownTransaction(id types.TransactionId) error {
	return errors.Wrapf(types.ErrUnknownTransaction, "tx %s", id)
}
