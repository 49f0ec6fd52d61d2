// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsUniqueAndNonEmpty(t *testing.T) {
	a, b := New(), New()
	assert.NotEmpty(t, a)
	assert.NotEmpty(t, b)
	assert.NotEqual(t, a, b)
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("cat")
	assert.True(t, strings.HasPrefix(id, "cat-"))
	assert.Greater(t, len(id), len("cat-"))
}
