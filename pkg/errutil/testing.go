// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode fails t unless err is an oops error carrying code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	_, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, Code(err))
}

// AssertErrorContext fails t unless err carries key=value in its oops context.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oe, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	fields := oe.Context()
	require.Contains(t, fields, key)
	assert.Equal(t, value, fields[key])
}
