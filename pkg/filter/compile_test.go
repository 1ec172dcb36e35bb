/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydusdev/sysinspect/pkg/errdefs"
	"github.com/nydusdev/sysinspect/pkg/sysevent"
)

func TestCompileAndEvalSimpleComparison(t *testing.T) {
	pred, err := Compile("evt.type = open")
	require.NoError(t, err)

	assert.True(t, pred.Eval(&sysevent.Event{Type: sysevent.TypeOpen}))
	assert.False(t, pred.Eval(&sysevent.Event{Type: sysevent.TypeClose}))
	assert.True(t, pred.ThreadOnly())
}

func TestCompileAndOr(t *testing.T) {
	pred, err := Compile("evt.type = open or evt.type = close")
	require.NoError(t, err)

	assert.True(t, pred.Eval(&sysevent.Event{Type: sysevent.TypeOpen}))
	assert.True(t, pred.Eval(&sysevent.Event{Type: sysevent.TypeClose}))
	assert.False(t, pred.Eval(&sysevent.Event{Type: sysevent.TypeRead}))
}

func TestCompileNotAndParens(t *testing.T) {
	pred, err := Compile("not (evt.type = open)")
	require.NoError(t, err)

	assert.False(t, pred.Eval(&sysevent.Event{Type: sysevent.TypeOpen}))
	assert.True(t, pred.Eval(&sysevent.Event{Type: sysevent.TypeClose}))
}

func TestCompileErrorOnMissingValue(t *testing.T) {
	_, err := Compile("evt.type = ")
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrFilterCompile)

	ce, ok := errdefs.AsCompileError(err)
	require.True(t, ok)
	assert.Equal(t, len("evt.type = "), ce.Pos)
}

func TestCompileErrorOnUnknownField(t *testing.T) {
	_, err := Compile("bogus = open")
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrFilterCompile)
}

func TestCompileErrorOnUnbalancedParen(t *testing.T) {
	_, err := Compile("(evt.type = open")
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrFilterCompile)
}
