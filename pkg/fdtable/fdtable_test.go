/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package fdtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCloseRoundTrip(t *testing.T) {
	tbl := New()
	assert.Nil(t, tbl.Get(5))

	tbl.Add(5, &Descriptor{Type: TypeFile, File: &FileInfo{Path: "/tmp/a"}})
	got := tbl.Get(5)
	require.NotNil(t, got)
	assert.Equal(t, TypeFile, got.Type)
	assert.Equal(t, "/tmp/a", got.File.Path)

	removed := tbl.Remove(5)
	require.NotNil(t, removed)
	assert.Nil(t, tbl.Get(5))
	assert.Equal(t, 0, tbl.Len())
}

func TestAddReplacesAndReturnsOld(t *testing.T) {
	tbl := New()
	tbl.Add(3, &Descriptor{Type: TypeFile, File: &FileInfo{Path: "/a"}})
	old := tbl.Add(3, &Descriptor{Type: TypeIPv4, Sock: &SockInfo{}})
	require.NotNil(t, old)
	assert.Equal(t, TypeFile, old.Type)
	assert.Equal(t, TypeIPv4, tbl.Get(3).Type)
}

func TestCloneIsIndependent(t *testing.T) {
	tbl := New()
	tbl.Add(1, &Descriptor{Type: TypeFile, File: &FileInfo{Path: "/a"}})

	clone := tbl.Clone()
	clone.Remove(1)

	assert.NotNil(t, tbl.Get(1), "original table must be unaffected by mutating the clone")
	assert.Nil(t, clone.Get(1))
}
