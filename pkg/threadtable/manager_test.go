/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package threadtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydusdev/sysinspect/pkg/errdefs"
)

func TestFindOrCreateSynthesizesRecord(t *testing.T) {
	m, err := NewManager(4, nil)
	require.NoError(t, err)

	rec, created, err := m.FindOrCreate(100, 1000)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, rec.Incomplete)
	assert.Equal(t, int64(100), rec.Tid)

	again, created2, err := m.FindOrCreate(100, 1001)
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Same(t, rec, again)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	m, err := NewManager(2, nil)
	require.NoError(t, err)

	a := NewRecord(1, 10, 0)
	b := NewRecord(2, 20, 0)
	m.Add(a)
	m.Add(b)

	// Touch a so it's more recently used than b.
	m.Find(1, 30)

	c := NewRecord(3, 40, 0)
	evicted := m.Add(c)

	require.NotNil(t, evicted)
	assert.Equal(t, int64(2), evicted.Tid, "least recently used record must be evicted")
	assert.Nil(t, m.Find(2, 50))
	assert.NotNil(t, m.Find(1, 50))
	assert.NotNil(t, m.Find(3, 50))
}

func TestSweepInactiveRemovesStaleRecords(t *testing.T) {
	m, err := NewManager(8, nil)
	require.NoError(t, err)

	stale := NewRecord(1, 10, 0)
	fresh := NewRecord(2, 900, 0)
	m.Add(stale)
	m.Add(fresh)

	removed := m.SweepInactive(500)
	require.Len(t, removed, 1)
	assert.Equal(t, int64(1), removed[0].Tid)
	assert.Equal(t, 1, m.Len())
}

func TestReservePrivateSlotRejectsDuplicateName(t *testing.T) {
	slotMu.Lock()
	slotLocked = false
	slotNames = nil
	slotOffsets = map[string]int{}
	slotTotal = 0
	slotMu.Unlock()

	off, err := ReservePrivateSlot("seccomp_profile", 8)
	require.NoError(t, err)
	assert.Equal(t, 0, off)

	_, err = ReservePrivateSlot("seccomp_profile", 8)
	assert.ErrorIs(t, err, errdefs.ErrAlreadyExists)
}

func TestReservePrivateSlotLocksAfterManagerCreated(t *testing.T) {
	slotMu.Lock()
	slotLocked = false
	slotNames = nil
	slotOffsets = map[string]int{}
	slotTotal = 0
	slotMu.Unlock()

	m, err := NewManager(1, nil)
	require.NoError(t, err)
	_ = m

	_, err = ReservePrivateSlot("too_late", 4)
	assert.Error(t, err)
}
