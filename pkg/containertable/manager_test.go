/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package containertable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrCreateCachesResolution(t *testing.T) {
	calls := 0
	m, err := NewManager(4, func(cgroupPath string) (*Record, error) {
		calls++
		return &Record{ID: "abc123", Name: "web", CgroupPath: cgroupPath}, nil
	})
	require.NoError(t, err)

	rec, created, err := m.FindOrCreate("abc123", "/docker/abc123", 10)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "web", rec.Name)

	again, created2, err := m.FindOrCreate("abc123", "/docker/abc123", 20)
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, 1, calls, "resolve must not be called twice for the same container id")
	assert.Same(t, rec, again)
}

func TestEvictionUnderCapacity(t *testing.T) {
	m, err := NewManager(1, nil)
	require.NoError(t, err)

	m.Add(&Record{ID: "a", LastAccessTs: 1})
	evicted := m.Add(&Record{ID: "b", LastAccessTs: 2})

	require.NotNil(t, evicted)
	assert.Equal(t, "a", evicted.ID)
	assert.Equal(t, 1, m.Len())
}

func TestSweepInactive(t *testing.T) {
	m, err := NewManager(8, nil)
	require.NoError(t, err)

	m.Add(&Record{ID: "stale", LastAccessTs: 1})
	m.Add(&Record{ID: "fresh", LastAccessTs: 1000})

	removed := m.SweepInactive(500)
	require.Len(t, removed, 1)
	assert.Equal(t, "stale", removed[0].ID)
}
