/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package inspector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydusdev/sysinspect/pkg/store"
	"github.com/nydusdev/sysinspect/pkg/threadtable"
)

func newTestDatabase(t *testing.T) *store.Database {
	t.Helper()
	db, err := store.NewDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSaveAndRestoreCheckpoint(t *testing.T) {
	src := newTestInspector(t, true, nil)
	require.NoError(t, src.SetFilter("evt.type = open"))
	src.SetMaxEvtOutputLen(128)
	src.SetBufferFormat(BufferFormatHex)

	src.threads.Add(threadtable.NewRecord(42, 100, threadtable.PrivateSize()))

	db := newTestDatabase(t)
	require.NoError(t, src.SaveCheckpoint(db))

	dst := newTestInspector(t, true, nil)
	require.NoError(t, dst.RestoreCheckpoint(db))

	assert.Equal(t, "evt.type = open", dst.GetFilter())
	assert.Equal(t, 128, dst.maxEvtOutputLen)
	assert.Equal(t, BufferFormatHex, dst.GetBufferFormat())
	assert.Equal(t, 1, dst.GetThreadTableSize())
	assert.NotNil(t, dst.threads.Find(42, 100))
}

func TestRestoreCheckpointNoneSaved(t *testing.T) {
	db := newTestDatabase(t)
	ins := newTestInspector(t, true, nil)
	err := ins.RestoreCheckpoint(db)
	assert.Error(t, err)
}
