/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package dumper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydusdev/sysinspect/pkg/rawevent"
)

func sampleFrame() *rawevent.Frame {
	return &rawevent.Frame{
		Header: rawevent.Header{CPU: 0, Type: 3, Ts: 1},
		Params: []rawevent.Param{{Type: rawevent.ParamFD, Value: int32(4)}},
	}
}

func TestWriterRotatesBySizeAndUnlinksOldest(t *testing.T) {
	dir := t.TempDir()

	// Each frame encodes to header(20) + one param (5 + 4) = 29 bytes; a
	// 29-byte cap is reached by the first frame, so every later frame starts
	// a new file.
	w, err := New(dir, "out", Policy{MaxBytes: 29, MaxFiles: 2})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, w.WriteFrame(sampleFrame()))
	}
	require.NoError(t, w.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entries), 2, "only MaxFiles files should survive")

	_, err = os.Stat(filepath.Join(dir, "out0"))
	assert.True(t, os.IsNotExist(err), "out0 must have been unlinked as the oldest file")
}

func TestWriterNoRotationUnderCap(t *testing.T) {
	dir := t.TempDir()

	w, err := New(dir, "out", Policy{MaxBytes: 1 << 20})
	require.NoError(t, err)
	require.NoError(t, w.WriteFrame(sampleFrame()))
	require.NoError(t, w.WriteFrame(sampleFrame()))
	require.NoError(t, w.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriterCompressesRotatedFile(t *testing.T) {
	dir := t.TempDir()

	w, err := New(dir, "out", Policy{MaxBytes: 29, Compress: true})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		require.NoError(t, w.WriteFrame(sampleFrame()))
	}
	require.NoError(t, w.Close())

	_, err = os.Stat(filepath.Join(dir, "out0.gz"))
	assert.NoError(t, err, "rotated-away file must be gzip compressed")
}
