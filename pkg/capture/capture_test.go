/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package capture

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydusdev/sysinspect/pkg/rawevent"
)

type nopCloserBuf struct {
	*bytes.Buffer
}

func (nopCloserBuf) Close() error { return nil }

func encodedFrame(t *testing.T, ts int64) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, rawevent.Encode(&buf, &rawevent.Frame{
		Header: rawevent.Header{Ts: ts},
	}))
	return buf.Bytes()
}

func TestLiveSourceDeliversFramesInOrder(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodedFrame(t, 1))
	buf.Write(encodedFrame(t, 2))

	src := OpenLive(nopCloserBuf{&buf})
	defer src.Close()

	f1, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), f1.Ts)

	f2, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(2), f2.Ts)

	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestLiveSourceCloseInterruptsNext(t *testing.T) {
	r, w := io.Pipe()
	src := OpenLive(r)

	done := make(chan error, 1)
	go func() {
		_, err := src.Next()
		done <- err
	}()

	require.NoError(t, src.Close())
	w.Close()

	err := <-done
	assert.Error(t, err)
}

func TestFakeSourceExhaustsThenEOF(t *testing.T) {
	frames := []*rawevent.Frame{{Header: rawevent.Header{Ts: 1}}, {Header: rawevent.Header{Ts: 2}}}
	src := NewFakeSource(frames)

	f1, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), f1.Ts)

	_, _ = src.Next()
	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}
