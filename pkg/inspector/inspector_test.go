/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package inspector

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydusdev/sysinspect/pkg/capture"
	"github.com/nydusdev/sysinspect/pkg/parser"
	"github.com/nydusdev/sysinspect/pkg/rawevent"
	"github.com/nydusdev/sysinspect/pkg/sysevent"
	"github.com/nydusdev/sysinspect/pkg/threadtable"
)

func frame(rawType uint16, ts int64, params ...rawevent.Param) *rawevent.Frame {
	return &rawevent.Frame{
		Header: rawevent.Header{Type: rawType, Ts: ts, NParams: uint16(len(params))},
		Params: params,
	}
}

// newTestInspector builds an Inspector wired to a FakeSource, bypassing
// OpenLive's live host-interface collection (which has no fake to attach
// to) while still exercising buildTables and the rest of Next()'s plumbing
// exactly as OpenLive/OpenFile leave it.
func newTestInspector(t *testing.T, live bool, frames []*rawevent.Frame, opts ...Option) *Inspector {
	t.Helper()
	i, err := New(opts...)
	require.NoError(t, err)
	i.live = live
	i.buildTables()
	i.source = capture.NewFakeSource(frames)
	i.opened = true
	i.state = StateRunning
	return i
}

func pidParam(pid int64) rawevent.Param {
	return rawevent.Param{Type: rawevent.ParamPID, Value: pid}
}

func TestNextForkExecExit(t *testing.T) {
	frames := []*rawevent.Frame{
		frame(parser.EncodeRawType(sysevent.TypeClone, sysevent.DirectionEnter), 1, pidParam(1)),
		frame(parser.EncodeRawType(sysevent.TypeClone, sysevent.DirectionExit), 2, pidParam(1), pidParam(2)),
		frame(parser.EncodeRawType(sysevent.TypeExecve, sysevent.DirectionEnter), 3, pidParam(2)),
		frame(parser.EncodeRawType(sysevent.TypeExecve, sysevent.DirectionExit), 4, pidParam(2),
			rawevent.Param{Type: rawevent.ParamPath, Value: "/bin/true"}),
		frame(parser.EncodeRawType(sysevent.TypeExit, sysevent.DirectionEnter), 5, pidParam(2)),
	}
	ins := newTestInspector(t, true, frames)

	evt, err := ins.Next()
	require.NoError(t, err)
	assert.Equal(t, sysevent.TypeClone, evt.Type)
	assert.Equal(t, sysevent.DirectionEnter, evt.Direction)

	evt, err = ins.Next()
	require.NoError(t, err)
	assert.Equal(t, sysevent.DirectionExit, evt.Direction)
	// evt.Thread is the calling (parent) thread; the child is in the table.
	child := ins.GetThread(2)
	require.NotNil(t, child)
	assert.Equal(t, int64(2), child.Pid)

	evt, err = ins.Next()
	require.NoError(t, err)
	assert.Equal(t, sysevent.TypeExecve, evt.Type)

	evt, err = ins.Next()
	require.NoError(t, err)
	assert.Equal(t, "/bin/true", evt.Thread.(*threadtable.Record).Exe)

	// exit is queued for deferred removal, not applied yet.
	evt, err = ins.Next()
	require.NoError(t, err)
	assert.Equal(t, sysevent.TypeExit, evt.Type)
	assert.NotNil(t, ins.GetThread(2))

	// next call drains the deferred removal before pulling a new frame.
	_, err = ins.Next()
	assert.Equal(t, io.EOF, err)
	assert.Nil(t, ins.GetThread(2))

	assert.Equal(t, int64(5), ins.GetNumEvents())
}

func TestNextOpenWriteClose(t *testing.T) {
	frames := []*rawevent.Frame{
		frame(parser.EncodeRawType(sysevent.TypeOpen, sysevent.DirectionEnter), 1, pidParam(10)),
		frame(parser.EncodeRawType(sysevent.TypeOpen, sysevent.DirectionExit), 2, pidParam(10),
			rawevent.Param{Type: rawevent.ParamFD, Value: int32(3)},
			rawevent.Param{Type: rawevent.ParamPath, Value: "/tmp/a"}),
		frame(parser.EncodeRawType(sysevent.TypeWrite, sysevent.DirectionEnter), 3, pidParam(10),
			rawevent.Param{Type: rawevent.ParamFD, Value: int32(3)}),
		frame(parser.EncodeRawType(sysevent.TypeWrite, sysevent.DirectionExit), 4, pidParam(10),
			rawevent.Param{Type: rawevent.ParamFD, Value: int32(3)}),
		frame(parser.EncodeRawType(sysevent.TypeClose, sysevent.DirectionEnter), 5, pidParam(10),
			rawevent.Param{Type: rawevent.ParamFD, Value: int32(3)}),
		frame(parser.EncodeRawType(sysevent.TypeClose, sysevent.DirectionExit), 6, pidParam(10),
			rawevent.Param{Type: rawevent.ParamFD, Value: int32(3)}),
	}
	ins := newTestInspector(t, true, frames)

	for k := 0; k < len(frames); k++ {
		evt, err := ins.Next()
		require.NoError(t, err)
		require.NotNil(t, evt)
	}
	assert.Equal(t, int64(len(frames)), ins.GetNumEvents())
}

func TestNextConnect(t *testing.T) {
	frames := []*rawevent.Frame{
		frame(parser.EncodeRawType(sysevent.TypeConnect, sysevent.DirectionEnter), 1, pidParam(7)),
		frame(parser.EncodeRawType(sysevent.TypeConnect, sysevent.DirectionExit), 2, pidParam(7),
			rawevent.Param{Type: rawevent.ParamTuple, Value: rawevent.Tuple{
				SrcPort: 4000, DstPort: 80, Proto: 6,
			}}),
	}
	ins := newTestInspector(t, true, frames)

	_, err := ins.Next()
	require.NoError(t, err)
	evt, err := ins.Next()
	require.NoError(t, err)
	assert.Equal(t, sysevent.TypeConnect, evt.Type)
	assert.Equal(t, sysevent.DirectionExit, evt.Direction)
}

func TestNextFilterRejectsEvents(t *testing.T) {
	frames := []*rawevent.Frame{
		frame(parser.EncodeRawType(sysevent.TypeOpen, sysevent.DirectionEnter), 1, pidParam(1)),
		frame(parser.EncodeRawType(sysevent.TypeOpen, sysevent.DirectionExit), 2, pidParam(1),
			rawevent.Param{Type: rawevent.ParamFD, Value: int32(3)},
			rawevent.Param{Type: rawevent.ParamPath, Value: "/tmp/a"}),
		frame(parser.EncodeRawType(sysevent.TypeExit, sysevent.DirectionEnter), 3, pidParam(1)),
	}
	ins := newTestInspector(t, true, frames)
	require.NoError(t, ins.SetFilter("evt.type = exit"))

	evt, err := ins.Next()
	require.NoError(t, err)
	assert.Equal(t, sysevent.TypeExit, evt.Type)
	assert.Equal(t, int64(1), ins.GetNumEvents())
}

func TestNextLiveCloseInterruptsNext(t *testing.T) {
	frames := []*rawevent.Frame{
		frame(parser.EncodeRawType(sysevent.TypeOpen, sysevent.DirectionEnter), 1, pidParam(1)),
	}
	ins := newTestInspector(t, true, frames)

	_, err := ins.Next()
	require.NoError(t, err)

	require.NoError(t, ins.Close())

	_, err = ins.Next()
	assert.Error(t, err)
}

func TestSetFilterEmptyClears(t *testing.T) {
	ins := newTestInspector(t, true, nil)
	require.NoError(t, ins.SetFilter("evt.type = open"))
	assert.Equal(t, "evt.type = open", ins.GetFilter())
	require.NoError(t, ins.SetFilter(""))
	assert.Equal(t, "", ins.GetFilter())
}

func TestSetSnaplenRejectedOnFileMode(t *testing.T) {
	ins := newTestInspector(t, false, nil)
	err := ins.SetSnaplen(512)
	assert.Error(t, err)
}

func TestSetImportUsersLockedAfterOpen(t *testing.T) {
	ins := newTestInspector(t, true, nil)
	err := ins.SetImportUsers(true)
	assert.Error(t, err)
}

func TestGetReadProgressOnlyForFileSource(t *testing.T) {
	ins := newTestInspector(t, true, nil)
	_, err := ins.GetReadProgress()
	assert.Error(t, err)
}

func TestPauseResume(t *testing.T) {
	frames := []*rawevent.Frame{
		frame(parser.EncodeRawType(sysevent.TypeOpen, sysevent.DirectionEnter), 1, pidParam(1)),
	}
	ins := newTestInspector(t, true, frames)

	require.NoError(t, ins.Pause())

	_, err := ins.Next()
	assert.Error(t, err, "Next must refuse to advance while paused")

	require.NoError(t, ins.Resume())

	_, err = ins.Next()
	assert.NoError(t, err, "Next should resume normally after Resume")
}

func TestPauseRequiresRunning(t *testing.T) {
	ins := newTestInspector(t, true, nil)
	require.NoError(t, ins.Pause())

	err := ins.Pause()
	assert.Error(t, err, "pausing an already-paused inspector must fail")
}

func TestResumeRequiresPaused(t *testing.T) {
	ins := newTestInspector(t, true, nil)

	err := ins.Resume()
	assert.Error(t, err, "resuming a Running inspector must fail")
}
