/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydusdev/sysinspect/pkg/containertable"
	"github.com/nydusdev/sysinspect/pkg/decoder"
	"github.com/nydusdev/sysinspect/pkg/hostinfo"
	"github.com/nydusdev/sysinspect/pkg/rawevent"
	"github.com/nydusdev/sysinspect/pkg/sysevent"
	"github.com/nydusdev/sysinspect/pkg/threadtable"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	threads, err := threadtable.NewManager(64, nil)
	require.NoError(t, err)
	containers, err := containertable.NewManager(64, nil)
	require.NoError(t, err)
	return &Parser{
		Threads:    threads,
		Containers: containers,
		Hosts:      hostinfo.NewRegistry(),
		Decoders:   decoder.NewRegistry(),
	}
}

func frameWithParams(rawType uint16, ts int64, params ...rawevent.Param) *rawevent.Frame {
	return &rawevent.Frame{
		Header: rawevent.Header{Type: rawType, Ts: ts, NParams: uint16(len(params))},
		Params: params,
	}
}

func TestParseOpenExitInstallsFD(t *testing.T) {
	p := newTestParser(t)
	evt := &sysevent.Event{}

	frame := frameWithParams(
		EncodeRawType(sysevent.TypeOpen, sysevent.DirectionExit), 100,
		rawevent.Param{Type: rawevent.ParamPID, Value: int64(42)},
		rawevent.Param{Type: rawevent.ParamFD, Value: int32(3)},
		rawevent.Param{Type: rawevent.ParamPath, Value: "/tmp/a"},
	)

	require.NoError(t, p.Parse(frame, evt))
	assert.Equal(t, sysevent.TypeOpen, evt.Type)
	assert.Equal(t, sysevent.DirectionExit, evt.Direction)
	require.NotNil(t, evt.FD)

	rec := evt.Thread.(*threadtable.Record)
	assert.NotNil(t, rec.FDs.Get(3))
}

func TestParseCloneInsertsChildInheritingExe(t *testing.T) {
	p := newTestParser(t)

	enterFrame := frameWithParams(
		EncodeRawType(sysevent.TypeClone, sysevent.DirectionEnter), 10,
		rawevent.Param{Type: rawevent.ParamPID, Value: int64(1)},
	)
	evt := &sysevent.Event{}
	require.NoError(t, p.Parse(enterFrame, evt))

	parent := evt.Thread.(*threadtable.Record)
	parent.Exe = "/bin/sh"

	exitFrame := frameWithParams(
		EncodeRawType(sysevent.TypeClone, sysevent.DirectionExit), 11,
		rawevent.Param{Type: rawevent.ParamPID, Value: int64(1)},
		rawevent.Param{Type: rawevent.ParamPID, Value: int64(2)},
	)
	require.NoError(t, p.Parse(exitFrame, evt))

	child := p.Threads.Find(2, 12)
	require.NotNil(t, child)
	assert.Equal(t, "/bin/sh", child.Exe)
	assert.Equal(t, int64(1), child.PPid)
}

func TestParseCloseRemovesFD(t *testing.T) {
	p := newTestParser(t)
	evt := &sysevent.Event{}

	openFrame := frameWithParams(
		EncodeRawType(sysevent.TypeOpen, sysevent.DirectionExit), 1,
		rawevent.Param{Type: rawevent.ParamPID, Value: int64(9)},
		rawevent.Param{Type: rawevent.ParamFD, Value: int32(4)},
		rawevent.Param{Type: rawevent.ParamPath, Value: "/tmp/b"},
	)
	require.NoError(t, p.Parse(openFrame, evt))

	closeFrame := frameWithParams(
		EncodeRawType(sysevent.TypeClose, sysevent.DirectionExit), 2,
		rawevent.Param{Type: rawevent.ParamPID, Value: int64(9)},
		rawevent.Param{Type: rawevent.ParamFD, Value: int32(4)},
	)
	require.NoError(t, p.Parse(closeFrame, evt))

	rec := p.Threads.Find(9, 3)
	require.NotNil(t, rec)
	assert.Nil(t, rec.FDs.Get(4))
}

func TestUnknownRawTypeDispatchesNoHandlerWithoutError(t *testing.T) {
	p := newTestParser(t)
	evt := &sysevent.Event{}

	frame := frameWithParams(65000, 1, rawevent.Param{Type: rawevent.ParamPID, Value: int64(1)})
	require.NoError(t, p.Parse(frame, evt))
	assert.Equal(t, sysevent.TypeUnknown, evt.Type)
}
