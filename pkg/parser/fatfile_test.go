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

	"github.com/nydusdev/sysinspect/pkg/rawevent"
	"github.com/nydusdev/sysinspect/pkg/sysevent"
)

type fakeDumper struct {
	frames []*rawevent.Frame
}

func (f *fakeDumper) WriteFrame(frame *rawevent.Frame) error {
	f.frames = append(f.frames, frame)
	return nil
}

func TestFatfileSynthesizesOnRejectedStateCarryingEvent(t *testing.T) {
	p := newTestParser(t)
	fake := &fakeDumper{}
	p.FatfileMode = true
	p.Dumper = fake

	evt := &sysevent.Event{}
	frame := frameWithParams(
		EncodeRawType(sysevent.TypeOpen, sysevent.DirectionExit), 1,
		rawevent.Param{Type: rawevent.ParamPID, Value: int64(1)},
		rawevent.Param{Type: rawevent.ParamFD, Value: int32(3)},
		rawevent.Param{Type: rawevent.ParamPath, Value: "/tmp/a"},
	)

	require.NoError(t, p.ParseAndMaybeSynthesize(frame, evt, false))
	assert.Len(t, fake.frames, 1, "rejected state-carrying event must be synthesized into the dump")
}

func TestFatfileSkipsNonStateCarryingEvent(t *testing.T) {
	p := newTestParser(t)
	fake := &fakeDumper{}
	p.FatfileMode = true
	p.Dumper = fake

	evt := &sysevent.Event{}
	frame := frameWithParams(
		EncodeRawType(sysevent.TypeRead, sysevent.DirectionExit), 1,
		rawevent.Param{Type: rawevent.ParamPID, Value: int64(1)},
		rawevent.Param{Type: rawevent.ParamFD, Value: int32(3)},
	)

	require.NoError(t, p.ParseAndMaybeSynthesize(frame, evt, false))
	assert.Empty(t, fake.frames)
}

func TestFatfileDoesNothingWithoutDumper(t *testing.T) {
	p := newTestParser(t)
	p.FatfileMode = true

	evt := &sysevent.Event{}
	frame := frameWithParams(
		EncodeRawType(sysevent.TypeOpen, sysevent.DirectionExit), 1,
		rawevent.Param{Type: rawevent.ParamPID, Value: int64(1)},
		rawevent.Param{Type: rawevent.ParamFD, Value: int32(3)},
		rawevent.Param{Type: rawevent.ParamPath, Value: "/tmp/a"},
	)

	require.NoError(t, p.ParseAndMaybeSynthesize(frame, evt, false))
}
