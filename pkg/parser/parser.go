/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package parser

import (
	"github.com/nydusdev/sysinspect/pkg/containertable"
	"github.com/nydusdev/sysinspect/pkg/decoder"
	"github.com/nydusdev/sysinspect/pkg/hostinfo"
	"github.com/nydusdev/sysinspect/pkg/rawevent"
	"github.com/nydusdev/sysinspect/pkg/sysevent"
	"github.com/nydusdev/sysinspect/pkg/threadtable"
)

// DumpWriter is the subset of pkg/dumper.CycleWriter the parser needs for
// fatfile synthesis, kept narrow so tests can fake it (spec section 9
// design notes: prefer narrow capability interfaces over exposing a full
// manager).
type DumpWriter interface {
	WriteFrame(f *rawevent.Frame) error
}

// Parser is C6: it owns no state of its own beyond configuration -- all
// mutated state lives in the tables it's given, so one Parser can be
// reused across inspector instances if ever needed (though in practice
// each inspector owns exactly one, per spec section 5's per-instance
// isolation).
type Parser struct {
	Threads    threadtable.Mutator
	Containers containertable.Mutator
	Hosts      *hostinfo.Registry
	Decoders   *decoder.Registry

	// FatfileMode and Dumper together gate fatfile synthesis (spec section
	// 4.6, "fatfile mode"): when both are set, ParseAndMaybeSynthesize
	// writes a replacement frame for state-carrying events the filter gate
	// rejected, so state can still be reconstructed from the dump alone.
	FatfileMode bool
	Dumper      DumpWriter
}

// ParseContext bundles everything one handler invocation needs. Handlers
// never reach back into the Parser directly so they stay independently
// testable.
type ParseContext struct {
	Evt        *sysevent.Event
	Frame      *rawevent.Frame
	Threads    threadtable.Mutator
	Containers containertable.Mutator
	Hosts      *hostinfo.Registry
	Decoders   *decoder.Registry
}

// Parse decodes frame's type/direction, resolves (or synthesizes) the
// owning thread, runs the matching dispatch handler, and leaves the
// result in evt. evt is reused across calls by the caller (the inspector)
// exactly like sysevent.Event documents.
func (p *Parser) Parse(frame *rawevent.Frame, evt *sysevent.Event) error {
	evt.Reset()
	evt.Ts = frame.Ts
	evt.CPU = frame.CPU
	evt.RawType = frame.Type
	evt.Params = append(evt.Params[:0], paramValues(frame.Params)...)

	t, d := decodeRawType(frame.Type)
	evt.Type = t
	evt.Direction = d

	tid, _ := firstParamInt(frame.Params, rawevent.ParamPID)
	evt.Tid = tid

	rec, _, err := p.Threads.FindOrCreate(tid, frame.Ts)
	if err != nil {
		return err
	}
	evt.Thread = rec
	evt.Incomplete = rec.Incomplete

	ctx := &ParseContext{
		Evt:        evt,
		Frame:      frame,
		Threads:    p.Threads,
		Containers: p.Containers,
		Hosts:      p.Hosts,
		Decoders:   p.Decoders,
	}

	if h := dispatch[int(t)][int(d)]; h != nil {
		return h(ctx)
	}
	return nil
}

// ParseAndMaybeSynthesize runs Parse, then -- if fatfile mode is on, a
// dumper is attached, the live filter rejected the event (accepted==false)
// and the event type is
// state-carrying -- writes frame through verbatim so a replay of the dump
// alone can still reconstruct state (spec section 4.6, fatfile mode; the
// filter decision itself is owned by the inspector, passed in here as
// accepted).
func (p *Parser) ParseAndMaybeSynthesize(frame *rawevent.Frame, evt *sysevent.Event, accepted bool) error {
	if err := p.Parse(frame, evt); err != nil {
		return err
	}
	return p.Synthesize(frame, evt, accepted)
}

// Synthesize runs the fatfile-mode check alone, for callers (the
// inspector) that need to evaluate the live filter against the
// already-enriched evt before deciding accepted -- which Parse itself has
// no opinion on.
func (p *Parser) Synthesize(frame *rawevent.Frame, evt *sysevent.Event, accepted bool) error {
	if !accepted && p.FatfileMode && p.Dumper != nil && stateCarrying(evt.Type, evt.Direction) {
		return p.Dumper.WriteFrame(frame)
	}
	return nil
}

func paramValues(params []rawevent.Param) []any {
	out := make([]any, len(params))
	for i, pm := range params {
		out[i] = pm.Value
	}
	return out
}

func firstParamInt(params []rawevent.Param, want rawevent.ParamType) (int64, bool) {
	for _, p := range params {
		if p.Type != want {
			continue
		}
		switch v := p.Value.(type) {
		case int64:
			return v, true
		case int32:
			return int64(v), true
		case uint64:
			return int64(v), true
		}
	}
	return 0, false
}

func firstParamString(params []rawevent.Param, want rawevent.ParamType) (string, bool) {
	for _, p := range params {
		if p.Type == want {
			if s, ok := p.Value.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func secondParamInt(params []rawevent.Param, want rawevent.ParamType) (int64, bool) {
	seen := false
	for _, p := range params {
		if p.Type != want {
			continue
		}
		if !seen {
			seen = true
			continue
		}
		switch v := p.Value.(type) {
		case int64:
			return v, true
		case int32:
			return int64(v), true
		}
	}
	return 0, false
}

func firstParamFD(params []rawevent.Param) (int32, bool) {
	for _, p := range params {
		if p.Type == rawevent.ParamFD {
			if v, ok := p.Value.(int32); ok {
				return v, true
			}
		}
	}
	return 0, false
}

func firstParamTuple(params []rawevent.Param) (rawevent.Tuple, bool) {
	for _, p := range params {
		if p.Type == rawevent.ParamTuple {
			if v, ok := p.Value.(rawevent.Tuple); ok {
				return v, true
			}
		}
	}
	return rawevent.Tuple{}, false
}
