/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package parser

import (
	"github.com/nydusdev/sysinspect/pkg/decoder"
	"github.com/nydusdev/sysinspect/pkg/fdtable"
	"github.com/nydusdev/sysinspect/pkg/rawevent"
	"github.com/nydusdev/sysinspect/pkg/threadtable"
)

// cloneArgs is stashed by handleCloneEnter on the parent's pendingArgs
// slot and read back by handleCloneExit once the child tid is known
// (spec section 4.6a: enter stashes, exit commits).
type cloneArgs struct {
	flags threadtable.Flags
}

func handleCloneEnter(ctx *ParseContext) error {
	rec := ctx.Evt.Thread.(*threadtable.Record)
	flags, _ := firstParamInt(ctx.Frame.Params, rawevent.ParamUint64)
	rec.SetPendingArgs(cloneArgs{flags: threadtable.Flags(flags)})
	return nil
}

func handleCloneExit(ctx *ParseContext) error {
	parent := ctx.Evt.Thread.(*threadtable.Record)
	pending := parent.TakePendingArgs()
	flags := threadtable.Flags(0)
	if ca, ok := pending.(cloneArgs); ok {
		flags = ca.flags
	}

	// The first ParamPID is the caller's own tid (same as parent.Tid); the
	// child tid clone() actually returns is the second one.
	childTid, ok := secondParamInt(ctx.Frame.Params, rawevent.ParamPID)
	if !ok || childTid == 0 || childTid == parent.Tid {
		// Nothing to do in the parent's own clone-exit slot beyond the
		// clone() return value, which isn't state we track.
		return nil
	}

	child := parent.CloneChild(childTid, ctx.Evt.Ts, flags)
	ctx.Threads.Add(child)
	return nil
}

func handleExecveEnter(ctx *ParseContext) error {
	return nil
}

func handleExecveExit(ctx *ParseContext) error {
	rec := ctx.Evt.Thread.(*threadtable.Record)
	rec.Lock()
	defer rec.Unlock()

	if path, ok := firstParamString(ctx.Frame.Params, rawevent.ParamPath); ok {
		rec.Exe = path
	}
	if cwd, ok := firstParamString(ctx.Frame.Params, rawevent.ParamString); ok {
		rec.Cwd = cwd
	}

	// execve closes every cloexec fd in the calling thread.
	var toClose []int32
	rec.FDs.Iter(func(d *fdtable.Descriptor) {
		if d.Cloexec {
			toClose = append(toClose, d.Num)
		}
	})
	for _, fd := range toClose {
		rec.FDs.Remove(fd)
	}
	return nil
}

func handleOpenExit(ctx *ParseContext) error {
	rec := ctx.Evt.Thread.(*threadtable.Record)
	fd, ok := firstParamFD(ctx.Frame.Params)
	if !ok || fd < 0 {
		// Negative fd is open/openat/creat's failure return; no state change.
		return nil
	}
	path, _ := firstParamString(ctx.Frame.Params, rawevent.ParamPath)

	desc := &fdtable.Descriptor{Type: fdtable.TypeFile, File: &fdtable.FileInfo{Path: path}}
	rec.FDs.Add(fd, desc)
	ctx.Evt.FD = desc

	ctx.Decoders.Dispatch(decoder.CategoryOpen, ctx.Evt)
	return nil
}

func handleSocketExit(ctx *ParseContext) error {
	rec := ctx.Evt.Thread.(*threadtable.Record)
	fd, ok := firstParamFD(ctx.Frame.Params)
	if !ok {
		return nil
	}
	desc := &fdtable.Descriptor{Type: fdtable.TypeIPv4, Sock: &fdtable.SockInfo{}}
	rec.FDs.Add(fd, desc)
	ctx.Evt.FD = desc
	return nil
}

func handleBindExit(ctx *ParseContext) error {
	err := applyTuple(ctx, func(s *fdtable.SockInfo, t rawevent.Tuple) {
		s.SrcIP, s.SrcPort, s.Proto = t.SrcIP, t.SrcPort, t.Proto
	})
	if err == nil && ctx.Evt.FD != nil {
		ctx.Decoders.Dispatch(decoder.CategoryTupleChange, ctx.Evt)
	}
	return err
}

func handleConnectExit(ctx *ParseContext) error {
	err := applyTuple(ctx, func(s *fdtable.SockInfo, t rawevent.Tuple) {
		s.SrcIP, s.DstIP = t.SrcIP, t.DstIP
		s.SrcPort, s.DstPort, s.Proto = t.SrcPort, t.DstPort, t.Proto
	})
	if err == nil && ctx.Evt.FD != nil {
		ctx.Decoders.Dispatch(decoder.CategoryConnect, ctx.Evt)
	}
	return err
}

func handleAcceptExit(ctx *ParseContext) error {
	rec := ctx.Evt.Thread.(*threadtable.Record)
	fd, ok := firstParamFD(ctx.Frame.Params)
	if !ok {
		return nil
	}
	desc := &fdtable.Descriptor{Type: fdtable.TypeIPv4, Sock: &fdtable.SockInfo{}}
	if t, ok := firstParamTuple(ctx.Frame.Params); ok {
		// accept's tuple is from the server's perspective: swap so SrcIP is
		// always "this side" like connect/bind.
		desc.Sock.SrcIP, desc.Sock.DstIP = t.DstIP, t.SrcIP
		desc.Sock.SrcPort, desc.Sock.DstPort = t.DstPort, t.SrcPort
		desc.Sock.Proto = t.Proto
	}
	rec.FDs.Add(fd, desc)
	ctx.Evt.FD = desc
	ctx.Decoders.Dispatch(decoder.CategoryTupleChange, ctx.Evt)
	return nil
}

func applyTuple(ctx *ParseContext, apply func(*fdtable.SockInfo, rawevent.Tuple)) error {
	rec := ctx.Evt.Thread.(*threadtable.Record)
	fd, ok := firstParamFD(ctx.Frame.Params)
	if !ok {
		return nil
	}
	desc := rec.FDs.Get(fd)
	if desc == nil {
		desc = &fdtable.Descriptor{Type: fdtable.TypeIPv4, Sock: &fdtable.SockInfo{}}
		rec.FDs.Add(fd, desc)
	}
	if desc.Sock == nil {
		desc.Sock = &fdtable.SockInfo{}
	}
	if t, ok := firstParamTuple(ctx.Frame.Params); ok {
		apply(desc.Sock, t)
	}
	ctx.Evt.FD = desc
	return nil
}

func handleReadWriteExit(write bool) handlerFunc {
	return func(ctx *ParseContext) error {
		rec := ctx.Evt.Thread.(*threadtable.Record)
		fd, ok := firstParamFD(ctx.Frame.Params)
		if !ok {
			return nil
		}
		ctx.Evt.FD = rec.FDs.Get(fd)

		cat := decoder.CategoryRead
		if write {
			cat = decoder.CategoryWrite
		}
		ctx.Decoders.Dispatch(cat, ctx.Evt)
		return nil
	}
}

func handleCloseExit(ctx *ParseContext) error {
	rec := ctx.Evt.Thread.(*threadtable.Record)
	fd, ok := firstParamFD(ctx.Frame.Params)
	if !ok {
		return nil
	}
	ctx.Evt.FD = rec.FDs.Remove(fd)
	return nil
}

func handleDupExit(ctx *ParseContext) error {
	rec := ctx.Evt.Thread.(*threadtable.Record)
	oldFd, ok := firstParamFD(ctx.Frame.Params)
	if !ok {
		return nil
	}
	newFd, ok := secondParamFD(ctx.Frame.Params)
	if !ok {
		return nil
	}

	src := rec.FDs.Get(oldFd)
	if src == nil {
		return nil
	}
	cp := *src
	rec.FDs.Add(newFd, &cp)
	ctx.Evt.FD = &cp
	return nil
}

func secondParamFD(params []rawevent.Param) (int32, bool) {
	seen := false
	for _, p := range params {
		if p.Type != rawevent.ParamFD {
			continue
		}
		if !seen {
			seen = true
			continue
		}
		if v, ok := p.Value.(int32); ok {
			return v, true
		}
	}
	return 0, false
}

func handleSetuidExit(ctx *ParseContext) error {
	rec := ctx.Evt.Thread.(*threadtable.Record)
	if uid, ok := firstParamInt(ctx.Frame.Params, rawevent.ParamUint64); ok {
		rec.Lock()
		rec.Uid = uint32(uid)
		rec.Unlock()
	}
	return nil
}

func handleSetgidExit(ctx *ParseContext) error {
	rec := ctx.Evt.Thread.(*threadtable.Record)
	if gid, ok := firstParamInt(ctx.Frame.Params, rawevent.ParamUint64); ok {
		rec.Lock()
		rec.Gid = uint32(gid)
		rec.Unlock()
	}
	return nil
}

// handleExit only notifies decoders; it neither removes nor marks the
// thread's record. Removal is deferred by the caller (pkg/inspector), which
// queues Tid onto its pendingRemovals slice and only actually removes it at
// the start of the *next* Next() call, so the event just returned to the
// consumer still resolves its Thread reference (spec section 4.9 step 2,
// "deferred removal").
func handleExit(ctx *ParseContext) error {
	ctx.Decoders.Dispatch(decoder.CategoryExit, ctx.Evt)
	return nil
}
