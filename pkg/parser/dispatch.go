/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package parser implements C6: the event parser, a fixed dispatch table
// from (event type, direction) to a handler that mutates thread/FD/
// container state and enriches the shared event slot. Grounded on the
// pack's table-of-syscalls idiom (seccomp profile tables) and the
// datadog-agent security probe's event-pipeline dispatch shape: a flat
// array of handler functions indexed by a small closed enum, rather than
// a virtual-dispatch hierarchy (spec section 9 design notes).
package parser

import (
	"github.com/nydusdev/sysinspect/pkg/sysevent"
)

// handlerFunc mutates state for one (type, direction) pair and enriches
// ctx.Evt. Returning an error aborts dispatch for this event only; the
// parser itself never fails the whole capture on a handler error.
type handlerFunc func(ctx *ParseContext) error

const typeCount = int(sysevent.TypeMetaInterfaceChange) + 1

// dispatch is the flat [type][direction]handler table, populated once by
// init(). A nil entry means "no state mutation needed" -- the event is
// still enriched with its thread reference by the caller before dispatch
// runs.
var dispatch [typeCount][2]handlerFunc

func register(t sysevent.Type, d sysevent.Direction, fn handlerFunc) {
	dispatch[int(t)][int(d)] = fn
}

func init() {
	register(sysevent.TypeClone, sysevent.DirectionEnter, handleCloneEnter)
	register(sysevent.TypeClone, sysevent.DirectionExit, handleCloneExit)

	register(sysevent.TypeExecve, sysevent.DirectionEnter, handleExecveEnter)
	register(sysevent.TypeExecve, sysevent.DirectionExit, handleExecveExit)

	register(sysevent.TypeOpen, sysevent.DirectionExit, handleOpenExit)
	register(sysevent.TypeOpenAt, sysevent.DirectionExit, handleOpenExit)
	register(sysevent.TypeCreat, sysevent.DirectionExit, handleOpenExit)

	register(sysevent.TypeSocket, sysevent.DirectionExit, handleSocketExit)
	register(sysevent.TypeBind, sysevent.DirectionExit, handleBindExit)
	register(sysevent.TypeConnect, sysevent.DirectionExit, handleConnectExit)
	register(sysevent.TypeAccept, sysevent.DirectionExit, handleAcceptExit)
	register(sysevent.TypeAccept4, sysevent.DirectionExit, handleAcceptExit)

	register(sysevent.TypeRead, sysevent.DirectionExit, handleReadWriteExit(false))
	register(sysevent.TypeRecv, sysevent.DirectionExit, handleReadWriteExit(false))
	register(sysevent.TypeWrite, sysevent.DirectionExit, handleReadWriteExit(true))
	register(sysevent.TypeSend, sysevent.DirectionExit, handleReadWriteExit(true))

	register(sysevent.TypeClose, sysevent.DirectionExit, handleCloseExit)

	register(sysevent.TypeDup, sysevent.DirectionExit, handleDupExit)
	register(sysevent.TypeDup2, sysevent.DirectionExit, handleDupExit)
	register(sysevent.TypeDup3, sysevent.DirectionExit, handleDupExit)

	register(sysevent.TypeSetuid, sysevent.DirectionExit, handleSetuidExit)
	register(sysevent.TypeSetgid, sysevent.DirectionExit, handleSetgidExit)

	register(sysevent.TypeExit, sysevent.DirectionEnter, handleExit)
	register(sysevent.TypeExitGroup, sysevent.DirectionEnter, handleExit)
}

// stateCarrying reports whether a successful dispatch of t at direction d
// mutated persistent thread/FD/container state -- used to decide whether
// fatfile mode must synthesize a replacement frame when the filter gate
// rejects the live event (spec section 4.6, "fatfile mode").
func stateCarrying(t sysevent.Type, d sysevent.Direction) bool {
	if d != sysevent.DirectionExit && t != sysevent.TypeClone && t != sysevent.TypeExit && t != sysevent.TypeExitGroup {
		return false
	}
	switch t {
	case sysevent.TypeClone, sysevent.TypeExecve, sysevent.TypeOpen, sysevent.TypeOpenAt, sysevent.TypeCreat,
		sysevent.TypeClose, sysevent.TypeDup, sysevent.TypeDup2, sysevent.TypeDup3,
		sysevent.TypeSetuid, sysevent.TypeSetgid, sysevent.TypeBind, sysevent.TypeConnect,
		sysevent.TypeAccept, sysevent.TypeAccept4, sysevent.TypeExit, sysevent.TypeExitGroup:
		return true
	default:
		return false
	}
}
