/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package sysevent defines the enriched event value object that flows
// through the inspection pipeline. A single Event is allocated once by the
// inspector and reused on every Next() call -- see Event's doc comment for
// the lifetime contract.
package sysevent

// Direction distinguishes the enter and exit halves of a two-phase syscall
// observation.
type Direction uint8

const (
	DirectionEnter Direction = iota
	DirectionExit
)

func (d Direction) String() string {
	if d == DirectionEnter {
		return "enter"
	}
	return "exit"
}

// Type is the syscall/event type code. Only the subset the parser actually
// dispatches on is named; everything else round-trips as TypeUnknown plus
// its raw type code in RawType.
type Type uint16

const (
	TypeUnknown Type = iota
	TypeClone
	TypeExecve
	TypeOpen
	TypeOpenAt
	TypeCreat
	TypeSocket
	TypeBind
	TypeConnect
	TypeAccept
	TypeAccept4
	TypeRead
	TypeWrite
	TypeSend
	TypeRecv
	TypeClose
	TypeDup
	TypeDup2
	TypeDup3
	TypeSetuid
	TypeSetgid
	TypeExit
	TypeExitGroup

	// TypeMetaInterfaceChange is synthesized by the inspector
	// (QueueInterfaceChangeMeta), never sourced from the driver.
	TypeMetaInterfaceChange
)

var typeNames = map[Type]string{
	TypeUnknown:             "unknown",
	TypeClone:               "clone",
	TypeExecve:              "execve",
	TypeOpen:                "open",
	TypeOpenAt:              "openat",
	TypeCreat:               "creat",
	TypeSocket:              "socket",
	TypeBind:                "bind",
	TypeConnect:             "connect",
	TypeAccept:              "accept",
	TypeAccept4:             "accept4",
	TypeRead:                "read",
	TypeWrite:               "write",
	TypeSend:                "send",
	TypeRecv:                "recv",
	TypeClose:               "close",
	TypeDup:                 "dup",
	TypeDup2:                "dup2",
	TypeDup3:                "dup3",
	TypeSetuid:              "setuid",
	TypeSetgid:              "setgid",
	TypeExit:                "exit",
	TypeExitGroup:           "exit_group",
	TypeMetaInterfaceChange: "meta_interface_change",
}

// String returns the filter-language spelling of t (e.g. "open" for
// TypeOpen), matching the names accepted by pkg/filter's evt.type column.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParamVector is the decoded, lazily-typed parameter list of one raw event.
// Concrete parameter types live in pkg/rawevent; Event only stores the
// already-decoded vector produced by the capture source.
type ParamVector = []any

// Event is the single, reused, enriched event slot. The inspector
// overwrites its fields on every call to Next(); a consumer holding a
// pointer or references derived from a past Event (Thread, FD) after the
// following Next() call observes undefined values. This mirrors the
// teacher's borrow-scoped accessors (pkg/process.Manager.GetByDaemonID):
// the reference is valid only until the next mutation.
type Event struct {
	Num       int64
	Ts        int64 // nanoseconds since epoch
	CPU       int32
	RawType   uint16
	Type      Type
	Direction Direction
	Tid       int64

	Params ParamVector

	// Thread is a pointer-by-identity reference into the thread table, or
	// nil if the owning thread could not be resolved at all (should not
	// happen once the parser runs, since it always creates at least a
	// minimal incomplete record).
	Thread ThreadRef
	// FD is set by handlers that resolve a file-descriptor argument
	// (read/write/close/...); nil otherwise.
	FD FDRef

	// Incomplete is true when Thread was synthesized minimally because the
	// tid was unseen and synthesis (via /proc or explicit construction) did
	// not yield full information.
	Incomplete bool
}

// ThreadRef and FDRef are opaque pointer-by-identity handles. They are
// defined as `any` here to avoid an import cycle between sysevent and
// threadtable/fdtable (both of which need to refer to sysevent.Event);
// pkg/inspector asserts them back to *threadtable.Record / *fdtable.Descriptor.
type ThreadRef = any
type FDRef = any

// Reset clears an Event slot for reuse, without reallocating Params'
// backing array when possible.
func (e *Event) Reset() {
	e.Num = 0
	e.Ts = 0
	e.CPU = 0
	e.RawType = 0
	e.Type = TypeUnknown
	e.Direction = DirectionEnter
	e.Tid = 0
	e.Params = e.Params[:0]
	e.Thread = nil
	e.FD = nil
	e.Incomplete = false
}
