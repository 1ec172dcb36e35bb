/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package fdtable implements C3: the per-thread map from fd number to FD
// descriptor. A Table is exclusively owned by one thread record (spec
// section 3: "FDs are not shared across threads except by deliberate dup
// semantics, which copy rather than alias").
package fdtable

import "net"

// Type tags the kind of resource an fd refers to.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeFile
	TypeDirectory
	TypeIPv4
	TypeIPv6
	TypeUnix
	TypePipe
	TypeEventfd
	TypeSignalfd
	TypeInotify
	TypeTimerfd
	TypeOther
)

// FileInfo is the type-specific payload for TypeFile/TypeDirectory.
type FileInfo struct {
	Path string
}

// SockInfo is the type-specific payload for TypeIPv4/TypeIPv6/TypeUnix.
type SockInfo struct {
	SrcIP   net.IP
	DstIP   net.IP
	SrcPort uint16
	DstPort uint16
	Proto   uint8
	Path    string // unix socket path, if any
}

// Descriptor is the reconstructed state of one open file descriptor.
type Descriptor struct {
	Num     int32
	Type    Type
	File    *FileInfo
	Sock    *SockInfo
	Cloexec bool
}

// Table is the per-thread fd -> Descriptor map. Not safe for concurrent use
// across threads; the inspector loop is single-threaded over any one table
// (spec section 4.3 and section 5).
type Table struct {
	entries map[int32]*Descriptor
}

func New() *Table {
	return &Table{entries: make(map[int32]*Descriptor)}
}

// Get returns the descriptor for fd, or nil if absent.
func (t *Table) Get(fd int32) *Descriptor {
	return t.entries[fd]
}

// Add installs desc at fd, replacing any prior occupant. The replaced
// descriptor is returned so the caller (the event parser) can synthesize a
// close observation for decoders, per spec section 4.3.
func (t *Table) Add(fd int32, desc *Descriptor) *Descriptor {
	old := t.entries[fd]
	desc.Num = fd
	t.entries[fd] = desc
	return old
}

// Remove deletes fd from the table and returns the removed descriptor, if
// any.
func (t *Table) Remove(fd int32) *Descriptor {
	old := t.entries[fd]
	delete(t.entries, fd)
	return old
}

// Iter calls fn for every live descriptor. Iteration order is unspecified.
func (t *Table) Iter(fn func(*Descriptor)) {
	for _, d := range t.entries {
		fn(d)
	}
}

func (t *Table) Len() int {
	return len(t.entries)
}

// Clone deep-copies the table. threadtable.Record.CloneChild calls it on
// every clone(), CLONE_FILES or not, so each thread gets its own copy
// rather than a shared table; dup only ever targets the same thread's
// table and does not use Clone.
func (t *Table) Clone() *Table {
	out := New()
	for fd, d := range t.entries {
		cp := *d
		out.entries[fd] = &cp
	}
	return out
}
