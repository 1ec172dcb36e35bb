/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package threadtable implements C4: the thread/process table, parent
// links, private-state slots and LRU-style eviction (spec section 4.4).
package threadtable

import (
	"sync"

	"github.com/nydusdev/sysinspect/pkg/fdtable"
)

// Flags captures the subset of clone(2) flags the parser needs to decide
// inheritance semantics.
type Flags uint32

const (
	FlagCloneFiles Flags = 1 << iota
	FlagCloneThread
	FlagCloneVM
)

// Record is the reconstructed per-tid state (spec section 3: "Thread
// record"). Equal to a process record when Tid == Pid.
type Record struct {
	mu sync.Mutex

	Tid  int64
	Pid  int64
	PPid int64

	Exe         string
	Args        []string
	Cwd         string
	Uid         uint32
	Gid         uint32
	ContainerID string

	CreateTs     int64
	LastAccessTs int64

	Flags Flags
	// Incomplete marks a record synthesized with only tid+timestamp because
	// neither the event stream nor /proc could supply more (spec section
	// 4.6, tie-break rule).
	Incomplete bool

	// Private is the fixed-size private-state block; offsets are assigned
	// by the slot registry before capture starts (reserve_private_slot).
	Private []byte

	FDs *fdtable.Table

	// pendingArgs stashes enter-phase syscall arguments until the matching
	// exit event commits them (spec section 4.6: "two-phase handling").
	pendingArgs any
}

func NewRecord(tid int64, ts int64, privateSize int) *Record {
	return &Record{
		Tid:          tid,
		Pid:          tid,
		CreateTs:     ts,
		LastAccessTs: ts,
		Private:      make([]byte, privateSize),
		FDs:          fdtable.New(),
	}
}

func (r *Record) Lock()   { r.mu.Lock() }
func (r *Record) Unlock() { r.mu.Unlock() }

// Touch refreshes LastAccessTs -- called on every lookup/mutation so
// sweep_inactive's staleness check reflects true last use.
func (r *Record) Touch(ts int64) {
	r.mu.Lock()
	r.LastAccessTs = ts
	r.mu.Unlock()
}

// SetPendingArgs / TakePendingArgs implement the two-phase enter/exit
// handoff; TakePendingArgs clears the slot after reading it.
func (r *Record) SetPendingArgs(v any) {
	r.mu.Lock()
	r.pendingArgs = v
	r.mu.Unlock()
}

func (r *Record) TakePendingArgs() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.pendingArgs
	r.pendingArgs = nil
	return v
}

// CloneChild produces a new child record inheriting attributes from r per
// clone(2) semantics: the FD table is always copied, CLONE_FILES included,
// since this design never aliases FD tables across threads (spec section 3
// invariant); of the tracked flags only CLONE_THREAD changes the result,
// giving the child its parent's pid instead of its own tid.
func (r *Record) CloneChild(childTid int64, ts int64, flags Flags) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	child := &Record{
		Tid:          childTid,
		PPid:         r.Tid,
		Exe:          r.Exe,
		Args:         append([]string(nil), r.Args...),
		Cwd:          r.Cwd,
		Uid:          r.Uid,
		Gid:          r.Gid,
		ContainerID:  r.ContainerID,
		CreateTs:     ts,
		LastAccessTs: ts,
		Flags:        flags,
		Private:      make([]byte, len(r.Private)),
		FDs:          r.FDs.Clone(),
	}

	if flags&FlagCloneThread != 0 {
		child.Pid = r.Pid
	} else {
		child.Pid = childTid
	}

	return child
}
