/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package threadtable

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/nydusdev/sysinspect/pkg/errdefs"
)

var (
	slotMu       sync.Mutex
	slotLocked   bool
	slotNames    []string
	slotOffsets  = map[string]int{}
	slotTotal    int
)

// ReservePrivateSlot reserves a fixed-size block of a thread record's
// Private byte slice for a decoder extension (spec section 4.6:
// "reserve_private_slot"). Must be called before the first capture opens;
// once any Manager has been created (the inspector creates one when a
// capture opens) or PrivateSize has been called, the layout is frozen and
// further calls fail with errdefs.ErrConfigLocked, grounded on the teacher's
// once-locked registry pattern in config/global.go.
func ReservePrivateSlot(name string, size int) (offset int, err error) {
	slotMu.Lock()
	defer slotMu.Unlock()

	if slotLocked {
		return 0, errdefs.ErrConfigLocked
	}
	if _, exists := slotOffsets[name]; exists {
		return 0, errdefs.ErrAlreadyExists
	}

	offset = slotTotal
	slotOffsets[name] = offset
	slotNames = append(slotNames, name)
	slotTotal += size
	return offset, nil
}

// SlotOffset looks up a previously reserved slot.
func SlotOffset(name string) (int, bool) {
	slotMu.Lock()
	defer slotMu.Unlock()
	off, ok := slotOffsets[name]
	return off, ok
}

func lockSlots() int {
	slotMu.Lock()
	defer slotMu.Unlock()
	slotLocked = true
	return slotTotal
}

// PrivateSize returns the current total reserved private-slot size,
// locking the slot registry the same way a live record allocation would.
// Exported for callers outside this package that synthesize Records
// directly (e.g. pkg/store checkpoint restore) instead of going through
// FindOrCreate.
func PrivateSize() int {
	return lockSlots()
}

// Mutator is the narrow capability interface the event parser is given
// instead of the full *Manager (spec section 9 design notes: the
// original's "friendship" overreach is replaced here with
// insert/remove/find-only access -- the parser never needs to reach into
// eviction policy or private-slot bookkeeping).
type Mutator interface {
	Find(tid int64, ts int64) *Record
	FindOrCreate(tid int64, ts int64) (*Record, bool, error)
	Add(rec *Record) *Record
	Remove(tid int64) *Record
}

// Manager is the C4 thread table: tid -> *Record, bounded by an LRU cache
// so long-running captures with high process churn stay within a fixed
// memory budget. Grounded on the teacher's pkg/manager.DaemonCache /
// pkg/process.DaemonStates (a mutex-protected index backing a bounded
// cache of daemon records).
type Manager struct {
	mu        sync.Mutex
	cache     *lru.Cache
	evicted   []*Record
	queryProc func(tid int64) (*Record, error)
}

// NewManager builds a Manager capped at maxSize live records. queryProc, if
// non-nil, is invoked by FindOrCreate to synthesize a record from /proc
// when the stream hasn't given us a clone/execve for this tid yet.
func NewManager(maxSize int, queryProc func(tid int64) (*Record, error)) (*Manager, error) {
	m := &Manager{queryProc: queryProc}
	onEvict := func(key interface{}, value interface{}) {
		if rec, ok := value.(*Record); ok {
			m.evicted = append(m.evicted, rec)
		}
	}
	c, err := lru.NewWithEvict(maxSize, onEvict)
	if err != nil {
		return nil, err
	}
	m.cache = c
	_ = lockSlots()
	return m, nil
}

// Find returns the live record for tid, refreshing its LRU position and
// LastAccessTs, or nil if tid is not known.
func (m *Manager) Find(tid int64, ts int64) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.cache.Get(tid)
	if !ok {
		return nil
	}
	rec := v.(*Record)
	rec.Touch(ts)
	return rec
}

// Add installs rec, evicting the least-recently-used record if the table
// is at capacity. The evicted record, if any, is returned so callers can
// emit a synthetic removal observation to decoders (spec section 4.4: LRU
// eviction is observable the same way as an explicit exit).
func (m *Manager) Add(rec *Record) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evicted = m.evicted[:0]
	m.cache.Add(rec.Tid, rec)

	if len(m.evicted) == 0 {
		return nil
	}
	return m.evicted[0]
}

// FindOrCreate returns the existing record for tid, or synthesizes one
// (querying /proc when available) and installs it. Grounded on the
// teacher's find_or_create-shaped DaemonCache.Get pattern backed by
// on-demand rebuild from disk (pkg/manager/manager.go).
func (m *Manager) FindOrCreate(tid int64, ts int64) (*Record, bool, error) {
	if rec := m.Find(tid, ts); rec != nil {
		return rec, false, nil
	}

	var rec *Record
	var err error
	if m.queryProc != nil {
		rec, err = m.queryProc(tid)
	}
	if rec == nil {
		rec = NewRecord(tid, ts, lockSlots())
		rec.Incomplete = true
	}
	if err != nil {
		rec = NewRecord(tid, ts, lockSlots())
		rec.Incomplete = true
	}

	m.Add(rec)
	return rec, true, nil
}

// Remove deletes tid from the table and returns the removed record.
func (m *Manager) Remove(tid int64) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.cache.Peek(tid)
	if !ok {
		return nil
	}
	m.cache.Remove(tid)
	return v.(*Record)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}

// SweepInactive walks the table oldest-access-first and removes any record
// whose LastAccessTs is older than cutoff, returning the removed records
// (spec section 4.4: "sweep_inactive", driven every N events rather than
// on a timer since the inspector has no internal goroutines).
func (m *Manager) SweepInactive(cutoff int64) []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stale []int64
	for _, k := range m.cache.Keys() {
		v, ok := m.cache.Peek(k)
		if !ok {
			continue
		}
		rec := v.(*Record)
		rec.mu.Lock()
		last := rec.LastAccessTs
		rec.mu.Unlock()
		if last < cutoff {
			stale = append(stale, k.(int64))
		}
	}

	var removed []*Record
	for _, tid := range stale {
		if v, ok := m.cache.Peek(tid); ok {
			removed = append(removed, v.(*Record))
			m.cache.Remove(tid)
		}
	}
	return removed
}

// Iter calls fn for every live record. Iteration order is unspecified.
func (m *Manager) Iter(fn func(*Record)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.cache.Keys() {
		if v, ok := m.cache.Peek(k); ok {
			fn(v.(*Record))
		}
	}
}
