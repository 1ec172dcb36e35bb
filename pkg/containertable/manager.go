/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package containertable

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// Mutator is the narrow capability interface given to the event parser,
// mirroring threadtable.Mutator (spec section 9 design notes).
type Mutator interface {
	Find(id string, ts int64) *Record
	FindOrCreate(id, cgroupPath string, ts int64) (*Record, bool, error)
	Add(rec *Record) *Record
	Remove(id string) *Record
}

// Manager is the C5 container table: container id -> *Record, bounded by
// an LRU cache exactly like pkg/threadtable.Manager, since the spec gives
// containers the same bounded-memory requirement as threads (section
// 4.5). Grounded on the teacher's pkg/manager.DaemonCache shape, reused a
// second time here rather than duplicating a bespoke eviction policy.
type Manager struct {
	mu      sync.Mutex
	cache   *lru.Cache
	evicted []*Record
	resolve func(cgroupPath string) (*Record, error)
}

// NewManager builds a Manager capped at maxSize live containers. resolve,
// if non-nil, is invoked by FindOrCreate to build container identity from
// a cgroup path the first time it's seen (lazy resolution, spec section
// 4.5: "containers are resolved lazily from cgroup membership, not
// pre-enumerated").
func NewManager(maxSize int, resolve func(cgroupPath string) (*Record, error)) (*Manager, error) {
	m := &Manager{resolve: resolve}
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
	return m, nil
}

func (m *Manager) Find(id string, ts int64) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.cache.Get(id)
	if !ok {
		return nil
	}
	rec := v.(*Record)
	rec.LastAccessTs = ts
	return rec
}

func (m *Manager) Add(rec *Record) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evicted = m.evicted[:0]
	m.cache.Add(rec.ID, rec)

	if len(m.evicted) == 0 {
		return nil
	}
	return m.evicted[0]
}

// FindOrCreate resolves the container owning cgroupPath, caching the
// result under the resolved container id. If id is already known (e.g.
// seen via a sibling thread) the cached record is returned without calling
// resolve again.
func (m *Manager) FindOrCreate(id, cgroupPath string, ts int64) (*Record, bool, error) {
	if rec := m.Find(id, ts); rec != nil {
		return rec, false, nil
	}

	var rec *Record
	var err error
	if m.resolve != nil {
		rec, err = m.resolve(cgroupPath)
	}
	if rec == nil || err != nil {
		rec = &Record{ID: id, CgroupPath: cgroupPath, CreateTs: ts, LastAccessTs: ts}
	}
	if rec.ID == "" {
		rec.ID = id
	}

	m.Add(rec)
	return rec, true, nil
}

func (m *Manager) Remove(id string) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.cache.Peek(id)
	if !ok {
		return nil
	}
	m.cache.Remove(id)
	return v.(*Record)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}

// SweepInactive mirrors pkg/threadtable.Manager.SweepInactive: remove any
// container whose LastAccessTs predates cutoff. LastAccessTs is refreshed
// only by Find and FindOrCreate; whether threads still reference the
// container is not checked.
func (m *Manager) SweepInactive(cutoff int64) []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stale []string
	for _, k := range m.cache.Keys() {
		v, ok := m.cache.Peek(k)
		if !ok {
			continue
		}
		if v.(*Record).LastAccessTs < cutoff {
			stale = append(stale, k.(string))
		}
	}

	var removed []*Record
	for _, id := range stale {
		if v, ok := m.cache.Peek(id); ok {
			removed = append(removed, v.(*Record))
			m.cache.Remove(id)
		}
	}
	return removed
}

func (m *Manager) Iter(fn func(*Record)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.cache.Keys() {
		if v, ok := m.cache.Peek(k); ok {
			fn(v.(*Record))
		}
	}
}
