/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package decoder implements the inspector's extension hook surface: third
// party code registers callbacks for event categories and gets a private
// slot on every thread record to stash its own per-thread state (spec
// section 4.6's decoder extension points, and section 4.4's
// reserve_private_slot). Grounded on the teacher's handle-id idiom in
// pkg/daemon/idgen.go (rs/xid for opaque handle generation).
package decoder

import (
	"sync"

	"github.com/rs/xid"

	"github.com/nydusdev/sysinspect/pkg/sysevent"
)

// Category groups callbacks by the kind of event they want notified about,
// matching the spec's decoder categories.
type Category int

const (
	CategoryOpen Category = iota
	CategoryConnect
	CategoryRead
	CategoryWrite
	CategoryTupleChange
	CategoryExit
)

// Callback receives a fully-parsed event after the parser and before the
// filter gate, so decoders see every event regardless of the active
// filter expression.
type Callback func(*sysevent.Event)

// Handle identifies one registered callback, returned so callers can
// Unregister it later.
type Handle string

type registration struct {
	category Category
	fn       Callback
}

// Registry holds the set of live registrations, grouped by category for
// O(1) dispatch instead of scanning every registration on every event.
type Registry struct {
	mu    sync.RWMutex
	byID  map[Handle]registration
	byCat map[Category][]Handle
}

func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[Handle]registration),
		byCat: make(map[Category][]Handle),
	}
}

// Register adds fn for category and returns a handle identifying it.
func (r *Registry) Register(category Category, fn Callback) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := Handle(xid.New().String())
	r.byID[h] = registration{category: category, fn: fn}
	r.byCat[category] = append(r.byCat[category], h)
	return h
}

// Unregister removes a previously registered callback. No-op if h is
// unknown (already unregistered, or never valid).
func (r *Registry) Unregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.byID[h]
	if !ok {
		return
	}
	delete(r.byID, h)

	ids := r.byCat[reg.category]
	for i, id := range ids {
		if id == h {
			r.byCat[reg.category] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// Dispatch invokes every callback registered for category with evt.
func (r *Registry) Dispatch(category Category, evt *sysevent.Event) {
	r.mu.RLock()
	ids := r.byCat[category]
	fns := make([]Callback, 0, len(ids))
	for _, id := range ids {
		if reg, ok := r.byID[id]; ok {
			fns = append(fns, reg.fn)
		}
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn(evt)
	}
}
