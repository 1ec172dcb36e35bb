/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nydusdev/sysinspect/pkg/sysevent"
)

func TestDispatchCallsOnlyMatchingCategory(t *testing.T) {
	r := NewRegistry()
	var opens, writes int

	r.Register(CategoryOpen, func(*sysevent.Event) { opens++ })
	r.Register(CategoryWrite, func(*sysevent.Event) { writes++ })

	r.Dispatch(CategoryOpen, &sysevent.Event{})
	assert.Equal(t, 1, opens)
	assert.Equal(t, 0, writes)
}

func TestUnregisterStopsDelivery(t *testing.T) {
	r := NewRegistry()
	calls := 0
	h := r.Register(CategoryOpen, func(*sysevent.Event) { calls++ })

	r.Dispatch(CategoryOpen, &sysevent.Event{})
	r.Unregister(h)
	r.Dispatch(CategoryOpen, &sysevent.Event{})

	assert.Equal(t, 1, calls)
}
