/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package capture implements C1: the capture source adapter, the single
// abstraction the inspector pulls raw frames from, whether they come from
// a live driver device or a trace file (spec section 4.1).
package capture

import "github.com/nydusdev/sysinspect/pkg/rawevent"

// Stats reports capture-source-level counters, exposed through the
// inspector's metrics (spec section 4.1: "events observed/dropped").
type Stats struct {
	Events  uint64
	Dropped uint64
}

// Source is implemented by both the live driver adapter and the trace
// file reader. Next blocks until a frame is available or the source is
// closed; a paused live source keeps Next blocked until Resume or Close.
type Source interface {
	Next() (*rawevent.Frame, error)
	Stats() Stats
	Pause() error
	Resume() error
	Close() error
}
