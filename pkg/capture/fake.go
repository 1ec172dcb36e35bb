/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package capture

import (
	"io"
	"sync"

	"github.com/nydusdev/sysinspect/pkg/errdefs"
	"github.com/nydusdev/sysinspect/pkg/rawevent"
)

// FakeSource is an in-memory Source used by pkg/inspector's tests: frames
// are provided up front, Next() returns them in order and io.EOF once
// exhausted.
type FakeSource struct {
	mu      sync.Mutex
	frames  []*rawevent.Frame
	idx     int
	closed  bool
	paused  bool
	stats   Stats
}

func NewFakeSource(frames []*rawevent.Frame) *FakeSource {
	return &FakeSource{frames: frames}
}

func (s *FakeSource) Next() (*rawevent.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errdefs.ErrCaptureInterrupted
	}
	if s.paused {
		return nil, errdefs.ErrCaptureInterrupted
	}
	if s.idx >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.idx]
	s.idx++
	s.stats.Events++
	return f, nil
}

func (s *FakeSource) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *FakeSource) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	return nil
}

func (s *FakeSource) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	return nil
}

func (s *FakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
