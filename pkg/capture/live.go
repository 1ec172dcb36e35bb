/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package capture

import (
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/nydusdev/sysinspect/pkg/errdefs"
	"github.com/nydusdev/sysinspect/pkg/rawevent"
)

// decodedFrame pairs a decode result with its error so both travel
// through the same channel without a second error channel.
type decodedFrame struct {
	frame *rawevent.Frame
	err   error
}

// LiveSource reads frames from a live driver's io.ReadCloser in a
// dedicated background goroutine, matching the teacher's fanotify
// pattern (pkg/fanotify/fanotify.go's StartFanotifyMonitor): one
// goroutine pulls from the kernel channel in a loop and pushes onto a
// buffered channel; Next() only ever reads from that channel, so no
// inspector-owned state is touched from the background goroutine (spec
// section 5's concurrency exception (a)).
type LiveSource struct {
	rc       io.ReadCloser
	frames   chan decodedFrame
	stopped  chan struct{}
	resumeCh chan struct{}

	mu     sync.Mutex
	paused bool
	closed bool
	stats  Stats
}

// OpenLive starts pulling frames from rc in the background. Buffer sizes
// the channel to absorb short bursts without blocking the kernel-side
// writer; beyond that, frames queue in rc itself per the driver's own
// buffering.
func OpenLive(rc io.ReadCloser) *LiveSource {
	s := &LiveSource{
		rc:       rc,
		frames:   make(chan decodedFrame, 256),
		stopped:  make(chan struct{}),
		resumeCh: make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *LiveSource) pump() {
	for {
		select {
		case <-s.stopped:
			return
		default:
		}

		s.mu.Lock()
		paused := s.paused
		s.mu.Unlock()
		if paused {
			select {
			case <-s.resumeCh:
			case <-s.stopped:
				return
			}
			continue
		}

		frame, err := rawevent.Decode(s.rc)
		if err == errdefs.ErrSourceDecode {
			// A malformed frame is counted and skipped; reading continues
			// with the bytes that follow it.
			s.mu.Lock()
			s.stats.Dropped++
			s.mu.Unlock()
			continue
		}
		select {
		case s.frames <- decodedFrame{frame: frame, err: err}:
		case <-s.stopped:
			return
		default:
			// Consumer isn't keeping up; drop rather than block the reader
			// goroutine indefinitely (spec section 4.1: "drops are counted,
			// never silently stall the driver").
			s.mu.Lock()
			s.stats.Dropped++
			s.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (s *LiveSource) Next() (*rawevent.Frame, error) {
	select {
	case d, ok := <-s.frames:
		if !ok {
			return nil, errdefs.ErrCaptureInterrupted
		}
		if d.err != nil {
			if d.err == io.EOF {
				return nil, io.EOF
			}
			s.mu.Lock()
			s.stats.Dropped++
			s.mu.Unlock()
			return nil, errors.Wrap(errdefs.ErrSourceDecode, d.err.Error())
		}
		s.mu.Lock()
		s.stats.Events++
		s.mu.Unlock()
		return d.frame, nil
	case <-s.stopped:
		return nil, errdefs.ErrCaptureInterrupted
	}
}

func (s *LiveSource) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *LiveSource) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	return nil
}

func (s *LiveSource) Resume() error {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	select {
	case s.resumeCh <- struct{}{}:
	default:
	}
	return nil
}

func (s *LiveSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopped)
	return s.rc.Close()
}
