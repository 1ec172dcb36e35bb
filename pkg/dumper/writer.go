/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package dumper implements C8: the Cycle Writer, an optional raw-frame
// sink attached to an inspector that rolls over to a new file by size or
// elapsed duration, keeping at most N files on disk (spec section 4.8);
// there is no rollover by event count. Grounded in shape on
// internal/logging's lumberjack-backed rotation; the rotation policy itself
// is hand-rolled here while still delegating gzip compression to
// klauspost/compress, matching the teacher's preference for that codec
// over stdlib compress/gzip.
package dumper

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	units "github.com/docker/go-units"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/nydusdev/sysinspect/pkg/errdefs"
	"github.com/nydusdev/sysinspect/pkg/rawevent"
)

// Policy configures when the writer rolls over to a new file. A zero value
// in any field disables that rollover trigger.
type Policy struct {
	MaxBytes    int64
	MaxDuration time.Duration
	MaxFiles    int // 0 means unlimited; oldest files are unlinked past this count
	Compress    bool
}

// ParsePolicy builds a Policy from human-readable size strings (e.g.
// "64KB", "100MB") using the same size-parsing library the teacher lists
// but never directly imports -- docker/go-units.
func ParsePolicy(maxSize string, maxDuration time.Duration, maxFiles int, compress bool) (Policy, error) {
	var maxBytes int64
	if maxSize != "" {
		b, err := units.RAMInBytes(maxSize)
		if err != nil {
			return Policy{}, errors.Wrapf(err, "parse max size %q", maxSize)
		}
		maxBytes = b
	}
	return Policy{MaxBytes: maxBytes, MaxDuration: maxDuration, MaxFiles: maxFiles, Compress: compress}, nil
}

// CycleWriter writes a stream of raw frames to files named
// "<prefix>0", "<prefix>1", ... under dir, rolling over per Policy and
// unlinking the oldest file once MaxFiles is exceeded.
type CycleWriter struct {
	mu sync.Mutex

	dir    string
	prefix string
	policy Policy

	seq        int
	oldestSeq  int
	cur        *os.File
	curSize    int64
	openedAt   time.Time
	nowFn      func() time.Time
}

// New opens the first output file (seq 0) under dir with the given
// filename prefix (e.g. "out" -> out0, out1, ...).
func New(dir, prefix string, policy Policy) (*CycleWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create dump dir")
	}
	w := &CycleWriter{dir: dir, prefix: prefix, policy: policy, nowFn: time.Now}
	if err := w.openCurrent(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *CycleWriter) fileName(seq int) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s%d", w.prefix, seq))
}

func (w *CycleWriter) openCurrent() error {
	f, err := os.OpenFile(w.fileName(w.seq), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "open dump file")
	}
	w.cur = f
	w.curSize = 0
	w.openedAt = w.nowFn()
	return nil
}

// WriteFrame writes one frame, rolling over first if the current file has
// already reached the policy's size bound or been open for its duration
// bound. Rollover is checked in the order size, then duration; the
// file-count cleanup runs inside rotate, before the frame is written.
func (w *CycleWriter) WriteFrame(f *rawevent.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.shouldRollBeforeWrite() {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	var buf countingWriter
	buf.w = w.cur
	if err := rawevent.Encode(&buf, f); err != nil {
		return errors.Wrap(errdefs.ErrDumpIo, err.Error())
	}
	w.curSize += buf.n
	return nil
}

func (w *CycleWriter) shouldRollBeforeWrite() bool {
	if w.policy.MaxBytes > 0 && w.curSize >= w.policy.MaxBytes {
		return true
	}
	if w.policy.MaxDuration > 0 && w.nowFn().Sub(w.openedAt) >= w.policy.MaxDuration {
		return true
	}
	return false
}

// rotate closes the current file, optionally compresses it, opens the
// next sequence number, and unlinks the oldest file if MaxFiles is
// exceeded.
func (w *CycleWriter) rotate() error {
	closedName := w.cur.Name()
	if err := w.cur.Close(); err != nil {
		return errors.Wrap(errdefs.ErrDumpIo, err.Error())
	}

	if w.policy.Compress {
		if err := compressFile(closedName); err != nil {
			return errors.Wrap(errdefs.ErrDumpIo, err.Error())
		}
	}

	w.seq++
	if err := w.openCurrent(); err != nil {
		return err
	}

	if w.policy.MaxFiles > 0 {
		liveCount := w.seq - w.oldestSeq + 1
		for liveCount > w.policy.MaxFiles {
			oldest := w.fileName(w.oldestSeq)
			_ = os.Remove(oldest)
			_ = os.Remove(oldest + ".gz")
			w.oldestSeq++
			liveCount--
		}
	}

	return nil
}

// ForceRotate rolls over to a new file immediately, regardless of the
// configured size/duration policy -- used by the inspector's
// AutodumpNextFile consumer API.
func (w *CycleWriter) ForceRotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotate()
}

// Close flushes and closes the active file without rotating.
func (w *CycleWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur == nil {
		return nil
	}
	err := w.cur.Close()
	w.cur = nil
	return err
}

func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer dst.Close()

	gw := gzip.NewWriter(dst)
	if _, err := io.Copy(gw, src); err != nil {
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
