/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package inspector

import (
	"time"

	"github.com/pkg/errors"

	"github.com/nydusdev/sysinspect/pkg/capture"
	"github.com/nydusdev/sysinspect/pkg/containertable"
	"github.com/nydusdev/sysinspect/pkg/dumper"
	"github.com/nydusdev/sysinspect/pkg/errdefs"
	"github.com/nydusdev/sysinspect/pkg/filter"
	"github.com/nydusdev/sysinspect/pkg/hostinfo"
	"github.com/nydusdev/sysinspect/pkg/metrics/collector"
	"github.com/nydusdev/sysinspect/pkg/sysevent"
	"github.com/nydusdev/sysinspect/pkg/threadtable"
)

// Next implements spec section 4.9's nine steps: return a pending
// meta-event first, drain the previous iteration's deferred thread
// removals, pull and parse frames from the source until one passes the
// filter gate (synthesizing a fatfile replacement for each one that
// doesn't, when fatfile mode applies), sweeping inactive thread/container
// records every sweepEveryNEvents, writing the accepted frame to the
// attached dumper if any, and returning the reused Event slot.
func (i *Inspector) Next() (*sysevent.Event, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state == StateClosed {
		return nil, errdefs.ErrCaptureInterrupted
	}
	if i.state == StatePaused {
		// A live source's background pump already stalls itself on pause;
		// a file source's Pause is a no-op at the source level (spec
		// section 4.1), so the inspector must honor Paused itself here or
		// replay would keep advancing while the state claims otherwise.
		return nil, i.setErr(errors.Wrap(errdefs.ErrConfigLocked, "inspector is paused"))
	}
	if i.source == nil {
		return nil, i.setErr(errors.New("inspector not opened"))
	}

	// Step 1: a pending meta-event always takes priority over the capture
	// stream.
	if i.metaPending {
		i.metaPending = false
		i.numEvents++
		return i.metaSlot, nil
	}

	// Step 2: drain the previous iteration's deferred thread removals now
	// that the caller has had its chance to use the event/thread reference
	// it was handed last time (spec section 4.9 step 2, Open Question (a)).
	if len(i.pendingRemovals) > 0 {
		for _, tid := range i.pendingRemovals {
			i.threads.Remove(tid)
		}
		i.pendingRemovals = i.pendingRemovals[:0]
	}

	for {
		// The pull runs without i.mu held so that Close can interrupt a
		// live source that is blocked waiting for a frame.
		src := i.source
		i.mu.Unlock()
		frame, err := src.Next()
		i.mu.Lock()
		if i.state == StateClosed {
			return nil, errdefs.ErrCaptureInterrupted
		}
		if err != nil {
			return nil, i.setErr(err)
		}

		if err := i.parser.Parse(frame, i.evt); err != nil {
			return nil, i.setErr(err)
		}

		i.resolveContainer(i.evt)

		accepted := true
		if i.pred != nil {
			accepted = i.pred.Eval(i.evt)
		}

		if err := i.parser.Synthesize(frame, i.evt, accepted); err != nil {
			i.logger.WithError(err).Warn("fatfile dump write failed")
		}

		if i.evt.Direction == sysevent.DirectionEnter &&
			(i.evt.Type == sysevent.TypeExit || i.evt.Type == sysevent.TypeExitGroup) {
			i.pendingRemovals = append(i.pendingRemovals, i.evt.Tid)
		}

		i.eventsSinceSweep++
		if i.eventsSinceSweep >= i.sweepEveryNEvents {
			i.sweepInactive()
			i.eventsSinceSweep = 0
		}

		if !accepted {
			continue
		}

		if i.dump != nil {
			if err := i.dump.WriteFrame(frame); err != nil {
				i.logger.WithError(err).Warn("dump write failed")
			}
		}

		i.numEvents++
		i.evt.Num = i.numEvents
		return i.evt, nil
	}
}

// resolveContainer lazily resolves the owning container for rec from its
// cgroup membership the first time a thread without a ContainerID is
// seen in live mode (spec section 4.5: "containers are resolved lazily
// from cgroup membership, not pre-enumerated"). A miss or a file-mode
// capture (no live /proc to read) leaves ContainerID empty.
func (i *Inspector) resolveContainer(evt *sysevent.Event) {
	if !i.live {
		return
	}
	rec, ok := evt.Thread.(*threadtable.Record)
	if !ok {
		return
	}
	rec.Lock()
	known := rec.ContainerID != ""
	pid := rec.Pid
	rec.Unlock()
	if known {
		return
	}

	cand, err := containertable.ResolveFromPid(pid)
	if err != nil || cand == nil {
		return
	}
	contRec, _, err := i.containers.FindOrCreate(cand.ID, cand.CgroupPath, evt.Ts)
	if err != nil {
		return
	}
	rec.Lock()
	rec.ContainerID = contRec.ID
	rec.Unlock()
}

func (i *Inspector) sweepInactive() {
	now := i.nowTs()
	i.threads.SweepInactive(now - i.threadTimeout.Nanoseconds())
	i.containers.SweepInactive(now - i.containerTimeout.Nanoseconds())
}

// QueueInterfaceChangeMeta synthesizes a TypeMetaInterfaceChange event,
// returned by the next Next() call ahead of any pending capture frame
// (spec section 4.9, "meta-events"). Used when an interface change is
// discovered out-of-band (e.g. by a consumer polling net.Interfaces()
// itself and wanting it folded back into the event stream).
func (i *Inspector) QueueInterfaceChangeMeta(iface hostinfo.IPv4Addr) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.hosts.ImportIPv4(iface)
	i.metaSlot = &sysevent.Event{
		Ts:   i.nowTs(),
		Type: sysevent.TypeMetaInterfaceChange,
	}
	i.metaPending = true
}

// SetFilter compiles expr and installs it as the live filter gate. An
// empty expr clears the filter (every event is accepted).
func (i *Inspector) SetFilter(expr string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if expr == "" {
		i.filterExpr = ""
		i.pred = nil
		return nil
	}

	pred, err := filter.Compile(expr)
	if err != nil {
		return i.setErr(err)
	}
	i.filterExpr = expr
	i.pred = pred
	return nil
}

// GetFilter returns the currently installed filter expression, or "" if
// none is set.
func (i *Inspector) GetFilter() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.filterExpr
}

// SetSnaplen sets the per-parameter capture length, live captures only
// (spec section 6.3: "ConfigLocked on file").
func (i *Inspector) SetSnaplen(n int64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.live {
		return i.setErr(errdefs.ErrConfigLocked)
	}
	i.snaplen = n
	return nil
}

// SetImportUsers toggles /etc/passwd and /etc/group import. Only valid
// before Open (spec section 6.3: "pre-open only").
func (i *Inspector) SetImportUsers(enabled bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.checkNotOpened(); err != nil {
		return i.setErr(err)
	}
	i.importUsers = enabled
	return nil
}

func (i *Inspector) SetDebugMode(enabled bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.debugMode = enabled
}

// SetFatfileDumpMode toggles fatfile synthesis. Can be flipped at any
// time; it only has effect once a dumper is attached via AutodumpStart or
// SetupCycleWriter.
func (i *Inspector) SetFatfileDumpMode(enabled bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.fatfileMode = enabled
	if i.parser != nil {
		i.parser.FatfileMode = enabled
	}
}

func (i *Inspector) SetMaxEvtOutputLen(n int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if n > 0 {
		i.maxEvtOutputLen = n
	}
}

func (i *Inspector) SetBufferFormat(f BufferFormat) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.bufferFormat = f
}

func (i *Inspector) GetBufferFormat() BufferFormat {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.bufferFormat
}

// SetupCycleWriter attaches a caller-built dumper.CycleWriter as the
// fatfile/autodump sink, replacing any previously attached writer (the
// old one is closed first).
func (i *Inspector) SetupCycleWriter(w *dumper.CycleWriter) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.attachDumper(w)
}

// AutodumpStart builds and attaches a dumper.CycleWriter from
// human-readable policy knobs (spec section 6.3).
func (i *Inspector) AutodumpStart(dir, prefix, maxSize string, maxDuration time.Duration, maxFiles int, compress bool) error {
	policy, err := dumper.ParsePolicy(maxSize, maxDuration, maxFiles, compress)
	if err != nil {
		return i.setErrLocked(err)
	}
	w, err := dumper.New(dir, prefix, policy)
	if err != nil {
		return i.setErrLocked(err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.attachDumper(w)
}

func (i *Inspector) setErrLocked(err error) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.setErr(err)
}

func (i *Inspector) attachDumper(w *dumper.CycleWriter) error {
	if i.dump != nil {
		if err := i.dump.Close(); err != nil {
			i.logger.WithError(err).Warn("closing previous dumper failed")
		}
	}
	i.dump = w
	if i.parser != nil {
		i.parser.Dumper = w
	}
	return nil
}

// AutodumpNextFile forces an immediate rotation of the attached dumper.
func (i *Inspector) AutodumpNextFile() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.dump == nil {
		return i.setErr(errdefs.ErrLookupFailed)
	}
	if err := i.dump.ForceRotate(); err != nil {
		return i.setErr(err)
	}
	collector.CollectLifecycleEvent("dump_rotated")
	return nil
}

// AutodumpStop closes and detaches the current dumper, if any.
func (i *Inspector) AutodumpStop() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.dump == nil {
		return nil
	}
	err := i.dump.Close()
	i.dump = nil
	if i.parser != nil {
		i.parser.Dumper = nil
	}
	return err
}

// GetReadProgress reports the fraction of the trace file consumed so far.
// Only meaningful for file sources; returns (0, ErrLookupFailed) for a
// live capture.
func (i *Inspector) GetReadProgress() (float64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	fs, ok := i.source.(*capture.FileSource)
	if !ok {
		return 0, errdefs.ErrLookupFailed
	}
	return fs.Progress(), nil
}
