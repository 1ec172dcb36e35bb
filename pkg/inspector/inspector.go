/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package inspector implements C9: the inspector loop that ties every
// other component together behind one Next()-driven consumer API (spec
// section 4.9). State transitions follow the teacher's daemon lifecycle
// (pkg/process), generalized from "one daemon process" to "one capture".
package inspector

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nydusdev/sysinspect/pkg/capture"
	"github.com/nydusdev/sysinspect/pkg/containertable"
	"github.com/nydusdev/sysinspect/pkg/decoder"
	"github.com/nydusdev/sysinspect/pkg/dumper"
	"github.com/nydusdev/sysinspect/pkg/errdefs"
	"github.com/nydusdev/sysinspect/pkg/filter"
	"github.com/nydusdev/sysinspect/pkg/hostinfo"
	"github.com/nydusdev/sysinspect/pkg/metrics/collector"
	"github.com/nydusdev/sysinspect/pkg/parser"
	"github.com/nydusdev/sysinspect/pkg/sysevent"
	"github.com/nydusdev/sysinspect/pkg/threadtable"
	"github.com/nydusdev/sysinspect/pkg/tracefile"
)

// State is the inspector's lifecycle state.
type State int

const (
	StateUninit State = iota
	StateImportingLive
	StateImportingFile
	StateRunning
	StatePaused
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninit:
		return "uninit"
	case StateImportingLive:
		return "importing_live"
	case StateImportingFile:
		return "importing_file"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	defaultThreadTableMax    = 16384
	defaultContainerTableMax = 4096
	defaultThreadTimeout     = 5 * time.Minute
	defaultContainerTimeout  = 10 * time.Minute
	defaultSweepEveryNEvents = 1000
	defaultMaxEvtOutputLen   = 80
)

// Inspector is the single entry point a consumer opens, drives with
// repeated Next() calls, and closes. One Inspector owns exactly one
// capture -- nothing is shared across instances (spec section 5).
type Inspector struct {
	mu sync.Mutex

	state State
	live  bool
	input string

	source     capture.Source
	parser     *parser.Parser
	threads    *threadtable.Manager
	containers *containertable.Manager
	hosts      *hostinfo.Registry
	decoders   *decoder.Registry

	filterExpr string
	pred       filter.Predicate

	dump        *dumper.CycleWriter
	fatfileMode bool

	debugMode       bool
	importUsers     bool
	snaplen         int64
	maxEvtOutputLen int
	bufferFormat    BufferFormat

	threadTableMax    int
	containerTableMax int
	threadTimeout     time.Duration
	containerTimeout  time.Duration
	sweepEveryNEvents int64

	evt              *sysevent.Event
	numEvents        int64
	eventsSinceSweep int64
	pendingRemovals  []int64

	metaSlot    *sysevent.Event
	metaPending bool

	lastErr error
	logger  *logrus.Logger

	opened bool // true once OpenLive/OpenFile has succeeded; locks config setters
}

// New builds an unopened Inspector configured by opts, mirroring the
// teacher's NewDaemonOpt(opt ...NewDaemonOpt) pattern (pkg/daemon.NewDaemon).
func New(opts ...Option) (*Inspector, error) {
	i := &Inspector{
		state:             StateUninit,
		threadTableMax:    defaultThreadTableMax,
		containerTableMax: defaultContainerTableMax,
		threadTimeout:     defaultThreadTimeout,
		containerTimeout:  defaultContainerTimeout,
		sweepEveryNEvents: defaultSweepEveryNEvents,
		maxEvtOutputLen:   defaultMaxEvtOutputLen,
		bufferFormat:      BufferFormatNormal,
		evt:               &sysevent.Event{},
		logger:            logrus.StandardLogger(),
	}
	for _, o := range opts {
		if err := o(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

func (i *Inspector) setErr(err error) error {
	i.lastErr = err
	return err
}

// checkNotOpened returns ErrConfigLocked once a capture has been opened,
// matching the teacher's once-locked slot registry pattern reused in
// pkg/threadtable.ReservePrivateSlot.
func (i *Inspector) checkNotOpened() error {
	if i.opened {
		return errdefs.ErrConfigLocked
	}
	return nil
}

func (i *Inspector) buildTables() {
	i.hosts = hostinfo.NewRegistry()
	i.decoders = decoder.NewRegistry()

	var queryProc func(tid int64) (*threadtable.Record, error)
	if i.live {
		queryProc = func(tid int64) (*threadtable.Record, error) {
			return threadtable.QueryProc(tid, i.nowTs())
		}
	}
	threads, err := threadtable.NewManager(i.threadTableMax, queryProc)
	if err != nil {
		// NewManager only fails if maxSize is invalid; fall back to the
		// default rather than leaving the inspector half-built.
		threads, _ = threadtable.NewManager(defaultThreadTableMax, queryProc)
	}
	i.threads = threads

	containers, err := containertable.NewManager(i.containerTableMax, nil)
	if err != nil {
		containers, _ = containertable.NewManager(defaultContainerTableMax, nil)
	}
	i.containers = containers

	i.parser = &parser.Parser{
		Threads:     i.threads,
		Containers:  i.containers,
		Hosts:       i.hosts,
		Decoders:    i.decoders,
		FatfileMode: i.fatfileMode,
	}
}

// OpenLive attaches rc (typically a driver device or unix socket) as a
// live capture source. If SetImportUsers(true) was called before Open,
// /etc/passwd and /etc/group are imported synchronously first (spec
// section 4.2).
func (i *Inspector) OpenLive(rc io.ReadCloser) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != StateUninit {
		return i.setErr(errors.Wrap(errdefs.ErrConfigLocked, "inspector already opened"))
	}

	i.state = StateImportingLive
	i.live = true
	i.buildTables()

	v4, v6, err := hostinfo.CollectHostInterfaces()
	if err != nil {
		i.state = StateClosed
		return i.setErr(errors.Wrap(errdefs.ErrSourceOpen, err.Error()))
	}
	i.hosts.ImportInterfaces(v4, v6)

	if i.importUsers {
		if err := i.hosts.ImportUsersFromHost(); err != nil {
			i.logger.WithError(err).Warn("import users from host failed")
		}
		if err := i.hosts.ImportGroupsFromHost(); err != nil {
			i.logger.WithError(err).Warn("import groups from host failed")
		}
	}

	i.source = capture.OpenLive(rc)
	i.opened = true
	i.state = StateRunning
	collector.CollectLifecycleEvent("opened_live")
	return nil
}

// OpenFile attaches path as a trace-file replay source, reading its
// interface/user/group snapshot header before the shared frame stream
// begins (spec section 6.2).
func (i *Inspector) OpenFile(path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != StateUninit {
		return i.setErr(errors.Wrap(errdefs.ErrConfigLocked, "inspector already opened"))
	}

	i.state = StateImportingFile
	i.live = false
	i.buildTables()

	f, r, err := tracefile.Open(path, i.hosts)
	if err != nil {
		i.state = StateClosed
		return i.setErr(errors.Wrap(errdefs.ErrSourceOpen, err.Error()))
	}

	i.source = capture.NewFileSourceFromReader(f, r)
	i.input = path
	i.opened = true
	i.state = StateRunning
	collector.CollectLifecycleEvent("opened_file")
	return nil
}

// Close releases the capture source and any attached dumper. Safe to call
// more than once.
func (i *Inspector) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state == StateClosed {
		return nil
	}

	var errs []error
	if i.source != nil {
		if err := i.source.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if i.dump != nil {
		if err := i.dump.Close(); err != nil {
			errs = append(errs, err)
		}
		i.dump = nil
	}

	i.state = StateClosed
	collector.CollectLifecycleEvent("closed")
	if len(errs) > 0 {
		return i.setErr(errs[0])
	}
	return nil
}

// Pause transitions Running to Paused, propagating to the underlying
// source (spec section 4.9: "Running ⇄ Paused"). Returns ErrConfigLocked
// if the inspector isn't currently Running.
func (i *Inspector) Pause() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != StateRunning {
		return i.setErr(errors.Wrap(errdefs.ErrConfigLocked, "pause requires Running state"))
	}
	if err := i.source.Pause(); err != nil {
		return i.setErr(err)
	}
	i.state = StatePaused
	collector.CollectLifecycleEvent("paused")
	return nil
}

// Resume transitions Paused back to Running, propagating to the
// underlying source. Returns ErrConfigLocked if the inspector isn't
// currently Paused.
func (i *Inspector) Resume() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != StatePaused {
		return i.setErr(errors.Wrap(errdefs.ErrConfigLocked, "resume requires Paused state"))
	}
	if err := i.source.Resume(); err != nil {
		return i.setErr(err)
	}
	i.state = StateRunning
	collector.CollectLifecycleEvent("resumed")
	return nil
}

// IsLive reports whether the attached source is a live capture.
func (i *Inspector) IsLive() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.live
}

// GetInputFilename returns the trace file path, or "" for a live capture.
func (i *Inspector) GetInputFilename() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.input
}

// GetLastError returns the most recently observed error's message, or ""
// if none has occurred.
func (i *Inspector) GetLastError() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.lastErr == nil {
		return ""
	}
	return i.lastErr.Error()
}

// GetNumEvents returns the total count of events returned by Next so far.
func (i *Inspector) GetNumEvents() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.numEvents
}

// GetCaptureStats returns the underlying source's counters.
func (i *Inspector) GetCaptureStats() (capture.Stats, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.source == nil {
		return capture.Stats{}, errdefs.ErrLookupFailed
	}
	return i.source.Stats(), nil
}

// GetThreadTableSize returns the number of live thread records, for
// metrics collection.
func (i *Inspector) GetThreadTableSize() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.threads == nil {
		return 0
	}
	return i.threads.Len()
}

// GetContainerTableSize returns the number of live container records, for
// metrics collection.
func (i *Inspector) GetContainerTableSize() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.containers == nil {
		return 0
	}
	return i.containers.Len()
}

// GetThread returns the live thread record for tid, or nil. The lookup goes
// through Manager.Find, so it refreshes the record's LRU position and
// last-access timestamp.
func (i *Inspector) GetThread(tid int64) *threadtable.Record {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.threads == nil {
		return nil
	}
	return i.threads.Find(tid, i.nowTs())
}

func (i *Inspector) GetUserList() map[uint32]hostinfo.UserRecord {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.hosts == nil {
		return nil
	}
	return i.hosts.Users()
}

func (i *Inspector) GetGroupList() map[uint32]hostinfo.GroupRecord {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.hosts == nil {
		return nil
	}
	return i.hosts.Groups()
}

func (i *Inspector) GetIfaddrList() []hostinfo.IPv4Addr {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.hosts == nil {
		return nil
	}
	return i.hosts.GetIPv4List()
}

// MachineInfo is the summary returned by GetMachineInfo.
type MachineInfo struct {
	Interfaces []hostinfo.IPv4Addr
	NumUsers   int
	NumGroups  int
}

func (i *Inspector) GetMachineInfo() MachineInfo {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.hosts == nil {
		return MachineInfo{}
	}
	return MachineInfo{
		Interfaces: i.hosts.GetIPv4List(),
		NumUsers:   len(i.hosts.Users()),
		NumGroups:  len(i.hosts.Groups()),
	}
}

// EventTypeInfo describes one known event type for consumer introspection
// (spec section 6.3: GetEventInfoTables).
type EventTypeInfo struct {
	Type     sysevent.Type
	Name     string
	TwoPhase bool
}

// GetEventInfoTables returns static metadata about every event type the
// parser dispatches on.
func (i *Inspector) GetEventInfoTables() []EventTypeInfo {
	types := []sysevent.Type{
		sysevent.TypeClone, sysevent.TypeExecve, sysevent.TypeOpen, sysevent.TypeOpenAt,
		sysevent.TypeCreat, sysevent.TypeSocket, sysevent.TypeBind, sysevent.TypeConnect,
		sysevent.TypeAccept, sysevent.TypeAccept4, sysevent.TypeRead, sysevent.TypeWrite,
		sysevent.TypeSend, sysevent.TypeRecv, sysevent.TypeClose, sysevent.TypeDup,
		sysevent.TypeDup2, sysevent.TypeDup3, sysevent.TypeSetuid, sysevent.TypeSetgid,
		sysevent.TypeExit, sysevent.TypeExitGroup,
	}
	out := make([]EventTypeInfo, 0, len(types))
	for _, t := range types {
		out = append(out, EventTypeInfo{Type: t, Name: t.String(), TwoPhase: t != sysevent.TypeExit && t != sysevent.TypeExitGroup})
	}
	return out
}

// ReserveThreadMemory reserves a fixed-size private slot in every thread
// record's Private block for a decoder extension (spec section 4.4/4.6,
// "reserve_private_slot"). Must be called before Open.
func (i *Inspector) ReserveThreadMemory(name string, size int) (int, error) {
	return threadtable.ReservePrivateSlot(name, size)
}

// RequireProtodecoder validates that name is non-empty and otherwise does
// nothing (spec section 1 non-goals: no decoder is actually implemented
// here). It exists so a consumer can declare intent up front and get an
// early error for an obviously-wrong argument; the name itself isn't
// stored anywhere.
func (i *Inspector) RequireProtodecoder(name string) error {
	if name == "" {
		return errors.New("protodecoder name must not be empty")
	}
	return nil
}

// SetLogger installs an explicit logger, overriding the default
// logrus.StandardLogger() (spec section 9 design notes: logger-as-
// explicit-value, grounded on internal/logging.SetUp's package-var
// pattern, generalized here to avoid forcing a global onto the library).
func (i *Inspector) SetLogger(logger *logrus.Logger) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if logger != nil {
		i.logger = logger
	}
}

// SetMinLogSeverity parses level and applies it to the installed logger.
func (i *Inspector) SetMinLogSeverity(level string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	i.logger.SetLevel(lvl)
	return nil
}

func (i *Inspector) nowTs() int64 {
	if i.evt != nil && i.evt.Ts != 0 {
		return i.evt.Ts
	}
	return time.Now().UnixNano()
}
