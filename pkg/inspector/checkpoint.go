/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package inspector

import (
	"github.com/nydusdev/sysinspect/pkg/containertable"
	"github.com/nydusdev/sysinspect/pkg/store"
	"github.com/nydusdev/sysinspect/pkg/threadtable"
)

// SaveCheckpoint snapshots the inspector's running config and thread/
// container tables into db. Safe to call at any point after Open; it does
// not pause or otherwise affect the capture.
func (i *Inspector) SaveCheckpoint(db *store.Database) error {
	i.mu.Lock()
	cfg := &store.Checkpoint{
		FilterExpr:      i.filterExpr,
		Snaplen:         i.snaplen,
		ImportUsers:     i.importUsers,
		DebugMode:       i.debugMode,
		FatfileDumpMode: i.fatfileMode,
		MaxEvtOutputLen: i.maxEvtOutputLen,
		BufferFormat:    int(i.bufferFormat),
		InputFile:       i.input,
		NumEvents:       i.numEvents,
	}
	threads := i.threads
	containers := i.containers
	i.mu.Unlock()

	s := store.NewCheckpointStore(db)
	if err := s.Save(cfg); err != nil {
		return err
	}

	if err := s.CleanupThreads(); err != nil {
		return err
	}
	var saveErr error
	if threads != nil {
		threads.Iter(func(r *threadtable.Record) {
			if saveErr != nil {
				return
			}
			r.Lock()
			snap := &store.ThreadSnapshot{
				Tid: r.Tid, Pid: r.Pid, PPid: r.PPid,
				Exe: r.Exe, Args: append([]string(nil), r.Args...), Cwd: r.Cwd,
				Uid: r.Uid, Gid: r.Gid, ContainerID: r.ContainerID,
				CreateTs: r.CreateTs, LastAccessTs: r.LastAccessTs,
				Incomplete: r.Incomplete,
			}
			r.Unlock()
			saveErr = s.SaveThread(snap)
		})
	}
	if saveErr != nil {
		return saveErr
	}

	if err := s.CleanupContainers(); err != nil {
		return err
	}
	if containers != nil {
		containers.Iter(func(r *containertable.Record) {
			if saveErr != nil {
				return
			}
			saveErr = s.SaveContainer(&store.ContainerSnapshot{
				ID: r.ID, Name: r.Name, ImageName: r.ImageName, CgroupPath: r.CgroupPath,
				CreateTs: r.CreateTs, LastAccessTs: r.LastAccessTs,
			})
		})
	}
	return saveErr
}

// RestoreCheckpoint repopulates the thread/container tables from db. Must
// be called after Open (so the tables exist) and before the first Next, or
// restored records race with live updates under the same LRU eviction
// policy they'd get from real capture traffic.
func (i *Inspector) RestoreCheckpoint(db *store.Database) error {
	s := store.NewCheckpointStore(db)

	cfg, err := s.Load()
	if err != nil {
		return err
	}

	i.mu.Lock()
	i.debugMode = cfg.DebugMode
	i.maxEvtOutputLen = cfg.MaxEvtOutputLen
	i.bufferFormat = BufferFormat(cfg.BufferFormat)
	threads := i.threads
	containers := i.containers
	i.mu.Unlock()

	i.SetFatfileDumpMode(cfg.FatfileDumpMode)

	if err := i.SetFilter(cfg.FilterExpr); err != nil {
		return err
	}

	if threads != nil {
		if err := s.WalkThreads(func(snap *store.ThreadSnapshot) error {
			rec := threadtable.NewRecord(snap.Tid, snap.CreateTs, threadtable.PrivateSize())
			rec.Pid = snap.Pid
			rec.PPid = snap.PPid
			rec.Exe = snap.Exe
			rec.Args = snap.Args
			rec.Cwd = snap.Cwd
			rec.Uid = snap.Uid
			rec.Gid = snap.Gid
			rec.ContainerID = snap.ContainerID
			rec.LastAccessTs = snap.LastAccessTs
			rec.Incomplete = snap.Incomplete
			threads.Add(rec)
			return nil
		}); err != nil {
			return err
		}
	}

	if containers != nil {
		if err := s.WalkContainers(func(snap *store.ContainerSnapshot) error {
			containers.Add(&containertable.Record{
				ID:           snap.ID,
				Name:         snap.Name,
				ImageName:    snap.ImageName,
				CgroupPath:   snap.CgroupPath,
				CreateTs:     snap.CreateTs,
				LastAccessTs: snap.LastAccessTs,
			})
			return nil
		}); err != nil {
			return err
		}
	}

	return nil
}
