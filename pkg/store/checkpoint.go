/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package store

// Checkpoint is the persisted subset of an Inspector's running config --
// enough to reopen a replay consumer against the same filter/snaplen/output
// settings without replaying the CLI flags that produced them.
type Checkpoint struct {
	FilterExpr      string
	Snaplen         int64
	ImportUsers     bool
	DebugMode       bool
	FatfileDumpMode bool
	MaxEvtOutputLen int
	BufferFormat    int
	InputFile       string
	NumEvents       int64
}

// ThreadSnapshot is the persisted subset of a threadtable.Record: enough to
// reconstruct thread identity and lineage, not the live FD table or
// pending-args two-phase state, which only make sense mid-capture.
type ThreadSnapshot struct {
	Tid  int64
	Pid  int64
	PPid int64

	Exe         string
	Args        []string
	Cwd         string
	Uid         uint32
	Gid         uint32
	ContainerID string

	CreateTs     int64
	LastAccessTs int64
	Incomplete   bool
}

// ContainerSnapshot is the persisted subset of a containertable.Record.
type ContainerSnapshot struct {
	ID         string
	Name       string
	ImageName  string
	CgroupPath string

	CreateTs     int64
	LastAccessTs int64
}

// CheckpointStore is the narrow façade an Inspector owner uses to persist
// and restore a checkpoint, kept distinct from Database so callers that
// only need one bucket family don't have to reach into bbolt directly.
type CheckpointStore struct {
	db *Database
}

func NewCheckpointStore(db *Database) *CheckpointStore {
	return &CheckpointStore{db: db}
}

func (s *CheckpointStore) Save(c *Checkpoint) error {
	return s.db.SaveCheckpoint(c)
}

// Load returns errdefs.ErrNotFound if no checkpoint was ever saved.
func (s *CheckpointStore) Load() (*Checkpoint, error) {
	return s.db.LoadCheckpoint()
}

func (s *CheckpointStore) SaveThread(t *ThreadSnapshot) error {
	return s.db.SaveThread(t)
}

func (s *CheckpointStore) DeleteThread(tid int64) error {
	return s.db.DeleteThread(tid)
}

func (s *CheckpointStore) WalkThreads(cb func(t *ThreadSnapshot) error) error {
	return s.db.WalkThreads(cb)
}

func (s *CheckpointStore) CleanupThreads() error {
	return s.db.CleanupThreads()
}

func (s *CheckpointStore) SaveContainer(c *ContainerSnapshot) error {
	return s.db.SaveContainer(c)
}

func (s *CheckpointStore) DeleteContainer(id string) error {
	return s.db.DeleteContainer(id)
}

func (s *CheckpointStore) WalkContainers(cb func(c *ContainerSnapshot) error) error {
	return s.db.WalkContainers(cb)
}

func (s *CheckpointStore) CleanupContainers() error {
	return s.db.CleanupContainers()
}
