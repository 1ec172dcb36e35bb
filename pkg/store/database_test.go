package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydusdev/sysinspect/pkg/errdefs"
)

func newTestDatabase(t *testing.T) *Database {
	rootDir := t.TempDir()
	db, err := NewDatabase(rootDir)
	require.Nil(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCheckpointSaveLoad(t *testing.T) {
	db := newTestDatabase(t)

	_, err := db.LoadCheckpoint()
	assert.True(t, errdefs.IsNotFound(err))

	c := &Checkpoint{
		FilterExpr: "evt.type = open",
		Snaplen:    4096,
		InputFile:  "trace.cap",
		NumEvents:  42,
	}
	require.Nil(t, db.SaveCheckpoint(c))

	got, err := db.LoadCheckpoint()
	require.Nil(t, err)
	assert.Equal(t, c.FilterExpr, got.FilterExpr)
	assert.Equal(t, c.Snaplen, got.Snaplen)
	assert.Equal(t, c.NumEvents, got.NumEvents)

	// overwriting replaces, not merges
	require.Nil(t, db.SaveCheckpoint(&Checkpoint{FilterExpr: "evt.type = close"}))
	got, err = db.LoadCheckpoint()
	require.Nil(t, err)
	assert.Equal(t, "evt.type = close", got.FilterExpr)
	assert.Equal(t, int64(0), got.Snaplen)
}

func TestThreadSnapshotRoundTrip(t *testing.T) {
	db := newTestDatabase(t)

	t1 := &ThreadSnapshot{Tid: 100, Pid: 100, Exe: "/bin/sh"}
	t2 := &ThreadSnapshot{Tid: 101, Pid: 100, PPid: 100, Exe: "/bin/sh", Incomplete: true}
	require.Nil(t, db.SaveThread(t1))
	require.Nil(t, db.SaveThread(t2))

	seen := map[int64]*ThreadSnapshot{}
	require.Nil(t, db.WalkThreads(func(t *ThreadSnapshot) error {
		seen[t.Tid] = t
		return nil
	}))
	require.Len(t, seen, 2)
	assert.Equal(t, "/bin/sh", seen[100].Exe)
	assert.True(t, seen[101].Incomplete)

	require.Nil(t, db.DeleteThread(100))
	seen = map[int64]*ThreadSnapshot{}
	require.Nil(t, db.WalkThreads(func(t *ThreadSnapshot) error {
		seen[t.Tid] = t
		return nil
	}))
	require.Len(t, seen, 1)

	require.Nil(t, db.CleanupThreads())
	seen = map[int64]*ThreadSnapshot{}
	require.Nil(t, db.WalkThreads(func(t *ThreadSnapshot) error {
		seen[t.Tid] = t
		return nil
	}))
	require.Len(t, seen, 0)
}

func TestContainerSnapshotRoundTrip(t *testing.T) {
	db := newTestDatabase(t)

	c1 := &ContainerSnapshot{ID: "c1", Name: "web", ImageName: "nginx:latest"}
	c2 := &ContainerSnapshot{ID: "c2", Name: "db", ImageName: "postgres:15"}
	require.Nil(t, db.SaveContainer(c1))
	require.Nil(t, db.SaveContainer(c2))

	ids := map[string]string{}
	require.Nil(t, db.WalkContainers(func(c *ContainerSnapshot) error {
		ids[c.ID] = c.ImageName
		return nil
	}))
	assert.Equal(t, "nginx:latest", ids["c1"])
	assert.Equal(t, "postgres:15", ids["c2"])

	require.Nil(t, db.DeleteContainer("c1"))
	ids = map[string]string{}
	require.Nil(t, db.WalkContainers(func(c *ContainerSnapshot) error {
		ids[c.ID] = c.ImageName
		return nil
	}))
	require.Len(t, ids, 1)
}

func TestCheckpointStoreFacade(t *testing.T) {
	db := newTestDatabase(t)
	s := NewCheckpointStore(db)

	require.Nil(t, s.Save(&Checkpoint{FilterExpr: "evt.type = connect"}))
	got, err := s.Load()
	require.Nil(t, err)
	assert.Equal(t, "evt.type = connect", got.FilterExpr)
}

func TestNewDatabaseCreatesRootDir(t *testing.T) {
	rootDir := t.TempDir() + "/nested/dir"
	db, err := NewDatabase(rootDir)
	require.Nil(t, err)
	defer db.Close()

	_, err = os.Stat(rootDir)
	require.Nil(t, err)
}
