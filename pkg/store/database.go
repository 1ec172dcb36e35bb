/*
 * Copyright (c) 2021. Ant Financial. All rights reserved.
  * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
*/

// Package store implements an opt-in, bbolt-backed checkpoint for an
// Inspector: its config (filter expression, snaplen, buffer format, ...)
// plus a snapshot of its thread and container tables, so a replaying
// consumer can resume roughly where a previous run left off. Nothing in
// pkg/inspector requires this -- Next() never touches pkg/store -- it is
// wired in as an optional side door, the way the teacher's pkg/store
// persists daemon/instance state alongside, not inside, the hot path.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/nydusdev/sysinspect/pkg/errdefs"
)

const databaseFileName = "sysinspect.db"

// Bucket layout:
//	- v1:
//		- config     (single key "checkpoint" -> Checkpoint JSON)
//		- threads    (tid string -> ThreadSnapshot JSON)
//		- containers (id string -> ContainerSnapshot JSON)
var (
	v1RootBucket    = []byte("v1")
	configBucket    = []byte("config")
	threadsBucket   = []byte("threads")
	containerBucket = []byte("containers")

	checkpointKey = "checkpoint"
)

// Database is the bbolt handle backing one checkpoint file.
type Database struct {
	db *bolt.DB
}

// NewDatabase creates or opens the checkpoint file under rootDir.
func NewDatabase(rootDir string) (*Database, error) {
	f := filepath.Join(rootDir, databaseFileName)
	if err := ensureDirectory(filepath.Dir(f)); err != nil {
		return nil, err
	}

	opts := bolt.Options{Timeout: time.Second * 4}

	db, err := bolt.Open(f, 0600, &opts)
	if err != nil {
		return nil, err
	}
	d := &Database{db: db}
	if err := d.initDatabase(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize checkpoint database")
	}
	return d, nil
}

func ensureDirectory(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0700)
	}

	return nil
}

func getConfigBucket(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket(v1RootBucket).Bucket(configBucket)
}

func getThreadsBucket(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket(v1RootBucket).Bucket(threadsBucket)
}

func getContainersBucket(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket(v1RootBucket).Bucket(containerBucket)
}

func putObject(bucket *bolt.Bucket, key string, obj interface{}) error {
	keyBytes := []byte(key)

	value, err := json.Marshal(obj)
	if err != nil {
		return errors.Wrapf(err, "marshal key %s", key)
	}

	if err := bucket.Put(keyBytes, value); err != nil {
		return errors.Wrapf(err, "put key %s", key)
	}

	return nil
}

// A basic wrapper to retrieve an object from a bucket.
func getObject(bucket *bolt.Bucket, key string, obj interface{}) error {
	if obj == nil {
		return errors.New("getObject: obj must not be nil")
	}

	value := bucket.Get([]byte(key))
	if value == nil {
		return errdefs.ErrNotFound
	}

	if err := json.Unmarshal(value, obj); err != nil {
		return errors.Wrapf(err, "unmarshal %s", key)
	}

	return nil
}

func (db *Database) initDatabase() error {
	return db.db.Update(func(tx *bolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists(v1RootBucket)
		if err != nil {
			return err
		}

		if _, err := bk.CreateBucketIfNotExists(configBucket); err != nil {
			return errors.Wrapf(err, "bucket %s", configBucket)
		}
		if _, err := bk.CreateBucketIfNotExists(threadsBucket); err != nil {
			return errors.Wrapf(err, "bucket %s", threadsBucket)
		}
		if _, err := bk.CreateBucketIfNotExists(containerBucket); err != nil {
			return errors.Wrapf(err, "bucket %s", containerBucket)
		}

		return nil
	})
}

func (db *Database) Close() error {
	err := db.db.Close()
	if err != nil {
		return errors.Wrap(err, "failed to close checkpoint database")
	}

	return nil
}

// SaveCheckpoint overwrites the single stored Checkpoint.
func (db *Database) SaveCheckpoint(c *Checkpoint) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		return putObject(getConfigBucket(tx), checkpointKey, c)
	})
}

// LoadCheckpoint returns errdefs.ErrNotFound if no checkpoint was ever saved.
func (db *Database) LoadCheckpoint() (*Checkpoint, error) {
	var c Checkpoint
	err := db.db.View(func(tx *bolt.Tx) error {
		return getObject(getConfigBucket(tx), checkpointKey, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *Database) SaveThread(t *ThreadSnapshot) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		return putObject(getThreadsBucket(tx), tidKey(t.Tid), t)
	})
}

func (db *Database) DeleteThread(tid int64) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		return getThreadsBucket(tx).Delete([]byte(tidKey(tid)))
	})
}

func (db *Database) CleanupThreads() error {
	return db.db.Update(func(tx *bolt.Tx) error {
		bucket := getThreadsBucket(tx)
		return bucket.ForEach(func(k, _ []byte) error {
			return bucket.Delete(k)
		})
	})
}

func (db *Database) WalkThreads(cb func(t *ThreadSnapshot) error) error {
	return db.db.View(func(tx *bolt.Tx) error {
		return getThreadsBucket(tx).ForEach(func(key, value []byte) error {
			t := &ThreadSnapshot{}
			if err := json.Unmarshal(value, t); err != nil {
				return errors.Wrapf(err, "unmarshal %s", key)
			}
			return cb(t)
		})
	})
}

func (db *Database) SaveContainer(c *ContainerSnapshot) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		return putObject(getContainersBucket(tx), c.ID, c)
	})
}

func (db *Database) DeleteContainer(id string) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		return getContainersBucket(tx).Delete([]byte(id))
	})
}

func (db *Database) CleanupContainers() error {
	return db.db.Update(func(tx *bolt.Tx) error {
		bucket := getContainersBucket(tx)
		return bucket.ForEach(func(k, _ []byte) error {
			return bucket.Delete(k)
		})
	})
}

func (db *Database) WalkContainers(cb func(c *ContainerSnapshot) error) error {
	return db.db.View(func(tx *bolt.Tx) error {
		return getContainersBucket(tx).ForEach(func(key, value []byte) error {
			c := &ContainerSnapshot{}
			if err := json.Unmarshal(value, c); err != nil {
				return errors.Wrapf(err, "unmarshal %s", key)
			}
			return cb(c)
		})
	})
}

func tidKey(tid int64) string {
	return strconv.FormatInt(tid, 10)
}
