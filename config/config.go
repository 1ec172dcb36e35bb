/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package config holds the toml-based configuration for the sysinspect
// command-line tools (cmd/sysinspect-live, cmd/sysinspect-replay). The
// pkg/inspector library itself takes configuration through functional
// options, never through this package -- Config is parsed once at process
// start and translated into inspector.Option values.
package config

import (
	"os"
	"time"

	"github.com/docker/go-units"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

const (
	DefaultLogLevel           string = "info"
	DefaultThreadTableMax     int    = 16384
	DefaultThreadTimeout             = 5 * time.Minute
	DefaultContainerTimeout          = 10 * time.Minute
	DefaultSweepEvery         int64  = 1000
	DefaultLiveTimeoutMs      int64  = 1000
	DefaultMaxEvtOutputLen    int    = 80
	DefaultRolloverMB         int64  = 100
	DefaultCycleWriterFiles   int    = 0
)

// Config is the root of the toml configuration file consumed by the
// cmd/ binaries.
type Config struct {
	RootDir   string          `toml:"-"`
	LogLevel  string          `toml:"log_level"`
	LogDir    string          `toml:"log_dir"`
	LogToStdout bool          `toml:"log_to_stdout"`
	RotateLogMaxSize    int   `toml:"log_rotate_max_size"`
	RotateLogMaxBackups int   `toml:"log_rotate_max_backups"`
	RotateLogMaxAge     int   `toml:"log_rotate_max_age"`
	RotateLogCompress   bool  `toml:"log_rotate_compress"`

	ThreadTableMax      int    `toml:"thread_table_max"`
	ThreadTimeout       string `toml:"thread_timeout"`
	ContainerTimeout    string `toml:"container_timeout"`
	SweepEveryNEvents   int64  `toml:"sweep_every_n_events"`

	ImportUsers  bool   `toml:"import_users"`
	Snaplen      string `toml:"snaplen"`

	MetricsEnabled bool   `toml:"enable_metrics"`
	MetricsAddress string `toml:"metrics_address"`
}

// LoadConfigFile parses a toml configuration file. A missing file is not an
// error -- callers get the zero-value Config and should call
// FillupWithDefaults.
func LoadConfigFile(path string, c *Config) error {
	if path == "" {
		return nil
	}
	tree, err := toml.LoadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to load config file %q", path)
	}
	if err := tree.Unmarshal(c); err != nil {
		return errors.Wrapf(err, "failed to unmarshal config file %q", path)
	}
	return nil
}

// FillupWithDefaults fills zero-valued fields with the package defaults,
// mirroring the teacher's Config.FillupWithDefaults.
func (c *Config) FillupWithDefaults() error {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ThreadTableMax == 0 {
		c.ThreadTableMax = DefaultThreadTableMax
	}
	if c.SweepEveryNEvents == 0 {
		c.SweepEveryNEvents = DefaultSweepEvery
	}
	return nil
}

// ThreadTimeoutDuration parses ThreadTimeout, falling back to the default.
func (c *Config) ThreadTimeoutDuration() (time.Duration, error) {
	if c.ThreadTimeout == "" {
		return DefaultThreadTimeout, nil
	}
	return time.ParseDuration(c.ThreadTimeout)
}

// ContainerTimeoutDuration parses ContainerTimeout, falling back to the
// default.
func (c *Config) ContainerTimeoutDuration() (time.Duration, error) {
	if c.ContainerTimeout == "" {
		return DefaultContainerTimeout, nil
	}
	return time.ParseDuration(c.ContainerTimeout)
}

// SnaplenBytes parses the human-readable Snaplen ("4096", "64KB") using the
// same size-string convention docker/go-units defines for image layer
// sizes; sysinspect reuses it for per-parameter capture length.
func (c *Config) SnaplenBytes() (int64, error) {
	if c.Snaplen == "" {
		return 0, nil
	}
	return units.RAMInBytes(c.Snaplen)
}
