/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package inspector

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Option configures an Inspector at construction time, following the
// teacher's NewDaemonOpt pattern (pkg/daemon/config.go): a function over
// the not-yet-returned value, applied in order by New, any of which can
// fail the whole construction.
type Option func(i *Inspector) error

// WithLogger installs logger instead of logrus.StandardLogger().
func WithLogger(logger *logrus.Logger) Option {
	return func(i *Inspector) error {
		if logger != nil {
			i.logger = logger
		}
		return nil
	}
}

// WithThreadTableMax overrides the default thread table capacity (spec
// section 4.4's size cap).
func WithThreadTableMax(max int) Option {
	return func(i *Inspector) error {
		if max > 0 {
			i.threadTableMax = max
		}
		return nil
	}
}

// WithContainerTableMax overrides the default container table capacity.
func WithContainerTableMax(max int) Option {
	return func(i *Inspector) error {
		if max > 0 {
			i.containerTableMax = max
		}
		return nil
	}
}

// WithThreadTimeout overrides the inactivity window before sweep_inactive
// evicts a thread record.
func WithThreadTimeout(d time.Duration) Option {
	return func(i *Inspector) error {
		if d > 0 {
			i.threadTimeout = d
		}
		return nil
	}
}

// WithContainerTimeout overrides the inactivity window before
// sweep_inactive evicts a container record.
func WithContainerTimeout(d time.Duration) Option {
	return func(i *Inspector) error {
		if d > 0 {
			i.containerTimeout = d
		}
		return nil
	}
}

// WithSweepEveryNEvents overrides how often Next() runs sweep_inactive
// (spec section 4.9 step 8).
func WithSweepEveryNEvents(n int64) Option {
	return func(i *Inspector) error {
		if n > 0 {
			i.sweepEveryNEvents = n
		}
		return nil
	}
}

// WithMaxEvtOutputLen sets the initial SetMaxEvtOutputLen value.
func WithMaxEvtOutputLen(n int) Option {
	return func(i *Inspector) error {
		if n > 0 {
			i.maxEvtOutputLen = n
		}
		return nil
	}
}

// WithImportUsers sets the initial SetImportUsers value.
func WithImportUsers(enabled bool) Option {
	return func(i *Inspector) error {
		i.importUsers = enabled
		return nil
	}
}

// WithFatfileDumpMode sets the initial SetFatfileDumpMode value.
func WithFatfileDumpMode(enabled bool) Option {
	return func(i *Inspector) error {
		i.fatfileMode = enabled
		return nil
	}
}
