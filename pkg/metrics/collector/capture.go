/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package collector

import (
	"github.com/sirupsen/logrus"

	"github.com/nydusdev/sysinspect/pkg/metrics/data"
)

// CaptureMetricsSource is the narrow slice of *inspector.Inspector this
// collector needs, kept as an interface so tests can fake it without
// standing up a real capture.
type CaptureMetricsSource interface {
	GetNumEvents() int64
	GetThreadTableSize() int
	GetContainerTableSize() int
	GetReadProgress() (float64, error)
}

// CaptureMetricsCollector snapshots one inspector's running counters into
// the process-wide prometheus registry on each Collect call.
type CaptureMetricsCollector struct {
	Source  CaptureMetricsSource
	Dropped uint64
}

func (c *CaptureMetricsCollector) Collect() {
	if c.Source == nil {
		logrus.Warn("can not collect capture metrics: source is nil")
		return
	}

	data.EventsProcessed.Set(float64(c.Source.GetNumEvents()))
	data.EventsDropped.Set(float64(c.Dropped))
	data.ThreadTableSize.Set(float64(c.Source.GetThreadTableSize()))
	data.ContainerTableSize.Set(float64(c.Source.GetContainerTableSize()))

	if progress, err := c.Source.GetReadProgress(); err == nil {
		data.ReadProgress.Set(progress)
	}
}
