/*
 * Copyright (c) 2021. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package registry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nydusdev/sysinspect/pkg/metrics/data"
)

var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		data.EventsProcessed,
		data.EventsDropped,
		data.ThreadTableSize,
		data.ContainerTableSize,
		data.ReadProgress,
		data.InspectorLifecycleEvents,
		data.CPUUsage,
		data.MemoryUsage,
		data.CPUSystem,
		data.CPUUser,
		data.Fds,
		data.RunTime,
		data.Thread,
	)
}
