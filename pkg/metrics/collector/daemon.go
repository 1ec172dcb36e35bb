/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package collector

import "github.com/nydusdev/sysinspect/pkg/metrics/data"

// LifecycleEventCollector records one inspector lifecycle transition into
// the InspectorLifecycleEvents counter.
type LifecycleEventCollector struct {
	event string
}

func (d *LifecycleEventCollector) Collect() {
	data.InspectorLifecycleEvents.WithLabelValues(d.event).Inc()
}
