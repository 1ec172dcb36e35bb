/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package collector

// Collector is implemented by every metrics source this package knows how
// to pull from. Kept minimal so pkg/metrics/serve.go can drive an
// arbitrary list of collectors on one timer without depending on each
// one's concrete type.
type Collector interface {
	Collect()
}

// CollectLifecycleEvent records one inspector state transition (e.g.
// "opened_live", "closed", "paused", "resumed").
func CollectLifecycleEvent(event string) {
	(&LifecycleEventCollector{event: event}).Collect()
}
