/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package data

import "github.com/prometheus/client_golang/prometheus"

var eventLabel = "event"

var (
	InspectorLifecycleEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sysinspect_lifecycle_events_total",
			Help: "Inspector state transitions (opened, closed, paused, resumed).",
		},
		[]string{eventLabel},
	)
)
