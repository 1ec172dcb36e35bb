/*
 * Copyright (c) 2021. Alibaba Cloud. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package data

import "github.com/prometheus/client_golang/prometheus"

// These are Gauges, not Counters, even for monotonically increasing
// quantities: the collector snapshots an inspector's own cumulative
// counters (GetNumEvents, capture.Stats.Dropped, ...) on each tick rather
// than observing deltas, the same snapshot-gauge idiom the teacher uses
// for its own daemon-reported counts.
var (
	EventsProcessed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sysinspect_events_processed_total",
			Help: "Events returned by Next after passing the filter gate.",
		},
	)

	EventsDropped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sysinspect_events_dropped_total",
			Help: "Raw frames dropped by the capture source before reaching the parser.",
		},
	)

	ThreadTableSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sysinspect_thread_table_size",
			Help: "Number of live thread records.",
		},
	)

	ContainerTableSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sysinspect_container_table_size",
			Help: "Number of live container records.",
		},
	)

	ReadProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sysinspect_file_read_progress_ratio",
			Help: "Fraction of the trace file consumed so far, 0 for live captures.",
		},
	)
)
