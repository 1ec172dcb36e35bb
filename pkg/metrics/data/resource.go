/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package data

import "github.com/prometheus/client_golang/prometheus"

var (
	CPUUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sysinspect_cpu_usage_percent",
			Help: "CPU usage percent of the inspecting process.",
		},
	)

	MemoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sysinspect_memory_usage_kilobytes",
			Help: "Memory usage (RSS) of the inspecting process.",
		},
	)

	CPUSystem = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sysinspect_cpu_system_time_seconds",
			Help: "CPU time of the inspecting process in system mode.",
		},
	)

	CPUUser = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sysinspect_cpu_user_time_seconds",
			Help: "CPU time of the inspecting process in user mode.",
		},
	)

	Fds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sysinspect_fd_counts",
			Help: "Open file descriptor count of the inspecting process.",
		},
	)

	RunTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sysinspect_run_time_seconds",
			Help: "Run time of the inspecting process since start.",
		},
	)

	Thread = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sysinspect_os_thread_counts",
			Help: "OS thread count of the inspecting process.",
		},
	)
)
