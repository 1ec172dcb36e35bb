/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package collector

import (
	"github.com/sirupsen/logrus"

	"github.com/nydusdev/sysinspect/pkg/metrics/data"
	"github.com/nydusdev/sysinspect/pkg/metrics/tool"
)

// ResourceMetricsCollector tracks the inspecting process's own CPU/memory
// footprint, diffed against the previous sample to report a rate rather
// than a raw cumulative tick count.
type ResourceMetricsCollector struct {
	pid      int
	lastStat *tool.Stat
}

func NewResourceMetricsCollector(pid int) *ResourceMetricsCollector {
	return &ResourceMetricsCollector{pid: pid}
}

func (r *ResourceMetricsCollector) Collect() {
	currentStat, err := tool.GetProcessStat(r.pid)
	if err != nil {
		logrus.WithError(err).Warn("can not get current process stat")
		return
	}
	if r.lastStat == nil {
		r.lastStat = currentStat
		return
	}

	cpuSys := (currentStat.Stime - r.lastStat.Stime) / tool.ClkTck
	cpuUsr := (currentStat.Utime - r.lastStat.Utime) / tool.ClkTck
	total := cpuSys + cpuUsr

	seconds := currentStat.Uptime - r.lastStat.Uptime
	var cpuPercent float64
	if seconds > 0 {
		cpuPercent = (total / seconds) * 100
	}

	memory := currentStat.Rss * tool.PageSize
	runTime := currentStat.Uptime - currentStat.Start/tool.ClkTck

	r.lastStat = currentStat

	data.CPUSystem.Set(tool.FormatFloat64(cpuSys, 2))
	data.CPUUser.Set(tool.FormatFloat64(cpuUsr, 2))
	data.CPUUsage.Set(tool.FormatFloat64(cpuPercent, 2))
	data.MemoryUsage.Set(tool.FormatFloat64(memory/1024, 2))
	data.Fds.Set(currentStat.Fds)
	data.RunTime.Set(tool.FormatFloat64(runTime, 2))
	data.Thread.Set(currentStat.Thread)
}
