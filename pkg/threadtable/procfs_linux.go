/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package threadtable

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// QueryProc synthesizes a Record for tid from /proc, best-effort, following
// the bufio.Scanner + strings.Fields field-switch idiom used throughout the
// pack for /proc/<pid>/status parsing. Any single field that fails to
// resolve is left zero-valued rather than aborting; a record whose Exe can't
// be resolved is marked Incomplete here, consistent with spec section 4.6's
// tie-break rule (prefer parent-derived info, else "thread unknown" with
// only tid and timestamp filled).
func QueryProc(tid int64, ts int64) (*Record, error) {
	rec := NewRecord(tid, ts, lockSlots())

	statusPath := fmt.Sprintf("/proc/%d/status", tid)
	f, err := os.Open(statusPath)
	if err != nil {
		rec.Incomplete = true
		return rec, nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch strings.TrimSuffix(fields[0], ":") {
		case "Name":
			rec.Exe = strings.Join(fields[1:], " ")
		case "PPid":
			if ppid, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
				rec.PPid = ppid
			}
		case "Tgid":
			if pid, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
				rec.Pid = pid
			}
		case "Uid":
			if uid, err := strconv.ParseUint(fields[1], 10, 32); err == nil {
				rec.Uid = uint32(uid)
			}
		case "Gid":
			if gid, err := strconv.ParseUint(fields[1], 10, 32); err == nil {
				rec.Gid = uint32(gid)
			}
		}
	}

	if cwd, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", tid)); err == nil {
		rec.Cwd = cwd
	}
	if exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", tid)); err == nil {
		rec.Exe = exe
	}
	if cmdline, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", tid)); err == nil {
		parts := strings.Split(strings.TrimRight(string(cmdline), "\x00"), "\x00")
		var args []string
		for _, p := range parts {
			if p != "" {
				args = append(args, p)
			}
		}
		rec.Args = args
	}

	if rec.Exe == "" {
		rec.Incomplete = true
	}

	return rec, nil
}
