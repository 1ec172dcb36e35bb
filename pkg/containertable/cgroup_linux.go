/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package containertable

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"
)

// containerIDPattern matches a 64-hex-char container id anywhere in a
// cgroup path component, which is how every major runtime (containerd,
// docker, cri-o) names per-container cgroup scopes.
var containerIDPattern = regexp.MustCompile(`[0-9a-f]{64}`)

// ResolveFromPid reads /proc/<pid>/cgroup and, if it can find a container
// id in any of the hierarchy's paths, returns a Record with that id. The
// pattern here -- bufio.Scanner line-by-line, bail out on the first usable
// match -- follows the same /proc parsing idiom used in pkg/threadtable's
// procfs_linux.go and pkg/hostinfo's /etc parsers.
func ResolveFromPid(pid int64) (*Record, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/cgroup", pid))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		cgroupPath := parts[2]
		if id := containerIDPattern.FindString(path.Base(cgroupPath)); id != "" {
			return &Record{ID: id, CgroupPath: cgroupPath}, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}
