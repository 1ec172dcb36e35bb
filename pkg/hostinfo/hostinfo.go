/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package hostinfo holds the read-mostly tables populated once at capture
// import: network interfaces, users and groups (C2 in the design). Mutation
// is confined to import time and explicit caller requests, per spec
// section 4.2.
package hostinfo

import (
	"bufio"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// IPv4Addr and IPv6Addr describe one configured network interface.
type IPv4Addr struct {
	Name    string
	Addr    net.IP
	Netmask net.IPMask
}

type IPv6Addr struct {
	Name string
	Addr net.IP
}

// UserRecord and GroupRecord are the /etc/passwd and /etc/group rows kept
// when import_users is enabled.
type UserRecord struct {
	UID   uint32
	GID   uint32
	Name  string
	Home  string
	Shell string
}

type GroupRecord struct {
	GID  uint32
	Name string
}

// Registry is the read-mostly host information table. Safe for concurrent
// reads; writes only happen during Import* calls, which the inspector
// serializes.
type Registry struct {
	mu    sync.RWMutex
	ipv4  []IPv4Addr
	ipv6  []IPv6Addr
	users map[uint32]UserRecord
	groups map[uint32]GroupRecord
}

func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[uint32]UserRecord),
		groups: make(map[uint32]GroupRecord),
	}
}

// ImportInterfaces replaces the interface lists wholesale -- used for the
// one-shot import at capture open.
func (r *Registry) ImportInterfaces(ipv4 []IPv4Addr, ipv6 []IPv6Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ipv4 = ipv4
	r.ipv6 = ipv6
}

// ImportIPv4 appends one interface, used by explicit import calls after
// capture open (spec: "may be appended to by explicit import calls").
func (r *Registry) ImportIPv4(iface IPv4Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ipv4 = append(r.ipv4, iface)
}

func (r *Registry) GetIPv4List() []IPv4Addr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]IPv4Addr, len(r.ipv4))
	copy(out, r.ipv4)
	return out
}

func (r *Registry) GetIPv6List() []IPv6Addr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]IPv6Addr, len(r.ipv6))
	copy(out, r.ipv6)
	return out
}

// BestMatchIPv4 finds the interface whose network contains ip, scanning
// linearly -- the interface count is small so an index is not worth it
// (spec: "O(n) for best-matching interface (n is small)").
func (r *Registry) BestMatchIPv4(ip net.IP) (IPv4Addr, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, iface := range r.ipv4 {
		network := net.IPNet{IP: iface.Addr.Mask(iface.Netmask), Mask: iface.Netmask}
		if network.Contains(ip) {
			return iface, true
		}
	}
	return IPv4Addr{}, false
}

// SetUsers installs a pre-built user table, used when importing the
// snapshot embedded in a trace file rather than reading the live host.
func (r *Registry) SetUsers(users map[uint32]UserRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = users
}

// SetGroups is SetUsers' group-table counterpart.
func (r *Registry) SetGroups(groups map[uint32]GroupRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = groups
}

func (r *Registry) ImportUsersFromHost() error {
	users, err := parsePasswd("/etc/passwd")
	if err != nil {
		return errors.Wrap(err, "import users")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = users
	return nil
}

func (r *Registry) ImportGroupsFromHost() error {
	groups, err := parseGroup("/etc/group")
	if err != nil {
		return errors.Wrap(err, "import groups")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = groups
	return nil
}

func (r *Registry) Users() map[uint32]UserRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uint32]UserRecord, len(r.users))
	for k, v := range r.users {
		out[k] = v
	}
	return out
}

func (r *Registry) Groups() map[uint32]GroupRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uint32]GroupRecord, len(r.groups))
	for k, v := range r.groups {
		out[k] = v
	}
	return out
}

func (r *Registry) User(uid uint32) (UserRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[uid]
	return u, ok
}

func (r *Registry) Group(gid uint32) (GroupRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[gid]
	return g, ok
}

// parsePasswd and parseGroup follow the bufio.Scanner line-by-line idiom
// used throughout the pack's /proc and /etc parsers (e.g. psgo's
// proc/status.go): read line by line, strings.Split on ':', ignore
// malformed lines rather than aborting the whole import.
func parsePasswd(path string) (map[uint32]UserRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[uint32]UserRecord)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 7 {
			continue
		}
		uid, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			continue
		}
		gid, err := strconv.ParseUint(fields[3], 10, 32)
		if err != nil {
			continue
		}
		out[uint32(uid)] = UserRecord{
			UID:   uint32(uid),
			GID:   uint32(gid),
			Name:  fields[0],
			Home:  fields[5],
			Shell: fields[6],
		}
	}
	return out, scanner.Err()
}

func parseGroup(path string) (map[uint32]GroupRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[uint32]GroupRecord)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 4 {
			continue
		}
		gid, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			continue
		}
		out[uint32(gid)] = GroupRecord{GID: uint32(gid), Name: fields[0]}
	}
	return out, scanner.Err()
}

// CollectHostInterfaces reads the live machine's interfaces for import_live
// (spec: one-shot import from the host OS in live mode).
func CollectHostInterfaces() ([]IPv4Addr, []IPv6Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, nil, err
	}

	var v4 []IPv4Addr
	var v6 []IPv6Addr
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				v4 = append(v4, IPv4Addr{Name: iface.Name, Addr: ip4, Netmask: ipnet.Mask})
			} else {
				v6 = append(v6, IPv6Addr{Name: iface.Name, Addr: ipnet.IP})
			}
		}
	}

	sort.Slice(v4, func(i, j int) bool { return v4[i].Name < v4[j].Name })
	sort.Slice(v6, func(i, j int) bool { return v6[i].Name < v6[j].Name })

	return v4, v6, nil
}
