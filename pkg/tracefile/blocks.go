/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package tracefile

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/pkg/errors"

	"github.com/nydusdev/sysinspect/pkg/errdefs"
	"github.com/nydusdev/sysinspect/pkg/hostinfo"
)

func importUsers(hosts *hostinfo.Registry, users []hostinfo.UserRecord) {
	m := make(map[uint32]hostinfo.UserRecord, len(users))
	for _, u := range users {
		m[u.UID] = u
	}
	hosts.SetUsers(m)
}

func importGroups(hosts *hostinfo.Registry, groups []hostinfo.GroupRecord) {
	m := make(map[uint32]hostinfo.GroupRecord, len(groups))
	for _, g := range groups {
		m[g.GID] = g
	}
	hosts.SetGroups(m)
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
	}
	return string(buf), nil
}

func writeIPv4Block(w io.Writer, ifaces []hostinfo.IPv4Addr) error {
	if err := writeUint32(w, uint32(len(ifaces))); err != nil {
		return err
	}
	for _, iface := range ifaces {
		if err := writeString(w, iface.Name); err != nil {
			return err
		}
		ip4 := iface.Addr.To4()
		if ip4 == nil {
			ip4 = net.IPv4zero.To4()
		}
		if _, err := w.Write(ip4); err != nil {
			return err
		}
		mask := iface.Netmask
		if len(mask) != net.IPv4len {
			mask = net.CIDRMask(0, 32)
		}
		if _, err := w.Write(mask); err != nil {
			return err
		}
	}
	return nil
}

func readIPv4Block(r io.Reader) ([]hostinfo.IPv4Addr, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrap(errdefs.ErrSourceDecode, "read ipv4 block count")
	}
	out := make([]hostinfo.IPv4Addr, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, errors.Wrap(errdefs.ErrSourceDecode, "read ipv4 iface name")
		}
		addr := make(net.IP, net.IPv4len)
		if _, err := io.ReadFull(r, addr); err != nil {
			return nil, errors.Wrap(errdefs.ErrSourceDecode, "read ipv4 addr")
		}
		mask := make(net.IPMask, net.IPv4len)
		if _, err := io.ReadFull(r, mask); err != nil {
			return nil, errors.Wrap(errdefs.ErrSourceDecode, "read ipv4 mask")
		}
		out = append(out, hostinfo.IPv4Addr{Name: name, Addr: addr, Netmask: mask})
	}
	return out, nil
}

func writeUsersBlock(w io.Writer, users map[uint32]hostinfo.UserRecord) error {
	if err := writeUint32(w, uint32(len(users))); err != nil {
		return err
	}
	for _, u := range users {
		if err := writeUint32(w, u.UID); err != nil {
			return err
		}
		if err := writeUint32(w, u.GID); err != nil {
			return err
		}
		if err := writeString(w, u.Name); err != nil {
			return err
		}
		if err := writeString(w, u.Home); err != nil {
			return err
		}
		if err := writeString(w, u.Shell); err != nil {
			return err
		}
	}
	return nil
}

func readUsersBlock(r io.Reader) ([]hostinfo.UserRecord, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrap(errdefs.ErrSourceDecode, "read users block count")
	}
	out := make([]hostinfo.UserRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		uid, err := readUint32(r)
		if err != nil {
			return nil, errors.Wrap(errdefs.ErrSourceDecode, "read user uid")
		}
		gid, err := readUint32(r)
		if err != nil {
			return nil, errors.Wrap(errdefs.ErrSourceDecode, "read user gid")
		}
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		home, err := readString(r)
		if err != nil {
			return nil, err
		}
		shell, err := readString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, hostinfo.UserRecord{UID: uid, GID: gid, Name: name, Home: home, Shell: shell})
	}
	return out, nil
}

func writeGroupsBlock(w io.Writer, groups map[uint32]hostinfo.GroupRecord) error {
	if err := writeUint32(w, uint32(len(groups))); err != nil {
		return err
	}
	for _, g := range groups {
		if err := writeUint32(w, g.GID); err != nil {
			return err
		}
		if err := writeString(w, g.Name); err != nil {
			return err
		}
	}
	return nil
}

func readGroupsBlock(r io.Reader) ([]hostinfo.GroupRecord, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrap(errdefs.ErrSourceDecode, "read groups block count")
	}
	out := make([]hostinfo.GroupRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		gid, err := readUint32(r)
		if err != nil {
			return nil, errors.Wrap(errdefs.ErrSourceDecode, "read group gid")
		}
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, hostinfo.GroupRecord{GID: gid, Name: name})
	}
	return out, nil
}
