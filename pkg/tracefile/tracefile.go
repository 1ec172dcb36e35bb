/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package tracefile implements the on-disk capture file container: a
// magic + version header, one-shot interface/user/group snapshot blocks,
// and then the same raw frame stream pkg/rawevent already knows how to
// decode (spec's trace file format, reusing the live wire format for the
// event section so pkg/capture.FileSource needs no special-casing once
// past the header).
package tracefile

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/nydusdev/sysinspect/pkg/errdefs"
	"github.com/nydusdev/sysinspect/pkg/hostinfo"
)

// Magic identifies a sysinspect trace file; Version is bumped on any
// incompatible header or block-format change.
const (
	Magic   uint32 = 0x53594e53 // "SYNS"
	Version uint16 = 1
)

// Header is the fixed portion at the start of every trace file.
type Header struct {
	Magic   uint32
	Version uint16
}

// WriteHeader writes the magic/version prefix, then the interface, user,
// and group snapshot blocks captured at import time. The event frame
// stream follows immediately after and is written by the caller via
// pkg/rawevent.Encode.
func WriteHeader(w io.Writer, hosts *hostinfo.Registry) error {
	var hdr [6]byte
	binary.LittleEndian.PutUint32(hdr[0:4], Magic)
	binary.LittleEndian.PutUint16(hdr[4:6], Version)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	if err := writeIPv4Block(w, hosts.GetIPv4List()); err != nil {
		return err
	}
	if err := writeUsersBlock(w, hosts.Users()); err != nil {
		return err
	}
	return writeGroupsBlock(w, hosts.Groups())
}

// ReadHeader validates the magic/version prefix and populates hosts from
// the following interface/user/group blocks. Returns
// errdefs.ErrSourceDecode if the magic doesn't match or the version is
// newer than this build understands.
func ReadHeader(r io.Reader, hosts *hostinfo.Registry) error {
	var hdr [6]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return errors.Wrap(errdefs.ErrSourceDecode, "read trace file header")
	}
	magic := binary.LittleEndian.Uint32(hdr[0:4])
	version := binary.LittleEndian.Uint16(hdr[4:6])
	if magic != Magic {
		return errors.Wrap(errdefs.ErrSourceDecode, "bad trace file magic")
	}
	if version > Version {
		return errors.Wrapf(errdefs.ErrSourceDecode, "unsupported trace file version %d", version)
	}

	ipv4, err := readIPv4Block(r)
	if err != nil {
		return err
	}
	users, err := readUsersBlock(r)
	if err != nil {
		return err
	}
	groups, err := readGroupsBlock(r)
	if err != nil {
		return err
	}

	hosts.ImportInterfaces(ipv4, nil)
	importUsers(hosts, users)
	importGroups(hosts, groups)
	return nil
}

// Open is a convenience wrapper: open path, read and validate the
// header/snapshot blocks into hosts, and return a buffered reader
// positioned at the start of the frame stream.
func Open(path string, hosts *hostinfo.Registry) (*os.File, *bufio.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(errdefs.ErrSourceOpen, err.Error())
	}
	r := bufio.NewReaderSize(f, 64*1024)
	if err := ReadHeader(r, hosts); err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, r, nil
}
