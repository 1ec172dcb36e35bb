/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package tracefile

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydusdev/sysinspect/pkg/errdefs"
	"github.com/nydusdev/sysinspect/pkg/hostinfo"
)

func TestWriteReadHeaderRoundTrip(t *testing.T) {
	hosts := hostinfo.NewRegistry()
	hosts.ImportInterfaces([]hostinfo.IPv4Addr{
		{Name: "eth0", Addr: net.IPv4(10, 0, 0, 1), Netmask: net.CIDRMask(24, 32)},
	}, nil)
	hosts.SetUsers(map[uint32]hostinfo.UserRecord{0: {UID: 0, GID: 0, Name: "root", Home: "/root", Shell: "/bin/bash"}})
	hosts.SetGroups(map[uint32]hostinfo.GroupRecord{0: {GID: 0, Name: "root"}})

	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, hosts))

	readBack := hostinfo.NewRegistry()
	require.NoError(t, ReadHeader(&buf, readBack))

	ifaces := readBack.GetIPv4List()
	require.Len(t, ifaces, 1)
	assert.Equal(t, "eth0", ifaces[0].Name)

	u, ok := readBack.User(0)
	require.True(t, ok)
	assert.Equal(t, "root", u.Name)

	g, ok := readBack.Group(0)
	require.True(t, ok)
	assert.Equal(t, "root", g.Name)
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBufferString("not a trace file at all")
	err := ReadHeader(buf, hostinfo.NewRegistry())
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrSourceDecode)
}
