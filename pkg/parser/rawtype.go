/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package parser

import "github.com/nydusdev/sysinspect/pkg/sysevent"

// Raw wire type codes pair an enter and an exit code for every two-phase
// syscall, following the sysdig/libscap convention this design is modeled
// on: rawType = typeCode*2 for the enter half, +1 for the exit half. A
// single-phase event (exit/exit_group, meta events) only ever uses the
// enter slot.
func decodeRawType(raw uint16) (sysevent.Type, sysevent.Direction) {
	t := sysevent.Type(raw / 2)
	if int(t) >= typeCount {
		return sysevent.TypeUnknown, sysevent.DirectionEnter
	}
	if raw%2 == 1 {
		return t, sysevent.DirectionExit
	}
	return t, sysevent.DirectionEnter
}

// EncodeRawType is the inverse of decodeRawType, used by test fixtures
// constructing raw frames.
func EncodeRawType(t sysevent.Type, d sysevent.Direction) uint16 {
	base := uint16(t) * 2
	if d == sysevent.DirectionExit {
		return base + 1
	}
	return base
}
