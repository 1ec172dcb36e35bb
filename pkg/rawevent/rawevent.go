/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package rawevent decodes the on-the-wire capture frame format shared by
// live captures and trace files (spec section on the trace file format):
// a fixed header followed by a packed, typed parameter list.
package rawevent

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/nydusdev/sysinspect/pkg/errdefs"
)

// ParamType tags one entry of a raw event's parameter vector.
type ParamType uint8

const (
	ParamFD ParamType = iota
	ParamPID
	ParamPath
	ParamBuffer
	ParamTuple
	ParamUint64
	ParamInt64
	ParamString
	ParamBytes
)

// Tuple is the decoded 5-tuple parameter used by socket syscalls.
type Tuple struct {
	SrcIP   net.IP
	DstIP   net.IP
	SrcPort uint16
	DstPort uint16
	Proto   uint8
}

// Param is one decoded, typed parameter.
type Param struct {
	Type  ParamType
	Value any
}

// headerSize is the fixed-size prefix of every frame: length(4) + cpu(4) +
// type(2) + nparams(2) + ts(8).
const headerSize = 4 + 4 + 2 + 2 + 8

// Header is the fixed portion of a raw frame.
type Header struct {
	Length  uint32
	CPU     int32
	Type    uint16
	NParams uint16
	Ts      int64
}

// Frame is one fully decoded raw event: header plus parameter vector.
type Frame struct {
	Header
	Params []Param
}

// Decode reads exactly one frame from r. Returns errdefs.ErrSourceDecode
// (wrapped with context) on any structural corruption; returns io.EOF
// verbatim when r is exhausted before a new frame begins.
func Decode(r io.Reader) (*Frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, errdefs.ErrSourceDecode
		}
		return nil, err
	}

	f := &Frame{
		Header: Header{
			Length:  binary.LittleEndian.Uint32(hdr[0:4]),
			CPU:     int32(binary.LittleEndian.Uint32(hdr[4:8])),
			Type:    binary.LittleEndian.Uint16(hdr[8:10]),
			NParams: binary.LittleEndian.Uint16(hdr[10:12]),
			Ts:      int64(binary.LittleEndian.Uint64(hdr[12:20])),
		},
	}

	f.Params = make([]Param, 0, f.NParams)
	for i := uint16(0); i < f.NParams; i++ {
		p, err := decodeParam(r)
		if err != nil {
			return nil, err
		}
		f.Params = append(f.Params, p)
	}

	return f, nil
}

func decodeParam(r io.Reader) (Param, error) {
	var typeAndLen [5]byte
	if _, err := io.ReadFull(r, typeAndLen[:]); err != nil {
		return Param{}, errdefs.ErrSourceDecode
	}
	pt := ParamType(typeAndLen[0])
	plen := binary.LittleEndian.Uint32(typeAndLen[1:5])

	buf := make([]byte, plen)
	if plen > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return Param{}, errdefs.ErrSourceDecode
		}
	}

	switch pt {
	case ParamFD:
		if len(buf) < 4 {
			return Param{}, errdefs.ErrSourceDecode
		}
		return Param{Type: pt, Value: int32(binary.LittleEndian.Uint32(buf))}, nil
	case ParamPID:
		if len(buf) < 8 {
			return Param{}, errdefs.ErrSourceDecode
		}
		return Param{Type: pt, Value: int64(binary.LittleEndian.Uint64(buf))}, nil
	case ParamUint64:
		if len(buf) < 8 {
			return Param{}, errdefs.ErrSourceDecode
		}
		return Param{Type: pt, Value: binary.LittleEndian.Uint64(buf)}, nil
	case ParamInt64:
		if len(buf) < 8 {
			return Param{}, errdefs.ErrSourceDecode
		}
		return Param{Type: pt, Value: int64(binary.LittleEndian.Uint64(buf))}, nil
	case ParamPath, ParamString:
		return Param{Type: pt, Value: string(buf)}, nil
	case ParamBuffer, ParamBytes:
		return Param{Type: pt, Value: buf}, nil
	case ParamTuple:
		t, err := decodeTuple(buf)
		if err != nil {
			return Param{}, err
		}
		return Param{Type: pt, Value: t}, nil
	default:
		// Unknown parameter type: keep the raw bytes so the caller can
		// version-gate (pass through with minimal annotation) instead of
		// failing the whole frame.
		return Param{Type: pt, Value: buf}, nil
	}
}

func decodeTuple(buf []byte) (Tuple, error) {
	// ipv4: 4+4+2+2+1 = 13 bytes; ipv6: 16+16+2+2+1 = 37 bytes.
	switch len(buf) {
	case 13:
		return Tuple{
			SrcIP:   net.IP(buf[0:4]),
			DstIP:   net.IP(buf[4:8]),
			SrcPort: binary.LittleEndian.Uint16(buf[8:10]),
			DstPort: binary.LittleEndian.Uint16(buf[10:12]),
			Proto:   buf[12],
		}, nil
	case 37:
		return Tuple{
			SrcIP:   net.IP(buf[0:16]),
			DstIP:   net.IP(buf[16:32]),
			SrcPort: binary.LittleEndian.Uint16(buf[32:34]),
			DstPort: binary.LittleEndian.Uint16(buf[34:36]),
			Proto:   buf[36],
		}, nil
	default:
		return Tuple{}, errdefs.ErrSourceDecode
	}
}

// Encode writes a frame back to the wire format, used by pkg/dumper and
// pkg/tracefile.
func Encode(w io.Writer, f *Frame) error {
	f.NParams = uint16(len(f.Params))

	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], f.Length)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(f.CPU))
	binary.LittleEndian.PutUint16(hdr[8:10], f.Type)
	binary.LittleEndian.PutUint16(hdr[10:12], f.NParams)
	binary.LittleEndian.PutUint64(hdr[12:20], uint64(f.Ts))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	for _, p := range f.Params {
		if err := encodeParam(w, p); err != nil {
			return err
		}
	}
	return nil
}

func encodeParam(w io.Writer, p Param) error {
	var buf []byte
	switch v := p.Value.(type) {
	case int32:
		buf = make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case int64:
		buf = make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(v))
	case uint64:
		buf = make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, v)
	case string:
		buf = []byte(v)
	case []byte:
		buf = v
	case Tuple:
		buf = encodeTuple(v)
	default:
		buf = nil
	}

	var prefix [5]byte
	prefix[0] = byte(p.Type)
	binary.LittleEndian.PutUint32(prefix[1:5], uint32(len(buf)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	if len(buf) > 0 {
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func encodeTuple(t Tuple) []byte {
	v4 := t.SrcIP.To4() != nil && t.DstIP.To4() != nil
	if v4 {
		buf := make([]byte, 13)
		copy(buf[0:4], t.SrcIP.To4())
		copy(buf[4:8], t.DstIP.To4())
		binary.LittleEndian.PutUint16(buf[8:10], t.SrcPort)
		binary.LittleEndian.PutUint16(buf[10:12], t.DstPort)
		buf[12] = t.Proto
		return buf
	}
	buf := make([]byte, 37)
	copy(buf[0:16], t.SrcIP.To16())
	copy(buf[16:32], t.DstIP.To16())
	binary.LittleEndian.PutUint16(buf[32:34], t.SrcPort)
	binary.LittleEndian.PutUint16(buf[34:36], t.DstPort)
	buf[36] = t.Proto
	return buf
}
