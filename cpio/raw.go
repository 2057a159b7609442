// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package cpio

import "bytes"

const (
	// headerLen is the fixed size of a new-ASCII header on the wire:
	// the 6-byte magic followed by thirteen 8-digit hex fields.
	headerLen = 110

	// trailerLen is the size of the terminal record: a header, the
	// 11-byte NUL-terminated trailer name and 3 bytes of padding.
	trailerLen = 124
)

var (
	magicNewc = []byte("070701")
	magicCRC  = []byte("070702")
)

// trailerName marks the end of the archive.
const trailerName = "TRAILER!!!"

// A RawHeader carries the thirteen 32-bit header fields in wire order,
// still uninterpreted: the mode holds both type and permission bits and
// no field has been cross-checked against the others.
type RawHeader struct {
	Checksummed bool // magic was 070702

	Ino       uint32
	Mode      uint32
	UID       uint32
	GID       uint32
	Nlink     uint32
	Mtime     uint32
	Filesize  uint32
	DevMajor  uint32
	DevMinor  uint32
	RDevMajor uint32
	RDevMinor uint32
	Namesize  uint32
	Check     uint32
}

// unmarshal decodes the 110 bytes of buf. offset is the position of the
// header in the stream, used only for error reporting.
//
// Prefixing the header with two '0' digits makes it exactly seven
// 16-digit groups, so the wide kernel covers magic and fields alike.
func (rh *RawHeader) unmarshal(buf []byte, offset int64) error {
	switch {
	case bytes.Equal(buf[:6], magicNewc):
		rh.Checksummed = false
	case bytes.Equal(buf[:6], magicCRC):
		rh.Checksummed = true
	default:
		return dataErr(offset, ErrBadMagic, "bad header magic")
	}

	var padded [headerLen + 2]byte
	padded[0], padded[1] = '0', '0'
	copy(padded[2:], buf)

	var words [14]uint32
	for i := 0; i < 7; i++ {
		v, ok := parseHex64(padded[i*16 : i*16+16])
		if !ok {
			return dataErrf(offset, "invalid hex digit in header field %d", i*2)
		}
		words[i*2] = uint32(v >> 32)
		words[i*2+1] = uint32(v)
	}

	rh.Ino = words[1]
	rh.Mode = words[2]
	rh.UID = words[3]
	rh.GID = words[4]
	rh.Nlink = words[5]
	rh.Mtime = words[6]
	rh.Filesize = words[7]
	rh.DevMajor = words[8]
	rh.DevMinor = words[9]
	rh.RDevMajor = words[10]
	rh.RDevMinor = words[11]
	rh.Namesize = words[12]
	rh.Check = words[13]
	return nil
}

// marshal encodes rh into dst[:headerLen].
func (rh *RawHeader) marshal(dst []byte) {
	magic := magicNewc
	if rh.Checksummed {
		magic = magicCRC
	}
	copy(dst, magic)

	fields := [13]uint32{
		rh.Ino, rh.Mode, rh.UID, rh.GID, rh.Nlink, rh.Mtime,
		rh.Filesize, rh.DevMajor, rh.DevMinor, rh.RDevMajor,
		rh.RDevMinor, rh.Namesize, rh.Check,
	}
	for i, f := range fields {
		formatHex32(dst[6+i*8:], f)
	}
}

// pad4 returns the number of zero bytes needed after n to reach the
// next 4-byte boundary.
func pad4(n int64) int64 {
	return (4 - n&3) & 3
}
