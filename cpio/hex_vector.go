// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package cpio

import (
	"encoding/binary"
	"runtime"

	"github.com/klauspost/cpuid"
)

// Word-parallel hex kernel: one 8-digit field is loaded as a single
// big-endian 64-bit lane and validated and converted branch-free, in
// the saturating range-arithmetic style of the Langdale/Muła SIMD hex
// parsers. The 16-digit variant runs two lanes. Enabled where
// unaligned 64-bit loads are cheap; older 32-bit targets keep the
// scalar lookup table.
var useVector = runtime.GOARCH == "arm64" ||
	runtime.GOARCH == "riscv64" ||
	cpuid.CPU.SSE2()

const (
	swarOnes = 0x0101010101010101
	swarHigh = 0x8080808080808080
	swarLow  = 0x0F0F0F0F0F0F0F0F
	swarFold = 0x2020202020202020
)

// geMask has 0x80 set in every byte of v that is >= lo. Only valid for
// bytes below 0x80.
func geMask(v uint64, lo byte) uint64 {
	return ((v | swarHigh) - swarOnes*uint64(lo)) & swarHigh
}

// gtMask has 0x80 set in every byte of v that is > hi. Only valid for
// bytes below 0x80.
func gtMask(v uint64, hi byte) uint64 {
	return (v + swarOnes*uint64(127-hi)) & swarHigh
}

// decodeHexLane converts eight ASCII hex digits held in v (first digit
// in the most significant byte) into their 32-bit value.
func decodeHexLane(v uint64) (uint32, bool) {
	if v&swarHigh != 0 {
		return 0, false
	}
	l := v | swarFold // lowercase fold; digits are unaffected

	// Digits are tested on the unfolded bytes: the fold would also turn
	// 0x10..0x19 into '0'..'9'.
	digit := geMask(v, '0') &^ gtMask(v, '9')
	alpha := geMask(l, 'a') &^ gtMask(l, 'f')
	if digit|alpha != swarHigh {
		return 0, false
	}

	// Nibble value per byte: low four bits, plus nine for letters
	// (which have bit 6 set where digits do not).
	n := (l & swarLow) + ((l>>6)&swarOnes)*9

	// Pack one nibble per byte down to eight contiguous nibbles.
	n = (n>>4 | n) & 0x00FF00FF00FF00FF
	n = (n>>8 | n) & 0x0000FFFF0000FFFF
	n = (n>>16 | n) & 0x00000000FFFFFFFF
	return uint32(n), true
}

func parseHex32Vector(src []byte) (uint32, bool) {
	return decodeHexLane(binary.BigEndian.Uint64(src))
}

func parseHex64Vector(src []byte) (uint64, bool) {
	hi, okHi := decodeHexLane(binary.BigEndian.Uint64(src))
	lo, okLo := decodeHexLane(binary.BigEndian.Uint64(src[8:]))
	return uint64(hi)<<32 | uint64(lo), okHi && okLo
}

func formatHex32Vector(dst []byte, v uint32) {
	// Spread the eight nibbles of v to one byte each, most significant
	// nibble to the most significant byte.
	x := uint64(v)
	x = (x | x<<16) & 0x0000FFFF0000FFFF
	x = (x | x<<8) & 0x00FF00FF00FF00FF
	x = (x | x<<4) & swarLow

	// '0'..'9' need +0x30, 'A'..'F' need a further +7. Adding six
	// pushes bit 4 up exactly in the bytes holding values above nine.
	adj := ((x + swarOnes*6) & (swarOnes * 0x10)) >> 4
	x += swarOnes*'0' + adj*7

	binary.BigEndian.PutUint64(dst, x)
}
