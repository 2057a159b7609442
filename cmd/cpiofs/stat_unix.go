// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

//go:build !windows

package main

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"cpiofs.sh/memfs"
)

// hostStat carries the platform-specific file identity used for
// hard-link detection, plus ownership and device numbers.
type hostStat struct {
	key   fileKey
	nlink uint64
	uid   uint32
	gid   uint32
	rdev  memfs.DeviceNumber
}

func statExtra(info os.FileInfo) hostStat {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return hostStat{nlink: 1}
	}
	return hostStat{
		key:   fileKey{dev: uint64(st.Dev), ino: uint64(st.Ino)},
		nlink: uint64(st.Nlink),
		uid:   st.Uid,
		gid:   st.Gid,
		rdev: memfs.DeviceNumber{
			Major: unix.Major(uint64(st.Rdev)),
			Minor: unix.Minor(uint64(st.Rdev)),
		},
	}
}

// mknod recreates a device special file. Needs CAP_MKNOD; callers
// treat failure as non-fatal.
func mknod(path string, kind memfs.Kind, mode os.FileMode, rdev memfs.DeviceNumber) error {
	m := uint32(mode.Perm())
	if kind == memfs.KindCharDevice {
		m |= unix.S_IFCHR
	} else {
		m |= unix.S_IFBLK
	}
	return unix.Mknod(path, m, int(unix.Mkdev(rdev.Major, rdev.Minor)))
}

// lchown sets ownership without following symlinks; failure is
// non-fatal for unprivileged extraction.
func lchown(path string, uid, gid uint32) error {
	return unix.Lchown(path, int(uid), int(gid))
}
