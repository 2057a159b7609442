// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

//go:build windows

package main

import (
	"errors"
	"os"

	"cpiofs.sh/memfs"
)

type hostStat struct {
	key   fileKey
	nlink uint64
	uid   uint32
	gid   uint32
	rdev  memfs.DeviceNumber
}

func statExtra(_ os.FileInfo) hostStat {
	return hostStat{nlink: 1}
}

func mknod(string, memfs.Kind, os.FileMode, memfs.DeviceNumber) error {
	return errors.New("device nodes are not supported on this platform")
}

func lchown(string, uint32, uint32) error {
	return nil
}
