// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package memfs is an in-memory UNIX filesystem: a tree of named
// entries backed by shared inode records, with POSIX semantics for
// regular files, directories, symbolic links, device special files
// and hard links, including the link-count bookkeeping that archive
// formats expose.
//
// Modes and ownership are data, not policy: nothing is enforced, the
// values are only carried.
package memfs
