// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package memfs

import "errors"

var (
	// ErrExist reports that the final path segment already names an
	// entry and overwriting was not requested.
	ErrExist = errors.New("memfs: entry already exists")

	// ErrNotExist reports that a path segment names no entry.
	ErrNotExist = errors.New("memfs: entry does not exist")

	// ErrNotDirectory reports that a path traversed through an entry
	// that is not a directory.
	ErrNotDirectory = errors.New("memfs: not a directory")

	// ErrIsDirectory reports that a directory stood where the
	// operation needed a non-directory.
	ErrIsDirectory = errors.New("memfs: is a directory")

	// ErrNotFile reports a content operation on an inode that is not a
	// regular file.
	ErrNotFile = errors.New("memfs: not a regular file")

	// ErrNotSymlink reports a target operation on an inode that is not
	// a symbolic link.
	ErrNotSymlink = errors.New("memfs: not a symbolic link")

	// ErrRoot reports an operation that is not permitted on the root
	// directory, such as deleting or moving it.
	ErrRoot = errors.New("memfs: operation not permitted on the root directory")

	// ErrDetached reports use of an entry that has been deleted from
	// its filesystem.
	ErrDetached = errors.New("memfs: entry is detached")

	// ErrInvalidPath reports an empty path, a NUL byte, or an invalid
	// name segment.
	ErrInvalidPath = errors.New("memfs: invalid path")

	// ErrPathDepth reports a path of more than maxPathDepth segments.
	ErrPathDepth = errors.New("memfs: path too deep")

	// ErrCrossFilesystem reports an operation whose operands belong to
	// different filesystems.
	ErrCrossFilesystem = errors.New("memfs: entries belong to different filesystems")
)

// maxPathDepth caps resolution at this many path segments.
const maxPathDepth = 2048
