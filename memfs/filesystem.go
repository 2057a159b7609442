// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package memfs

import (
	"io/fs"
	"time"
)

// A Filesystem owns a tree of entries rooted at a directory with inode
// index 0 and allocates inode indices for everything created inside
// it. It is not safe for concurrent use; callers synchronise
// externally.
type Filesystem struct {
	root  *Entry
	next  uint64
	clock func() time.Time
}

// FilesystemOption adjusts a new Filesystem.
type FilesystemOption func(*Filesystem)

// WithClock substitutes the time source used for new inodes'
// timestamps.
func WithClock(clock func() time.Time) FilesystemOption {
	return func(f *Filesystem) { f.clock = clock }
}

// New returns an empty filesystem: a root directory with inode index
// 0, mode 0755 and link count 2.
func New(opts ...FilesystemOption) *Filesystem {
	fsys := &Filesystem{next: 1, clock: time.Now}
	for _, opt := range opts {
		opt(fsys)
	}
	now := fsys.clock()
	node := &Inode{
		kind:     KindDirectory,
		mode:     0o755,
		nlink:    2,
		btime:    now,
		ctime:    now,
		atime:    now,
		mtime:    now,
		children: newChildren(),
	}
	fsys.root = &Entry{node: node, fsys: fsys}
	return fsys
}

// Root returns the root directory entry.
func (f *Filesystem) Root() *Entry { return f.root }

// newInode allocates an inode of the given kind. Indices start at 1
// and increase strictly; 0 is the root's.
func (f *Filesystem) newInode(kind Kind, mode fs.FileMode) *Inode {
	now := f.clock()
	node := &Inode{
		index: f.next,
		kind:  kind,
		mode:  mode & fs.ModePerm,
		btime: now,
		ctime: now,
		atime: now,
		mtime: now,
	}
	f.next++
	if kind == KindDirectory {
		node.children = newChildren()
		node.nlink = 1 // the self-reference; attach raises it to 2
	}
	return node
}

// cloneInode allocates a fresh inode carrying src's metadata and a
// deep copy of its payload; directories come out empty.
func (f *Filesystem) cloneInode(src *Inode) *Inode {
	node := f.newInode(src.kind, src.mode)
	node.uid = src.uid
	node.gid = src.gid
	node.dev = src.dev
	node.btime, node.ctime, node.atime, node.mtime = src.btime, src.ctime, src.atime, src.mtime
	switch src.kind {
	case KindRegular:
		if src.content != nil {
			node.content = src.content.Clone()
		}
	case KindSymlink:
		node.target = src.target
	case KindCharDevice, KindBlockDevice:
		node.rdev = src.rdev
	}
	return node
}

// Convenience delegates to the root directory.

// CreateFile creates a regular file at path. See Entry.CreateFile.
func (f *Filesystem) CreateFile(path string, content Content, opts ...CreateOption) (*Entry, error) {
	return f.root.CreateFile(path, content, opts...)
}

// CreateDirectory creates a directory at path. See
// Entry.CreateDirectory.
func (f *Filesystem) CreateDirectory(path string, opts ...CreateOption) (*Entry, error) {
	return f.root.CreateDirectory(path, opts...)
}

// CreateSymlink creates a symbolic link at path. See
// Entry.CreateSymlink.
func (f *Filesystem) CreateSymlink(path, target string, opts ...CreateOption) (*Entry, error) {
	return f.root.CreateSymlink(path, target, opts...)
}

// CreateDevice creates a device special file at path. See
// Entry.CreateDevice.
func (f *Filesystem) CreateDevice(path string, kind Kind, rdev DeviceNumber, opts ...CreateOption) (*Entry, error) {
	return f.root.CreateDevice(path, kind, rdev, opts...)
}

// CreateHardLink creates a hard link at path. See
// Entry.CreateHardLink.
func (f *Filesystem) CreateHardLink(path string, existing *Entry, opts ...CreateOption) (*Entry, error) {
	return f.root.CreateHardLink(path, existing, opts...)
}

// Get resolves path from the root. See Entry.Get.
func (f *Filesystem) Get(path string) (*Entry, error) {
	return f.root.Get(path)
}

// TryGet resolves path from the root, nil when missing.
func (f *Filesystem) TryGet(path string) *Entry {
	return f.root.TryGet(path)
}

// Move reparents src to dst. See Entry.Move.
func (f *Filesystem) Move(src, dst string, opts ...CreateOption) (*Entry, error) {
	return f.root.Move(src, dst, opts...)
}

// Copy copies src to dst. See Entry.Copy.
func (f *Filesystem) Copy(src, dst string, mode CopyMode, opts ...CreateOption) (*Entry, error) {
	return f.root.Copy(src, dst, mode, opts...)
}

// Enumerate iterates the whole tree. See Entry.Enumerate.
func (f *Filesystem) Enumerate(opt SearchOption, pattern string) (*Iterator, error) {
	return f.root.Enumerate(opt, pattern)
}
