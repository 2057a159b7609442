// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package memfs

import (
	"fmt"
	"io/fs"
	"sort"

	"cpiofs.sh/unixpath"
)

// children is a directory's payload: an ordered mapping from child
// name to entry, compared byte-wise.
type children struct {
	m     map[string]*Entry
	names []string // kept sorted
}

func newChildren() *children {
	return &children{m: make(map[string]*Entry)}
}

func (c *children) get(name string) *Entry { return c.m[name] }

func (c *children) len() int { return len(c.names) }

func (c *children) insert(e *Entry) {
	if _, ok := c.m[e.name]; !ok {
		i := sort.SearchStrings(c.names, e.name)
		c.names = append(c.names, "")
		copy(c.names[i+1:], c.names[i:])
		c.names[i] = e.name
	}
	c.m[e.name] = e
}

func (c *children) remove(name string) {
	if _, ok := c.m[name]; !ok {
		return
	}
	delete(c.m, name)
	i := sort.SearchStrings(c.names, name)
	c.names = append(c.names[:i], c.names[i+1:]...)
}

// list returns the children in name order. The slice is a snapshot;
// later mutations do not affect it.
func (c *children) list() []*Entry {
	out := make([]*Entry, len(c.names))
	for i, name := range c.names {
		out[i] = c.m[name]
	}
	return out
}

// CreateOption adjusts entry-creating and entry-moving operations.
type CreateOption func(*createOptions)

type createOptions struct {
	parents   bool
	overwrite bool
	mode      fs.FileMode
	modeSet   bool
}

// WithParents makes the operation create missing intermediate
// directories instead of failing.
func WithParents() CreateOption {
	return func(o *createOptions) { o.parents = true }
}

// WithOverwrite makes the operation replace an existing non-directory
// entry at the destination instead of failing.
func WithOverwrite() CreateOption {
	return func(o *createOptions) { o.overwrite = true }
}

// WithMode sets the new inode's permission bits, overriding the
// per-kind defaults.
func WithMode(mode fs.FileMode) CreateOption {
	return func(o *createOptions) { o.mode = mode & fs.ModePerm; o.modeSet = true }
}

func applyCreateOptions(opts []CreateOption) createOptions {
	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o *createOptions) modeOr(def fs.FileMode) fs.FileMode {
	if o.modeSet {
		return o.mode
	}
	return def
}

// requireDir fails unless e is an attached directory.
func (e *Entry) requireDir() error {
	if !e.node.IsDir() {
		return fmt.Errorf("%q: %w", e.name, ErrNotDirectory)
	}
	if e.fsys == nil {
		return fmt.Errorf("%q: %w", e.name, ErrDetached)
	}
	return nil
}

// resolve walks path from e, or from the root for an absolute path,
// and returns the named entry.
func (e *Entry) resolve(path string) (*Entry, error) {
	if path == "" || !unixpath.Valid(path) {
		return nil, fmt.Errorf("%q: %w", path, ErrInvalidPath)
	}
	cur := e
	if unixpath.IsAbs(path) {
		cur = e.fsys.root
	}
	segs := unixpath.Segments(unixpath.Normalize(path))
	if len(segs) > maxPathDepth {
		return nil, fmt.Errorf("%q: %w", path, ErrPathDepth)
	}
	for _, seg := range segs {
		switch seg {
		case ".":
			continue
		case "..":
			if cur.parent != nil {
				cur = cur.parent
			}
			continue
		}
		if !cur.node.IsDir() {
			return nil, fmt.Errorf("%q: %w", cur.FullPath(), ErrNotDirectory)
		}
		next := cur.node.children.get(seg)
		if next == nil {
			return nil, fmt.Errorf("%s: %w", unixpath.Join(cur.FullPath(), seg), ErrNotExist)
		}
		cur = next
	}
	return cur, nil
}

// Get resolves path relative to e (absolute paths address the root)
// and fails on the first missing or non-directory intermediate.
func (e *Entry) Get(path string) (*Entry, error) {
	if err := e.requireDir(); err != nil {
		return nil, err
	}
	return e.resolve(path)
}

// TryGet is Get with a nil result instead of an error.
func (e *Entry) TryGet(path string) *Entry {
	found, err := e.Get(path)
	if err != nil {
		return nil
	}
	return found
}

// prepare resolves everything up to the final segment of path,
// creating missing parents when asked, and returns the containing
// directory and the final name.
func (e *Entry) prepare(path string, o *createOptions) (*Entry, string, error) {
	if err := e.requireDir(); err != nil {
		return nil, "", err
	}
	if path == "" || !unixpath.Valid(path) {
		return nil, "", fmt.Errorf("%q: %w", path, ErrInvalidPath)
	}
	cur := e
	if unixpath.IsAbs(path) {
		cur = e.fsys.root
	}
	segs := unixpath.Segments(unixpath.Normalize(path))
	if len(segs) == 0 {
		return nil, "", fmt.Errorf("%q: %w", path, ErrInvalidPath)
	}
	if len(segs) > maxPathDepth {
		return nil, "", fmt.Errorf("%q: %w", path, ErrPathDepth)
	}
	name := segs[len(segs)-1]
	if name == "." || name == ".." {
		return nil, "", fmt.Errorf("%q: %w", path, ErrInvalidPath)
	}
	for _, seg := range segs[:len(segs)-1] {
		if seg == ".." {
			if cur.parent != nil {
				cur = cur.parent
			}
			continue
		}
		next := cur.node.children.get(seg)
		if next == nil {
			if !o.parents {
				return nil, "", fmt.Errorf("%s: %w", unixpath.Join(cur.FullPath(), seg), ErrNotExist)
			}
			next = &Entry{name: seg, node: cur.fsys.newInode(KindDirectory, 0o755)}
			next.attach(cur)
		} else if !next.node.IsDir() {
			return nil, "", fmt.Errorf("%s: %w", next.FullPath(), ErrNotDirectory)
		}
		cur = next
	}
	return cur, name, nil
}

// claim makes room for a new entry named name inside dir, deleting an
// existing non-directory holder when overwrite is set.
func claim(dir *Entry, name string, o *createOptions) error {
	existing := dir.node.children.get(name)
	if existing == nil {
		return nil
	}
	if !o.overwrite {
		return fmt.Errorf("%s: %w", existing.FullPath(), ErrExist)
	}
	if existing.node.IsDir() {
		return fmt.Errorf("%s: %w", existing.FullPath(), ErrIsDirectory)
	}
	return existing.Delete()
}

// CreateFile creates a regular file at path with the given content.
// Missing parents are created only with WithParents; an existing final
// segment fails unless WithOverwrite replaces a non-directory.
func (e *Entry) CreateFile(path string, content Content, opts ...CreateOption) (*Entry, error) {
	o := applyCreateOptions(opts)
	dir, name, err := e.prepare(path, &o)
	if err != nil {
		return nil, err
	}
	if err := claim(dir, name, &o); err != nil {
		return nil, err
	}
	node := dir.fsys.newInode(KindRegular, o.modeOr(0o644))
	if content == nil {
		content = BytesContent(nil)
	}
	node.content = content
	entry := &Entry{name: name, node: node}
	entry.attach(dir)
	return entry, nil
}

// CreateDirectory creates a directory at path. The new inode's link
// count is 2 and the parent directory's is incremented.
func (e *Entry) CreateDirectory(path string, opts ...CreateOption) (*Entry, error) {
	o := applyCreateOptions(opts)
	dir, name, err := e.prepare(path, &o)
	if err != nil {
		return nil, err
	}
	if existing := dir.node.children.get(name); existing != nil {
		// WithOverwrite replaces a non-directory; an existing directory
		// is never replaced.
		if !o.overwrite || existing.node.IsDir() {
			return nil, fmt.Errorf("%s: %w", existing.FullPath(), ErrExist)
		}
		if err := existing.Delete(); err != nil {
			return nil, err
		}
	}
	entry := &Entry{name: name, node: dir.fsys.newInode(KindDirectory, o.modeOr(0o755))}
	entry.attach(dir)
	return entry, nil
}

// CreateSymlink creates a symbolic link at path. The target is stored
// verbatim and never resolved.
func (e *Entry) CreateSymlink(path, target string, opts ...CreateOption) (*Entry, error) {
	if target == "" || !unixpath.Valid(target) {
		return nil, fmt.Errorf("link target %q: %w", target, ErrInvalidPath)
	}
	o := applyCreateOptions(opts)
	dir, name, err := e.prepare(path, &o)
	if err != nil {
		return nil, err
	}
	if err := claim(dir, name, &o); err != nil {
		return nil, err
	}
	node := dir.fsys.newInode(KindSymlink, o.modeOr(0o777))
	node.target = target
	entry := &Entry{name: name, node: node}
	entry.attach(dir)
	return entry, nil
}

// CreateDevice creates a character or block device special file at
// path described by the (major, minor) pair.
func (e *Entry) CreateDevice(path string, kind Kind, rdev DeviceNumber, opts ...CreateOption) (*Entry, error) {
	if !kind.IsDevice() {
		return nil, fmt.Errorf("%s: %w", kind, ErrInvalidPath)
	}
	o := applyCreateOptions(opts)
	dir, name, err := e.prepare(path, &o)
	if err != nil {
		return nil, err
	}
	if err := claim(dir, name, &o); err != nil {
		return nil, err
	}
	node := dir.fsys.newInode(kind, o.modeOr(0o644))
	node.rdev = rdev
	entry := &Entry{name: name, node: node}
	entry.attach(dir)
	return entry, nil
}

// CreateHardLink creates a new entry at path sharing existing's inode
// and increments its link count. Directories cannot be hard linked.
func (e *Entry) CreateHardLink(path string, existing *Entry, opts ...CreateOption) (*Entry, error) {
	if existing == nil || existing.fsys == nil {
		return nil, ErrDetached
	}
	if existing.node.IsDir() {
		return nil, fmt.Errorf("%s: %w", existing.FullPath(), ErrIsDirectory)
	}
	if existing.node.kind == KindSymlink {
		// A symbolic link's inode always has exactly one name.
		return nil, fmt.Errorf("%s: %w", existing.FullPath(), ErrNotFile)
	}
	if e.fsys != existing.fsys {
		return nil, ErrCrossFilesystem
	}
	o := applyCreateOptions(opts)
	dir, name, err := e.prepare(path, &o)
	if err != nil {
		return nil, err
	}
	if err := claim(dir, name, &o); err != nil {
		return nil, err
	}
	entry := &Entry{name: name, node: existing.node}
	entry.attach(dir)
	return entry, nil
}

// Move reparents the single entry at src to dst. When dst names an
// existing directory the source is placed inside it under its own
// name; when dst names an existing non-directory, WithOverwrite
// controls replacement.
func (e *Entry) Move(src, dst string, opts ...CreateOption) (*Entry, error) {
	if err := e.requireDir(); err != nil {
		return nil, err
	}
	o := applyCreateOptions(opts)
	source, err := e.resolve(src)
	if err != nil {
		return nil, err
	}
	if source.IsRoot() {
		return nil, ErrRoot
	}
	dir, name, err := e.moveTarget(source, dst, &o)
	if err != nil {
		return nil, err
	}
	if dir == source.parent && name == source.name {
		return source, nil
	}
	// A directory cannot be moved below itself.
	for cur := dir; cur != nil; cur = cur.parent {
		if cur == source {
			return nil, fmt.Errorf("cannot move %s into its own subtree: %w", source.FullPath(), ErrInvalidPath)
		}
	}
	if err := claim(dir, name, &o); err != nil {
		return nil, err
	}
	source.detach()
	source.name = name
	source.attach(dir)
	return source, nil
}

// moveTarget resolves dst into a (directory, name) placement for
// source.
func (e *Entry) moveTarget(source *Entry, dst string, o *createOptions) (*Entry, string, error) {
	if target, err := e.resolve(dst); err == nil && target.node.IsDir() {
		return target, source.name, nil
	}
	return e.prepare(dst, o)
}

// CopyMode selects how Copy treats inodes.
type CopyMode int

const (
	// CopySingle copies one entry: a regular file's content is cloned
	// into a fresh inode, any other kind shares the source inode.
	CopySingle CopyMode = iota

	// CopyRecursive deep-copies a subtree, cloning every inode. Two
	// source entries sharing an inode come out as independent copies.
	CopyRecursive

	// CopyRecursiveWithHardLinks copies the directory skeleton but
	// shares every non-directory inode with the source.
	CopyRecursiveWithHardLinks

	// CopyArchive deep-copies a subtree while preserving hard-link
	// identity inside it: source entries sharing an inode share a
	// (fresh) inode in the copy.
	CopyArchive
)

// Copy copies the entry at src to dst according to mode. Destination
// placement follows the same rules as Move.
func (e *Entry) Copy(src, dst string, mode CopyMode, opts ...CreateOption) (*Entry, error) {
	if err := e.requireDir(); err != nil {
		return nil, err
	}
	o := applyCreateOptions(opts)
	source, err := e.resolve(src)
	if err != nil {
		return nil, err
	}
	dir, name, err := e.moveTarget(source, dst, &o)
	if err != nil {
		return nil, err
	}
	for cur := dir; cur != nil; cur = cur.parent {
		if cur == source {
			return nil, fmt.Errorf("cannot copy %s into its own subtree: %w", source.FullPath(), ErrInvalidPath)
		}
	}
	if err := claim(dir, name, &o); err != nil {
		return nil, err
	}
	var inomap map[*Inode]*Inode
	if mode == CopyArchive {
		inomap = make(map[*Inode]*Inode)
	}
	return copyEntry(source, dir, name, mode, inomap)
}

func copyEntry(source, dir *Entry, name string, mode CopyMode, inomap map[*Inode]*Inode) (*Entry, error) {
	var node *Inode
	switch {
	case source.node.IsDir():
		if mode == CopySingle {
			node = source.node
		} else {
			node = dir.fsys.cloneInode(source.node)
		}
	case mode == CopySingle && source.node.kind != KindRegular,
		mode == CopyRecursiveWithHardLinks:
		node = source.node
	case mode == CopyArchive:
		if mapped, ok := inomap[source.node]; ok {
			node = mapped
		} else {
			node = dir.fsys.cloneInode(source.node)
			inomap[source.node] = node
		}
	default:
		node = dir.fsys.cloneInode(source.node)
	}

	entry := &Entry{name: name, node: node}
	entry.attach(dir)

	if source.node.IsDir() && mode != CopySingle {
		for _, child := range source.node.children.list() {
			if _, err := copyEntry(child, entry, child.name, mode, inomap); err != nil {
				return nil, err
			}
		}
	}
	return entry, nil
}

// Entries returns the directory's children in byte-wise name order.
func (e *Entry) Entries() ([]*Entry, error) {
	if err := e.requireDir(); err != nil {
		return nil, err
	}
	return e.node.children.list(), nil
}

// Len returns the number of children of a directory.
func (e *Entry) Len() int {
	if !e.node.IsDir() {
		return 0
	}
	return e.node.children.len()
}
