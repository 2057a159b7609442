// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package memfs

import (
	"fmt"

	"github.com/gobwas/glob"
)

// SearchOption selects how far Enumerate descends.
type SearchOption int

const (
	// TopDirectoryOnly yields only the immediate children.
	TopDirectoryOnly SearchOption = iota

	// AllDirectories yields the whole subtree.
	AllDirectories
)

// An Iterator walks directory entries lazily in pre-order, children in
// byte-wise name order. Each directory's child list is snapshotted
// when the directory is reached, so mutating the tree mid-iteration
// never invalidates the iterator; it may simply yield entries that
// have since been detached.
type Iterator struct {
	frames  []frame
	pattern glob.Glob
	recurse bool
}

type frame struct {
	entries []*Entry
	next    int
}

// Enumerate returns an iterator over the directory's entries. An empty
// pattern matches everything; otherwise pattern is matched against
// entry names with shell-style glob semantics ('*', '?', character
// classes). Directories that fail the pattern are still descended
// into.
func (e *Entry) Enumerate(opt SearchOption, pattern string) (*Iterator, error) {
	if err := e.requireDir(); err != nil {
		return nil, err
	}
	it := &Iterator{recurse: opt == AllDirectories}
	if pattern != "" {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		it.pattern = g
	}
	it.frames = append(it.frames, frame{entries: e.node.children.list()})
	return it, nil
}

// Next returns the next matching entry, or false when the walk is
// done.
func (it *Iterator) Next() (*Entry, bool) {
	for len(it.frames) > 0 {
		f := &it.frames[len(it.frames)-1]
		if f.next >= len(f.entries) {
			it.frames = it.frames[:len(it.frames)-1]
			continue
		}
		entry := f.entries[f.next]
		f.next++
		if it.recurse && entry.node.IsDir() {
			it.frames = append(it.frames, frame{entries: entry.node.children.list()})
		}
		if it.pattern == nil || it.pattern.Match(entry.name) {
			return entry, true
		}
	}
	return nil, false
}

// Collect drains the iterator into a slice.
func (it *Iterator) Collect() []*Entry {
	var out []*Entry
	for {
		entry, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, entry)
	}
}
