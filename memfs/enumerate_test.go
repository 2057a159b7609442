// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package memfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpiofs.sh/memfs"
)

func buildTree(t *testing.T) *memfs.Filesystem {
	t.Helper()
	fsys := memfs.New()
	for _, path := range []string{"/b/one.txt", "/b/two.log", "/a/three.txt", "/c.txt"} {
		_, err := fsys.CreateFile(path, nil, memfs.WithParents())
		require.NoError(t, err)
	}
	return fsys
}

func paths(it *memfs.Iterator) []string {
	var out []string
	for _, entry := range it.Collect() {
		out = append(out, entry.FullPath())
	}
	return out
}

func TestEnumerateOrder(t *testing.T) {
	fsys := buildTree(t)
	it, err := fsys.Enumerate(memfs.AllDirectories, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/a", "/a/three.txt",
		"/b", "/b/one.txt", "/b/two.log",
		"/c.txt",
	}, paths(it))
}

func TestEnumerateTopOnly(t *testing.T) {
	fsys := buildTree(t)
	it, err := fsys.Enumerate(memfs.TopDirectoryOnly, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b", "/c.txt"}, paths(it))
}

func TestEnumeratePattern(t *testing.T) {
	fsys := buildTree(t)
	it, err := fsys.Enumerate(memfs.AllDirectories, "*.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/three.txt", "/b/one.txt", "/c.txt"}, paths(it))

	it, err = fsys.Enumerate(memfs.AllDirectories, "t?o.log")
	require.NoError(t, err)
	assert.Equal(t, []string{"/b/two.log"}, paths(it))

	_, err = fsys.Enumerate(memfs.AllDirectories, "[")
	assert.Error(t, err)
}

func TestEnumerateSnapshot(t *testing.T) {
	fsys := buildTree(t)
	it, err := fsys.Enumerate(memfs.AllDirectories, "")
	require.NoError(t, err)

	// Mutating mid-iteration must not invalidate the iterator.
	first, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "/a", first.FullPath())

	b, err := fsys.Get("/b")
	require.NoError(t, err)
	require.NoError(t, b.Delete())
	_, err = fsys.CreateFile("/zz.new", nil)
	require.NoError(t, err)

	rest := it.Collect()
	assert.NotEmpty(t, rest)
	for _, entry := range rest {
		assert.NotNil(t, entry)
	}
}

func TestEnumerateFromSubdirectory(t *testing.T) {
	fsys := buildTree(t)
	b, err := fsys.Get("/b")
	require.NoError(t, err)
	it, err := b.Enumerate(memfs.AllDirectories, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"/b/one.txt", "/b/two.log"}, paths(it))
}
