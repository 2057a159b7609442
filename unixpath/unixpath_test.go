// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package unixpath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cpiofs.sh/unixpath"
)

func TestNormalize(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"", "."},
		{".", "."},
		{"/", "/"},
		{"//", "/"},
		{"a", "a"},
		{"a/b", "a/b"},
		{"a//b", "a/b"},
		{"a/./b", "a/b"},
		{"./a", "a"},
		{"a/", "a"},
		{"a/b/..", "a"},
		{"a/../b", "b"},
		{"a/../../b", "../b"},
		{"../a", "../a"},
		{"../../a", "../../a"},
		{"..", ".."},
		{"a/..", "."},
		{"/a/../..", "/"},
		{"/..", "/"},
		{"/../a", "/a"},
		{"/a/b/../c", "/a/c"},
		{"/a/b/", "/a/b"},
	} {
		assert.Equal(t, tc.want, unixpath.Normalize(tc.in), "Normalize(%q)", tc.in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, p := range []string{"", "/", ".", "a//b/./c/..", "../..", "/a/b/c/", "x/../../y"} {
		once := unixpath.Normalize(p)
		assert.Equal(t, once, unixpath.Normalize(once), "Normalize(Normalize(%q))", p)
	}
}

func TestNormalizePreservesIdentity(t *testing.T) {
	for _, p := range []string{"/", ".", "a", "a/b", "/a/b.c", "..", "../a", "../../a/b"} {
		assert.True(t, unixpath.IsNormalized(p), "IsNormalized(%q)", p)
		got := unixpath.Normalize(p)
		assert.Equal(t, p, got)
		// The contract is "same identity": no new string is built.
		assert.Zero(t, testing.AllocsPerRun(10, func() {
			got = unixpath.Normalize(p)
		}), "Normalize(%q) allocated", p)
	}
}

func TestIsNormalized(t *testing.T) {
	for _, p := range []string{"", "//", "a//b", "./a", "a/.", "a/..", "a/", "/a/../b", "/.."} {
		assert.False(t, unixpath.IsNormalized(p), "IsNormalized(%q)", p)
	}
}

func TestValid(t *testing.T) {
	assert.True(t, unixpath.Valid("a/b c/d"))
	assert.True(t, unixpath.Valid(""))
	assert.False(t, unixpath.Valid("a\x00b"))
}

func TestIsAbs(t *testing.T) {
	assert.True(t, unixpath.IsAbs("/a"))
	assert.False(t, unixpath.IsAbs("a"))
	assert.False(t, unixpath.IsAbs(""))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a/b", unixpath.Join("a", "b"))
	assert.Equal(t, "a/b", unixpath.Join("a/", "b"))
	assert.Equal(t, "/b", unixpath.Join("a", "/b"))
	assert.Equal(t, "a", unixpath.Join("a", ""))
	assert.Equal(t, "b", unixpath.Join("", "b"))
	assert.Equal(t, "/a/b", unixpath.Join("/a", "b"))
}

func TestSplits(t *testing.T) {
	assert.Equal(t, "a/b", unixpath.Dir("a/b/c"))
	assert.Equal(t, "", unixpath.Dir("c"))
	assert.Equal(t, "/", unixpath.Dir("/c"))
	assert.Equal(t, "c.txt", unixpath.Base("a/b/c.txt"))
	assert.Equal(t, "", unixpath.Base("/"))
	assert.Equal(t, ".txt", unixpath.Ext("a/b/c.txt"))
	assert.Equal(t, "", unixpath.Ext("a/b.d/c"))
	assert.Equal(t, ".gz", unixpath.Ext("a.tar.gz"))
}

func TestSegments(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, unixpath.Segments("/a//b/"))
	assert.Nil(t, unixpath.Segments("/"))
	assert.Equal(t, []string{"..", "a"}, unixpath.Segments("../a"))
}
