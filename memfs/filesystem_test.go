// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package memfs_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpiofs.sh/memfs"
)

// checkInvariants validates the link-count and reachability rules
// after a mutation: every directory's nlink is 2 plus its child
// directories, every non-directory inode's nlink equals the number of
// entries referencing it, and every attached entry resolves by its own
// full path.
func checkInvariants(t *testing.T, fsys *memfs.Filesystem) {
	t.Helper()

	refs := make(map[*memfs.Inode]uint32)
	childDirs := make(map[*memfs.Inode]uint32)

	var walk func(dir *memfs.Entry)
	walk = func(dir *memfs.Entry) {
		entries, err := dir.Entries()
		require.NoError(t, err)
		for _, entry := range entries {
			refs[entry.Inode()]++
			if entry.IsDir() {
				childDirs[dir.Inode()]++
				walk(entry)
			}

			got, err := fsys.Get(entry.FullPath())
			require.NoError(t, err, "resolving %s", entry.FullPath())
			assert.Same(t, entry, got, "resolving %s", entry.FullPath())
		}
	}
	walk(fsys.Root())

	assert.Equal(t, 2+childDirs[fsys.Root().Inode()], fsys.Root().Inode().Nlink(), "root nlink")

	var verify func(dir *memfs.Entry)
	verify = func(dir *memfs.Entry) {
		entries, _ := dir.Entries()
		for _, entry := range entries {
			node := entry.Inode()
			if entry.IsDir() {
				assert.Equal(t, 2+childDirs[node], node.Nlink(), "directory %s nlink", entry.FullPath())
				verify(entry)
			} else {
				assert.Equal(t, refs[node], node.Nlink(), "inode of %s nlink", entry.FullPath())
			}
		}
	}
	verify(fsys.Root())
}

func TestCreateFile(t *testing.T) {
	fsys := memfs.New()

	entry, err := fsys.CreateFile("/hello.txt", memfs.StringContent("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", entry.Name())
	assert.Equal(t, "/hello.txt", entry.FullPath())
	assert.Equal(t, memfs.KindRegular, entry.Kind())
	assert.EqualValues(t, 1, entry.Inode().Nlink())
	assert.EqualValues(t, 0o644, entry.Inode().Mode())
	assert.EqualValues(t, 2, entry.Inode().Size())

	_, err = fsys.CreateFile("/hello.txt", nil)
	assert.ErrorIs(t, err, memfs.ErrExist)

	_, err = fsys.CreateFile("/missing/f", nil)
	assert.ErrorIs(t, err, memfs.ErrNotExist)

	_, err = fsys.CreateFile("/deep/er/f", nil, memfs.WithParents())
	require.NoError(t, err)
	assert.NotNil(t, fsys.TryGet("/deep/er"))

	_, err = fsys.CreateFile("/hello.txt/f", nil)
	assert.ErrorIs(t, err, memfs.ErrNotDirectory)

	_, err = fsys.CreateFile("/hello.txt", memfs.StringContent("new"), memfs.WithOverwrite())
	require.NoError(t, err)

	checkInvariants(t, fsys)
}

func TestCreateDirectory(t *testing.T) {
	fsys := memfs.New()

	dir, err := fsys.CreateDirectory("/a")
	require.NoError(t, err)
	assert.EqualValues(t, 2, dir.Inode().Nlink())
	assert.EqualValues(t, 3, fsys.Root().Inode().Nlink())

	sub, err := fsys.CreateDirectory("/a/b")
	require.NoError(t, err)
	assert.EqualValues(t, 2, sub.Inode().Nlink())
	assert.EqualValues(t, 3, dir.Inode().Nlink())

	// Directories are never silently replaced.
	_, err = fsys.CreateDirectory("/a", memfs.WithOverwrite())
	assert.ErrorIs(t, err, memfs.ErrExist)

	// Relative creation from a subdirectory.
	rel, err := dir.CreateDirectory("c")
	require.NoError(t, err)
	assert.Equal(t, "/a/c", rel.FullPath())

	checkInvariants(t, fsys)
}

func TestCreateSymlinkAndDevice(t *testing.T) {
	fsys := memfs.New()

	link, err := fsys.CreateSymlink("/l", "dir1/file1.txt")
	require.NoError(t, err)
	assert.Equal(t, memfs.KindSymlink, link.Kind())
	assert.Equal(t, "dir1/file1.txt", link.Inode().Target())
	assert.EqualValues(t, 1, link.Inode().Nlink())
	assert.EqualValues(t, 14, link.Inode().Size())

	_, err = fsys.CreateSymlink("/empty", "")
	assert.ErrorIs(t, err, memfs.ErrInvalidPath)

	dev, err := fsys.CreateDevice("/null", memfs.KindCharDevice, memfs.DeviceNumber{Major: 1, Minor: 3})
	require.NoError(t, err)
	assert.Equal(t, memfs.KindCharDevice, dev.Kind())
	assert.Equal(t, memfs.DeviceNumber{Major: 1, Minor: 3}, dev.Inode().RDev())

	_, err = fsys.CreateDevice("/bad", memfs.KindRegular, memfs.DeviceNumber{})
	assert.Error(t, err)

	checkInvariants(t, fsys)
}

func TestCreateHardLink(t *testing.T) {
	fsys := memfs.New()

	a, err := fsys.CreateFile("/a", memfs.StringContent("x"))
	require.NoError(t, err)

	b, err := fsys.CreateHardLink("/b", a)
	require.NoError(t, err)
	assert.Same(t, a.Inode(), b.Inode())
	assert.EqualValues(t, 2, a.Inode().Nlink())
	checkInvariants(t, fsys)

	// Content is shared: writing through one alias is visible through
	// the other.
	require.NoError(t, b.Inode().SetContent(memfs.StringContent("y")))
	content, err := a.Inode().Content()
	require.NoError(t, err)
	data, err := memfs.ReadContent(content)
	require.NoError(t, err)
	assert.Equal(t, "y", string(data))

	// Directories cannot be hard linked.
	dir, err := fsys.CreateDirectory("/d")
	require.NoError(t, err)
	_, err = fsys.CreateHardLink("/d2", dir)
	assert.ErrorIs(t, err, memfs.ErrIsDirectory)

	// Neither can symbolic links; their inode keeps one name.
	link, err := fsys.CreateSymlink("/l", "t")
	require.NoError(t, err)
	_, err = fsys.CreateHardLink("/l2", link)
	assert.ErrorIs(t, err, memfs.ErrNotFile)

	// Deleting one alias leaves the other intact.
	require.NoError(t, b.Delete())
	assert.EqualValues(t, 1, a.Inode().Nlink())
	checkInvariants(t, fsys)
}

func TestDelete(t *testing.T) {
	fsys := memfs.New()

	_, err := fsys.CreateFile("/a/b/c.txt", nil, memfs.WithParents())
	require.NoError(t, err)
	a, err := fsys.Get("/a")
	require.NoError(t, err)
	b, err := fsys.Get("/a/b")
	require.NoError(t, err)

	assert.ErrorIs(t, fsys.Root().Delete(), memfs.ErrRoot)

	require.NoError(t, a.Delete())
	assert.Nil(t, fsys.TryGet("/a"))
	assert.Nil(t, a.Parent())
	assert.EqualValues(t, 1, b.Inode().Nlink())
	assert.EqualValues(t, 2, fsys.Root().Inode().Nlink())

	assert.ErrorIs(t, a.Delete(), memfs.ErrDetached)
	checkInvariants(t, fsys)
}

func TestMove(t *testing.T) {
	fsys := memfs.New()

	_, err := fsys.CreateFile("/src/f.txt", memfs.StringContent("data"), memfs.WithParents())
	require.NoError(t, err)
	_, err = fsys.CreateDirectory("/dst")
	require.NoError(t, err)

	// Rename within a directory.
	moved, err := fsys.Move("/src/f.txt", "/src/g.txt")
	require.NoError(t, err)
	assert.Equal(t, "/src/g.txt", moved.FullPath())
	assert.Nil(t, fsys.TryGet("/src/f.txt"))
	checkInvariants(t, fsys)

	// Moving onto an existing directory drops the source inside it.
	moved, err = fsys.Move("/src/g.txt", "/dst")
	require.NoError(t, err)
	assert.Equal(t, "/dst/g.txt", moved.FullPath())
	checkInvariants(t, fsys)

	// Directory move adjusts both parents' link counts.
	srcNlink := fsys.TryGet("/src").Inode().Nlink()
	_, err = fsys.Move("/dst", "/src/dst")
	require.NoError(t, err)
	assert.Equal(t, srcNlink+1, fsys.TryGet("/src").Inode().Nlink())
	assert.EqualValues(t, 3, fsys.Root().Inode().Nlink())
	checkInvariants(t, fsys)

	// Overwrite replaces a non-directory target only when asked.
	_, err = fsys.CreateFile("/one", memfs.StringContent("1"))
	require.NoError(t, err)
	_, err = fsys.CreateFile("/two", memfs.StringContent("2"))
	require.NoError(t, err)
	_, err = fsys.Move("/one", "/two")
	assert.ErrorIs(t, err, memfs.ErrExist)
	_, err = fsys.Move("/one", "/two", memfs.WithOverwrite())
	require.NoError(t, err)
	content, err := fsys.TryGet("/two").Inode().Content()
	require.NoError(t, err)
	data, err := memfs.ReadContent(content)
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))
	checkInvariants(t, fsys)

	// A directory cannot move below itself, and the root cannot move.
	_, err = fsys.Move("/src", "/src/dst/inner", memfs.WithParents())
	assert.ErrorIs(t, err, memfs.ErrInvalidPath)
	_, err = fsys.Move("/", "/anywhere")
	assert.ErrorIs(t, err, memfs.ErrRoot)
}

func TestPathDepthCap(t *testing.T) {
	fsys := memfs.New()
	deep := strings.Repeat("a/", 2100) + "end"
	_, err := fsys.Get("/" + deep)
	assert.ErrorIs(t, err, memfs.ErrPathDepth)
	_, err = fsys.CreateFile("/"+deep, nil, memfs.WithParents())
	assert.ErrorIs(t, err, memfs.ErrPathDepth)
}

func TestInodeIndices(t *testing.T) {
	fsys := memfs.New()
	assert.EqualValues(t, 0, fsys.Root().Inode().Index())

	a, err := fsys.CreateFile("/a", nil)
	require.NoError(t, err)
	b, err := fsys.CreateDirectory("/b")
	require.NoError(t, err)
	c, err := fsys.CreateFile("/b/c", nil)
	require.NoError(t, err)

	assert.EqualValues(t, 1, a.Inode().Index())
	assert.EqualValues(t, 2, b.Inode().Index())
	assert.EqualValues(t, 3, c.Inode().Index())

	// Indices are never reused.
	require.NoError(t, c.Delete())
	d, err := fsys.CreateFile("/d", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4, d.Inode().Index())
}

func TestGetTraversal(t *testing.T) {
	fsys := memfs.New()
	_, err := fsys.CreateFile("/a/b/c", nil, memfs.WithParents())
	require.NoError(t, err)

	a, err := fsys.Get("/a")
	require.NoError(t, err)

	got, err := a.Get("b/c")
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c", got.FullPath())

	// Absolute paths address the root, wherever the receiver sits.
	got, err = a.Get("/a/b")
	require.NoError(t, err)
	assert.Equal(t, "/a/b", got.FullPath())

	assert.Nil(t, a.TryGet("missing"))
	_, err = fsys.Get("/a/b/c/d")
	assert.ErrorIs(t, err, memfs.ErrNotDirectory)
	_, err = fsys.Get("a\x00b")
	assert.ErrorIs(t, err, memfs.ErrInvalidPath)
}
