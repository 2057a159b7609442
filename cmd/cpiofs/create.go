// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"cpiofs.sh/archive"
	"cpiofs.sh/log"
	"cpiofs.sh/memfs"
)

func newCreateCmd() *cobra.Command {
	var gz, crc, stripTimes bool

	cmd := &cobra.Command{
		Use:   "create [flags] DIR ARCHIVE",
		Short: "Serialize a directory tree into a CPIO archive",
		Long: heredoc.Doc(`
			Walk DIR and write its contents to ARCHIVE as a new-ASCII CPIO
			archive. Hard links are detected by device and inode number and
			come out as hard links; symbolic links, device nodes and
			ownership are preserved.
		`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			fsys, err := stageDirectory(cmd, args[0])
			if err != nil {
				return err
			}

			f, err := os.OpenFile(args[1], os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				return fmt.Errorf("could not open archive file: %w", err)
			}
			defer f.Close()

			aopts := []archive.ArchiveOption{
				archive.WithGzip(gz),
				archive.WithChecksum(crc),
				archive.WithStripTimes(stripTimes),
			}
			if err := archive.WriteFS(ctx, fsys, f, aopts...); err != nil {
				return fmt.Errorf("could not serialize %s: %w", args[0], err)
			}
			return f.Close()
		},
	}

	cmd.Flags().BoolVarP(&gz, "gzip", "z", false, "Compress the archive with gzip")
	cmd.Flags().BoolVar(&crc, "checksum", false, "Emit 070702 headers with body checksums")
	cmd.Flags().BoolVar(&stripTimes, "strip-times", false, "Zero all modification times")

	return cmd
}

// fileKey identifies a host inode for hard-link detection.
type fileKey struct {
	dev uint64
	ino uint64
}

// stageDirectory loads the tree under root into an in-memory
// filesystem.
func stageDirectory(cmd *cobra.Command, root string) (*memfs.Filesystem, error) {
	ctx := cmd.Context()
	root = strings.TrimRight(root, string(filepath.Separator))

	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("could not check path: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("supplied path is not a directory: %s", root)
	}

	fsys := memfs.New()
	links := make(map[fileKey]*memfs.Entry)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("received error before parsing path: %w", err)
		}

		internal := strings.TrimPrefix(path, filepath.Clean(root))
		if internal == "" {
			return nil // the root maps to the filesystem root
		}
		internal = filepath.ToSlash(internal)

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("could not get directory entry info: %w", err)
		}

		log.G(ctx).
			WithField("file", internal).
			Trace("staging")

		st := statExtra(info)

		var entry *memfs.Entry
		switch {
		case d.Type().IsDir():
			entry, err = fsys.CreateDirectory(internal, memfs.WithMode(info.Mode().Perm()))

		case info.Mode()&fs.ModeSymlink != 0:
			var target string
			if target, err = os.Readlink(path); err == nil {
				entry, err = fsys.CreateSymlink(internal, target)
			}

		case d.Type().IsRegular():
			if prev, ok := links[st.key]; ok && st.nlink > 1 {
				entry, err = fsys.CreateHardLink(internal, prev)
				break
			}
			open := func() (io.Reader, error) { return os.Open(path) }
			entry, err = fsys.CreateFile(internal, memfs.DeferredContent(info.Size(), open), memfs.WithMode(info.Mode().Perm()))
			if err == nil && st.nlink > 1 {
				links[st.key] = entry
			}

		case info.Mode()&fs.ModeCharDevice != 0:
			entry, err = fsys.CreateDevice(internal, memfs.KindCharDevice, st.rdev, memfs.WithMode(info.Mode().Perm()))

		case info.Mode()&fs.ModeDevice != 0:
			entry, err = fsys.CreateDevice(internal, memfs.KindBlockDevice, st.rdev, memfs.WithMode(info.Mode().Perm()))

		default:
			log.G(ctx).Warnf("unsupported file: %s", path)
			return nil
		}
		if err != nil {
			return fmt.Errorf("staging %q: %w", internal, err)
		}

		node := entry.Inode()
		node.SetUID(st.uid)
		node.SetGID(st.gid)
		node.SetModTime(info.ModTime())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not walk input path: %w", err)
	}
	return fsys, nil
}
