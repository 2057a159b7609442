// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"cpiofs.sh/archive"
	"cpiofs.sh/log"
	"cpiofs.sh/memfs"
)

func newExtractCmd() *cobra.Command {
	var crc bool

	cmd := &cobra.Command{
		Use:   "extract [flags] ARCHIVE DIR",
		Short: "Extract a CPIO archive into a directory",
		Long: heredoc.Doc(`
			Extract ARCHIVE into DIR, recreating directories, files,
			symbolic links, hard links and (given the privilege) device
			nodes. Gzip-compressed archives are detected automatically.
			Device nodes that cannot be created are skipped with a warning,
			and ownership or times that cannot be applied are skipped with a
			debug message, rather than failing the extraction.
		`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			src, gz, err := openArchive(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			fsys := memfs.New()
			aopts := []archive.ArchiveOption{
				archive.WithGzip(gz),
				archive.WithChecksum(crc),
			}
			if err := archive.ReadFS(ctx, src.reader, fsys, aopts...); err != nil {
				return fmt.Errorf("could not read archive: %w", err)
			}

			return materialize(cmd, fsys, args[1])
		},
	}

	cmd.Flags().BoolVar(&crc, "checksum", false, "Verify 070702 body checksums")

	return cmd
}

// peekedFile pairs an open archive file with the buffered reader that
// was used to sniff its compression.
type peekedFile struct {
	f      *os.File
	reader io.Reader
}

func (p *peekedFile) Close() error { return p.f.Close() }

// openArchive opens path and sniffs the gzip magic.
func openArchive(path string) (*peekedFile, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("could not open archive: %w", err)
	}
	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, false, fmt.Errorf("could not read archive: %w", err)
	}
	gz := len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b
	return &peekedFile{f: f, reader: br}, gz, nil
}

// materialize writes the in-memory tree out below dir.
func materialize(cmd *cobra.Command, fsys *memfs.Filesystem, dir string) error {
	ctx := cmd.Context()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	it, err := fsys.Enumerate(memfs.AllDirectories, "")
	if err != nil {
		return err
	}

	linked := make(map[*memfs.Inode]string)
	for {
		entry, ok := it.Next()
		if !ok {
			return nil
		}
		node := entry.Inode()
		rel := filepath.FromSlash(strings.TrimPrefix(entry.FullPath(), "/"))
		dest := filepath.Join(dir, rel)

		log.G(ctx).
			WithField("file", rel).
			Trace("extracting")

		switch node.Kind() {
		case memfs.KindDirectory:
			err = os.MkdirAll(dest, node.Mode())

		case memfs.KindRegular:
			if prev, seen := linked[node]; seen {
				err = os.Link(prev, dest)
				break
			}
			err = writeFile(dest, node)
			if err == nil && node.Nlink() > 1 {
				linked[node] = dest
			}

		case memfs.KindSymlink:
			err = os.Symlink(node.Target(), dest)

		case memfs.KindCharDevice, memfs.KindBlockDevice:
			if err := mknod(dest, node.Kind(), node.Mode(), node.RDev()); err != nil {
				log.G(ctx).Warnf("could not create device node %s: %v", dest, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("extracting %q: %w", rel, err)
		}

		if err := lchown(dest, node.UID(), node.GID()); err != nil {
			log.G(ctx).Debugf("could not chown %s: %v", dest, err)
		}
		if node.Kind() != memfs.KindSymlink {
			if err := os.Chtimes(dest, node.ModTime(), node.ModTime()); err != nil {
				log.G(ctx).Debugf("could not set times on %s: %v", dest, err)
			}
		}
	}
}

func writeFile(dest string, node *memfs.Inode) error {
	content, err := node.Content()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, node.Mode())
	if err != nil {
		return err
	}
	if content != nil {
		if _, err := content.CopyTo(f); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}
