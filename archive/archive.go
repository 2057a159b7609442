// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package archive translates between CPIO archive streams and in-memory
// filesystems, preserving tree shape, metadata and hard-link identity
// in both directions.
package archive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	"cpiofs.sh/cpio"
	"cpiofs.sh/log"
	"cpiofs.sh/memfs"
)

// typeBits maps a filesystem kind to the header's type nibble.
func typeBits(kind memfs.Kind) cpio.FileMode {
	switch kind {
	case memfs.KindDirectory:
		return cpio.TypeDir
	case memfs.KindRegular:
		return cpio.TypeReg
	case memfs.KindSymlink:
		return cpio.TypeSymlink
	case memfs.KindCharDevice:
		return cpio.TypeChar
	default:
		return cpio.TypeBlock
	}
}

// WriteFS serialises fsys to w as a CPIO archive: the root as ".",
// then every entry in pre-order, names sorted byte-wise within each
// directory. Hard-linked regular files appear once per entry but carry
// their body only on the last occurrence, and keep their filesystem
// inode index as the archive inode number so the grouping survives a
// round trip.
func WriteFS(ctx context.Context, fsys *memfs.Filesystem, w io.Writer, opts ...ArchiveOption) error {
	aopts := ArchiveOptions{}
	for _, opt := range opts {
		if err := opt(&aopts); err != nil {
			return err
		}
	}

	sink := w
	var gzw *gzip.Writer
	if aopts.gzip {
		gzw = gzip.NewWriter(w)
		sink = gzw
	}

	var wopts []cpio.WriterOption
	if aopts.checksum {
		wopts = append(wopts, cpio.WithChecksum())
	}
	cw := cpio.NewWriter(sink, wopts...)

	if err := writeEntry(ctx, cw, ".", fsys.Root(), &aopts, nil); err != nil {
		return err
	}

	it, err := fsys.Enumerate(memfs.AllDirectories, "")
	if err != nil {
		return err
	}
	remaining := make(map[*memfs.Inode]uint32)
	for {
		entry, ok := it.Next()
		if !ok {
			break
		}
		name := strings.TrimPrefix(entry.FullPath(), "/")
		if err := writeEntry(ctx, cw, name, entry, &aopts, remaining); err != nil {
			return err
		}
	}

	if err := cw.Close(); err != nil {
		return fmt.Errorf("finishing archive: %w", err)
	}
	if gzw != nil {
		if err := gzw.Close(); err != nil {
			return fmt.Errorf("closing gzip stream: %w", err)
		}
	}
	return nil
}

func writeEntry(ctx context.Context, cw *cpio.Writer, name string, entry *memfs.Entry, aopts *ArchiveOptions, remaining map[*memfs.Inode]uint32) error {
	node := entry.Inode()

	hdr := &cpio.Header{
		Name:      name,
		Inode:     int64(node.Index()),
		Mode:      typeBits(node.Kind()) | cpio.FileMode(node.Mode()),
		UID:       int(node.UID()),
		GID:       int(node.GID()),
		Links:     int(node.Nlink()),
		DevMajor:  int64(node.Dev().Major),
		DevMinor:  int64(node.Dev().Minor),
		RDevMajor: int64(node.RDev().Major),
		RDevMinor: int64(node.RDev().Minor),
	}
	if !aopts.stripTimes {
		hdr.ModTime = node.ModTime()
	}

	log.G(ctx).
		WithField("file", name).
		Trace("archiving")

	var body memfs.Content
	switch node.Kind() {
	case memfs.KindSymlink:
		hdr.Linkname = node.Target()

	case memfs.KindRegular:
		// The body goes out with the hard-link group's last entry.
		rem, ok := remaining[node]
		if !ok {
			rem = node.Nlink()
		}
		rem--
		remaining[node] = rem
		if rem == 0 {
			delete(remaining, node)
			content, err := node.Content()
			if err != nil {
				return err
			}
			if content != nil {
				hdr.Size = content.Size()
				body = content
			}
			if aopts.checksum && body != nil {
				sum := cpio.NewHash()
				if _, err := body.CopyTo(sum); err != nil {
					return fmt.Errorf("checksumming %q: %w", name, err)
				}
				hdr.Checksum = sum.Sum32()
			}
		}
	}

	if err := cw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing header for %q: %w", name, err)
	}
	if body != nil {
		if _, err := body.CopyTo(cw); err != nil {
			return fmt.Errorf("writing body of %q: %w", name, err)
		}
	}
	return nil
}
