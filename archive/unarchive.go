// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"

	"github.com/klauspost/compress/gzip"

	"cpiofs.sh/cpio"
	"cpiofs.sh/log"
	"cpiofs.sh/memfs"
	"cpiofs.sh/unixpath"
)

// ReadFS populates fsys from the CPIO archive read from r. Entries
// sharing an archive inode number are rematerialised as hard links;
// whichever occurrence carries the body supplies the content. Missing
// parent directories are created on demand, and a member named "."
// updates the root's metadata instead of creating anything.
func ReadFS(ctx context.Context, r io.Reader, fsys *memfs.Filesystem, opts ...ArchiveOption) error {
	aopts := ArchiveOptions{}
	for _, opt := range opts {
		if err := opt(&aopts); err != nil {
			return err
		}
	}

	if aopts.gzip {
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gzr.Close()
		r = gzr
	}

	cr := cpio.NewReader(r)
	seen := make(map[int64]*memfs.Entry)
	// Adding a child refreshes its directory's modification time, so the
	// archived directory times are applied again once every member exists.
	dirHdrs := make(map[*memfs.Inode]*cpio.Header)

	for {
		hdr, raw, err := cr.Next()
		if err == io.EOF {
			for node, dh := range dirHdrs {
				node.SetModTime(dh.ModTime)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}

		log.G(ctx).
			WithField("file", hdr.Name).
			Trace("unarchiving")

		path := unixpath.Normalize("/" + hdr.Name)
		node, err := readEntry(ctx, cr, hdr, raw, fsys, path, &aopts, seen)
		if err != nil {
			return err
		}

		// Metadata travels on every occurrence.
		node.SetMode(fs.FileMode(raw.Mode))
		node.SetUID(raw.UID)
		node.SetGID(raw.GID)
		node.SetModTime(hdr.ModTime)
		node.SetDev(memfs.DeviceNumber{Major: uint32(hdr.DevMajor), Minor: uint32(hdr.DevMinor)})
		if node.IsDir() {
			dirHdrs[node] = hdr
		}
	}
}

func readEntry(ctx context.Context, cr *cpio.Reader, hdr *cpio.Header, raw *cpio.RawHeader, fsys *memfs.Filesystem, path string, aopts *ArchiveOptions, seen map[int64]*memfs.Entry) (*memfs.Inode, error) {
	if path == "/" {
		return fsys.Root().Inode(), nil
	}

	copts := []memfs.CreateOption{memfs.WithParents()}
	if aopts.overwrite {
		copts = append(copts, memfs.WithOverwrite())
	}

	typ := hdr.Mode & cpio.ModeType

	// A previously seen archive inode means this member is another
	// hard link to the same file. Only regular files form groups: the
	// format writes symlinks and specials with a link count of one.
	if typ == cpio.TypeReg {
		if prev, ok := seen[hdr.Inode]; ok {
			entry, err := fsys.CreateHardLink(path, prev, copts...)
			if err != nil {
				return nil, fmt.Errorf("hard link %q: %w", path, err)
			}
			if hdr.Size > 0 {
				if err := supplyBody(ctx, cr, hdr, raw, entry.Inode(), path, aopts); err != nil {
					return nil, err
				}
			}
			return entry.Inode(), nil
		}
	}

	var entry *memfs.Entry
	var err error
	switch typ {
	case cpio.TypeDir:
		// Archives routinely repeat directories that on-demand parent
		// creation already made.
		if existing := fsys.TryGet(path); existing != nil && existing.IsDir() {
			entry = existing
		} else {
			entry, err = fsys.CreateDirectory(path, copts...)
		}

	case cpio.TypeReg:
		entry, err = fsys.CreateFile(path, nil, copts...)
		if err == nil && hdr.Size > 0 {
			err = supplyBody(ctx, cr, hdr, raw, entry.Inode(), path, aopts)
		}

	case cpio.TypeSymlink:
		entry, err = fsys.CreateSymlink(path, hdr.Linkname, copts...)

	case cpio.TypeChar:
		entry, err = fsys.CreateDevice(path, memfs.KindCharDevice, rdevOf(hdr), copts...)

	case cpio.TypeBlock:
		entry, err = fsys.CreateDevice(path, memfs.KindBlockDevice, rdevOf(hdr), copts...)

	default:
		return nil, fmt.Errorf("%q: the filesystem cannot represent a %s entry", path, typ)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %q: %w", path, err)
	}

	if typ == cpio.TypeReg && hdr.Links > 1 {
		seen[hdr.Inode] = entry
	}
	return entry.Inode(), nil
}

// supplyBody reads the member's body into the inode. Hard-link groups
// carry the body on only one occurrence; a repeated body that differs
// from what the inode already holds is kept (last occurrence wins) and
// logged, never an error.
func supplyBody(ctx context.Context, cr *cpio.Reader, hdr *cpio.Header, raw *cpio.RawHeader, node *memfs.Inode, path string, aopts *ArchiveOptions) error {
	data := make([]byte, hdr.Size)
	if _, err := io.ReadFull(cr, data); err != nil {
		return fmt.Errorf("reading body of %q: %w", path, err)
	}

	if raw.Checksummed && aopts.checksum {
		sum := cpio.NewHash()
		sum.Write(data)
		if sum.Sum32() != hdr.Checksum {
			return fmt.Errorf("%q: body sum %08X does not match header checksum %08X", path, sum.Sum32(), hdr.Checksum)
		}
	}

	if existing, err := node.Content(); err == nil && existing != nil && existing.Size() > 0 {
		prev, rerr := memfs.ReadContent(existing)
		if rerr == nil && !bytes.Equal(prev, data) {
			log.G(ctx).
				WithField("file", path).
				Warn("hard-link body differs between archive occurrences")
		}
	}
	return node.SetContent(memfs.BytesContent(data))
}

func rdevOf(hdr *cpio.Header) memfs.DeviceNumber {
	return memfs.DeviceNumber{Major: uint32(hdr.RDevMajor), Minor: uint32(hdr.RDevMinor)}
}
