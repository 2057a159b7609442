// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2017, Ryan Armstrong.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package cpio

import (
	"io/fs"
	"os"
)

// FileInfoHeader creates a partially-populated Header from fi. If fi
// describes a symlink, FileInfoHeader records link as the link target.
// Because fs.FileInfo's Name method returns only the base name of the
// file it describes, it may be necessary to modify Header.Name to
// provide the full path name of the file.
func FileInfoHeader(fi os.FileInfo, link string) (*Header, error) {
	hdr := &Header{
		Name:    fi.Name(),
		Mode:    FileMode(fi.Mode().Perm()),
		ModTime: fi.ModTime(),
		Links:   1,
	}

	switch {
	case fi.IsDir():
		hdr.Mode |= TypeDir
		hdr.Links = 2
	case fi.Mode()&fs.ModeSymlink != 0:
		hdr.Mode |= TypeSymlink
		hdr.Linkname = link
	case fi.Mode()&fs.ModeCharDevice != 0:
		hdr.Mode |= TypeChar
	case fi.Mode()&fs.ModeDevice != 0:
		hdr.Mode |= TypeBlock
	case fi.Mode()&fs.ModeNamedPipe != 0:
		hdr.Mode |= TypeFifo
	case fi.Mode()&fs.ModeSocket != 0:
		hdr.Mode |= TypeSocket
	case fi.Mode().IsRegular():
		hdr.Mode |= TypeReg
		hdr.Size = fi.Size()
	default:
		return nil, usageErrf("unsupported file mode %v for %q", fi.Mode(), fi.Name())
	}

	return hdr, nil
}
