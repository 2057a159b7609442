// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2017, Ryan Armstrong.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package cpio

import (
	"io"
	"time"
)

// Reader provides sequential access to the contents of a CPIO archive.
// Reader.Next advances to the next file in the archive (including the
// first), and then Reader can be treated as an io.Reader to access the
// file's data, or Body can be used to obtain the data window directly.
//
// When the underlying stream is an io.ReadSeeker the reader seeks over
// unread file data; otherwise the caller must consume each regular
// file's body before advancing, and Next returns a StateError if more
// than three bytes (the most the alignment padding can take) remain
// unread.
type Reader struct {
	r  io.Reader     // underlying stream
	rs io.ReadSeeker // non-nil when r can seek

	hdr        *Header
	body       *SubStream // current regular-file body, nil otherwise
	base       int64      // parent position of the archive's first byte
	pos        int64      // archive offset of the reader's own cursor
	nextOffset int64      // archive offset of the next header
	err        error      // sticky fatal error

	closeSource bool
	scratch     []byte // name and link-target buffer, grown on demand
}

// ReaderOption adjusts the behaviour of a Reader.
type ReaderOption func(*Reader)

// WithCloseSource makes Close also close the underlying stream when it
// implements io.Closer. By default the source is left open.
func WithCloseSource() ReaderOption {
	return func(r *Reader) { r.closeSource = true }
}

// NewReader creates a new Reader reading from r.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	rd := &Reader{r: r}
	if rs, ok := r.(io.ReadSeeker); ok {
		rd.rs = rs
		// The archive need not start at the parent's origin; offsets
		// are tracked relative to the position handed to us.
		if base, err := rs.Seek(0, io.SeekCurrent); err == nil {
			rd.base = base
		} else {
			rd.rs = nil
		}
	}
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

// Read reads from the current file in the CPIO archive. It returns
// (0, io.EOF) when it reaches the end of that file, until Next is
// called to advance to the next file.
//
// Calling Read on special types like TypeSymlink, TypeChar, TypeBlock,
// TypeDir, and TypeFifo returns (0, io.EOF) regardless of what the
// header claims.
func (r *Reader) Read(p []byte) (int, error) {
	if serr, ok := r.err.(*StateError); ok && serr.err == ErrClosed {
		return 0, r.err
	}
	if r.body == nil {
		return 0, io.EOF
	}
	return r.body.Read(p)
}

// Body returns the bounded window over the current regular file's data,
// or nil if the current entry carries no data. The window stays valid
// until the next call to Next; over a seekable source it remains
// independently positionable.
func (r *Reader) Body() *SubStream {
	return r.body
}

// Next advances to the next entry in the CPIO archive. The returned
// RawHeader carries the undecoded field values for callers that need
// exact wire fidelity.
//
// io.EOF is returned at the end of the archive, once the trailer record
// has been consumed.
func (r *Reader) Next() (*Header, *RawHeader, error) {
	if r.err != nil {
		return nil, nil, r.err
	}
	if err := r.skipBody(); err != nil {
		r.err = err
		return nil, nil, err
	}
	hdr, raw, err := r.next()
	if err != nil && err != io.EOF {
		r.err = err
	}
	return hdr, raw, err
}

// skipBody moves the stream to the next header. Over a seekable source
// any unread body bytes are seeked over; over a sequential source at
// most three unread bytes may remain, and they are discarded.
func (r *Reader) skipBody() error {
	if r.body == nil {
		return nil
	}
	defer func() { r.body = nil }()

	if r.rs != nil {
		if _, err := r.rs.Seek(r.base+r.nextOffset, io.SeekStart); err != nil {
			return err
		}
		r.pos = r.nextOffset
		return nil
	}

	residue := r.nextOffset - (r.pos + r.body.consumed())
	if residue > 3 {
		return stateErrf("%d unread bytes of %q remain before the next entry on an unseekable stream", residue-r.hdr.EntryPad, r.hdr.Name)
	}
	if residue > 0 {
		if _, err := io.CopyN(io.Discard, r.r, residue); err != nil {
			return err
		}
	}
	r.pos = r.nextOffset
	return nil
}

func (r *Reader) next() (*Header, *RawHeader, error) {
	if r.rs != nil {
		// A still-held body window may have moved the cursor since the
		// last call; headers are read from the tracked offset.
		if _, err := r.rs.Seek(r.base+r.pos, io.SeekStart); err != nil {
			return nil, nil, err
		}
	}
	hdrOffset := r.pos

	var buf [headerLen]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, nil, dataErrf(hdrOffset, "truncated header")
		}
		return nil, nil, err
	}
	r.pos += headerLen

	raw := new(RawHeader)
	if err := raw.unmarshal(buf[:], hdrOffset); err != nil {
		return nil, nil, err
	}
	if raw.Namesize == 0 {
		return nil, nil, dataErrf(hdrOffset, "zero name size")
	}

	// The name is padded so that the following body starts on a 4-byte
	// boundary; headers themselves always start aligned.
	nameLen := int64(raw.Namesize)
	padded := nameLen + pad4(headerLen+nameLen)
	name, err := r.readBlob(padded)
	if err != nil {
		return nil, nil, err
	}
	if name[nameLen-1] != 0 {
		return nil, nil, dataErrf(hdrOffset, "name is not NUL-terminated")
	}
	hdr := &Header{
		Name:      string(name[:nameLen-1]),
		Inode:     int64(raw.Ino),
		Mode:      FileMode(raw.Mode),
		UID:       int(raw.UID),
		GID:       int(raw.GID),
		Links:     int(raw.Nlink),
		ModTime:   time.Unix(int64(raw.Mtime), 0),
		Size:      int64(raw.Filesize),
		Checksum:  raw.Check,
		DevMajor:  int64(raw.DevMajor),
		DevMinor:  int64(raw.DevMinor),
		RDevMajor: int64(raw.RDevMajor),
		RDevMinor: int64(raw.RDevMinor),
		EntryPad:  pad4(int64(raw.Filesize)),
	}

	if hdr.Name == trailerName {
		if hdr.Size != 0 {
			return nil, nil, dataErrf(hdrOffset, "trailer record carries a body")
		}
		return nil, nil, io.EOF
	}

	switch hdr.Mode & ModeType {
	case TypeReg:
		r.body = newSubStream(r.r, r.base+r.pos, hdr.Size)
		r.nextOffset = r.pos + hdr.Size + hdr.EntryPad
		r.hdr = hdr
		return hdr, raw, nil

	case TypeSymlink:
		target, err := r.readBlob(hdr.Size + hdr.EntryPad)
		if err != nil {
			return nil, nil, err
		}
		hdr.Linkname = string(target[:hdr.Size])

	case TypeDir, TypeChar, TypeBlock, TypeFifo, TypeSocket:
		if hdr.Size != 0 {
			return nil, nil, dataErrf(hdrOffset, "%s entry %q carries a body", hdr.Mode&ModeType, hdr.Name)
		}

	default:
		return nil, nil, dataErrf(hdrOffset, "unsupported file type %#o", int64(hdr.Mode&ModeType))
	}

	r.hdr = hdr
	return hdr, raw, nil
}

// readBlob reads n bytes through the scratch buffer, growing it on
// demand. The returned slice is valid until the next call.
func (r *Reader) readBlob(n int64) ([]byte, error) {
	if int64(cap(r.scratch)) < n {
		r.scratch = make([]byte, n)
	}
	buf := r.scratch[:n]
	if _, err := io.ReadFull(r.r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, dataErrf(r.pos, "truncated entry")
		}
		return nil, err
	}
	r.pos += n
	return buf, nil
}

// Close releases the reader. If the reader was constructed with
// WithCloseSource and the source implements io.Closer, the source is
// closed too. Later calls to Next and Read fail with a StateError;
// closing again returns nil.
func (r *Reader) Close() error {
	if serr, ok := r.err.(*StateError); ok && serr.err == ErrClosed {
		return nil
	}
	r.err = &StateError{msg: "reader used after Close", err: ErrClosed}
	r.body = nil
	r.scratch = nil
	if r.closeSource {
		if c, ok := r.r.(io.Closer); ok {
			return c.Close()
		}
	}
	return nil
}
