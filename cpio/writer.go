// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2017, Ryan Armstrong.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package cpio

import (
	"io"
	"strings"

	"cpiofs.sh/unixpath"
)

var zeros [4]byte

// Writer provides sequential writing of a CPIO archive in new-ASCII
// format. WriteHeader begins a new entry with the provided header, and
// then Writer can be treated as an io.Writer to supply that entry's
// data. Close emits the trailer record; the archive is not valid
// without it.
type Writer struct {
	w   io.Writer
	crc bool // emit 070702 headers with body checksums

	hdr       *Header
	remaining int64 // body bytes the current entry still expects
	pad       int64 // zero bytes after the current body
	pos       int64 // bytes emitted so far
	sum       digest
	closed    bool
	err       error

	closeSink bool
	scratch   []byte
}

// WriterOption adjusts the behaviour of a Writer.
type WriterOption func(*Writer)

// WithChecksum makes the writer emit 070702 headers. Regular-file
// headers must then carry the additive checksum of their body in
// Header.Checksum; the writer verifies it against the streamed bytes.
func WithChecksum() WriterOption {
	return func(w *Writer) { w.crc = true }
}

// WithCloseSink makes Close also close the underlying stream when it
// implements io.Closer.
func WithCloseSink() WriterOption {
	return func(w *Writer) { w.closeSink = true }
}

// NewWriter creates a new Writer writing to w.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	wr := &Writer{w: w}
	for _, opt := range opts {
		opt(wr)
	}
	return wr
}

// WriteHeader writes hdr and prepares to accept the entry's body, if
// any. The header's size field determines how many bytes must be
// written before the next entry: the announced Size for regular files,
// the link target length for symbolic links (written here, from
// Header.Linkname), and zero for everything else.
func (w *Writer) WriteHeader(hdr *Header) error {
	if w.err != nil {
		return w.err
	}
	if w.closed {
		return w.fail(&StateError{msg: "writer used after Close", err: ErrClosed})
	}
	if err := w.finishEntry(); err != nil {
		return err
	}
	if err := validateHeader(hdr); err != nil {
		return err
	}

	size := hdr.Size
	if hdr.Mode.IsSymlink() {
		size = int64(len(hdr.Linkname))
	}

	raw := RawHeader{
		Checksummed: w.crc,
		Ino:         uint32(hdr.Inode),
		Mode:        uint32(hdr.Mode),
		UID:         uint32(hdr.UID),
		GID:         uint32(hdr.GID),
		Nlink:       uint32(hdr.Links),
		Filesize:    uint32(size),
		DevMajor:    uint32(hdr.DevMajor),
		DevMinor:    uint32(hdr.DevMinor),
		RDevMajor:   uint32(hdr.RDevMajor),
		RDevMinor:   uint32(hdr.RDevMinor),
		Namesize:    uint32(len(hdr.Name) + 1),
	}
	if !hdr.ModTime.IsZero() {
		raw.Mtime = uint32(hdr.ModTime.Unix())
	}
	if w.crc && hdr.Mode.IsRegular() {
		raw.Check = hdr.Checksum
	}

	if err := w.writeRecord(&raw, hdr.Name); err != nil {
		return err
	}

	w.hdr = hdr
	w.sum.Reset()
	switch {
	case hdr.Mode.IsRegular():
		w.remaining = size
		w.pad = pad4(size)
	case hdr.Mode.IsSymlink():
		if err := w.emit([]byte(hdr.Linkname)); err != nil {
			return err
		}
		if err := w.emit(zeros[:pad4(size)]); err != nil {
			return err
		}
	}
	return nil
}

// Write supplies body bytes for the entry begun by the last
// WriteHeader. Writing more than the announced size fails with
// ErrWriteTooLong.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.closed {
		return 0, w.fail(&StateError{msg: "writer used after Close", err: ErrClosed})
	}
	if int64(len(p)) > w.remaining {
		return 0, ErrWriteTooLong
	}
	n, err := w.w.Write(p)
	w.pos += int64(n)
	w.remaining -= int64(n)
	if w.crc {
		w.sum.Write(p[:n])
	}
	if err != nil {
		return n, w.fail(err)
	}
	return n, nil
}

// Close finishes the current entry, emits the trailer record and, when
// configured with WithCloseSink, closes the underlying stream. Close
// is idempotent.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	if w.closed {
		return nil
	}
	if err := w.finishEntry(); err != nil {
		return err
	}

	trailer := RawHeader{
		Checksummed: w.crc,
		Nlink:       1,
		Namesize:    uint32(len(trailerName) + 1),
	}
	if err := w.writeRecord(&trailer, trailerName); err != nil {
		return err
	}
	w.closed = true
	if w.closeSink {
		if c, ok := w.w.(io.Closer); ok {
			return c.Close()
		}
	}
	return nil
}

// Pos returns the number of archive bytes emitted so far.
func (w *Writer) Pos() int64 { return w.pos }

// writeRecord emits a header and its NUL-terminated, padded name.
func (w *Writer) writeRecord(raw *RawHeader, name string) error {
	n := headerLen + len(name) + 1
	total := n + int(pad4(int64(n)))
	if cap(w.scratch) < total {
		w.scratch = make([]byte, total)
	}
	buf := w.scratch[:total]
	raw.marshal(buf)
	copy(buf[headerLen:], name)
	for i := headerLen + len(name); i < total; i++ {
		buf[i] = 0
	}
	return w.emit(buf)
}

// finishEntry pads out the previous entry's body and, for checksummed
// archives, verifies the announced checksum against the bytes seen.
func (w *Writer) finishEntry() error {
	if w.hdr == nil {
		return nil
	}
	if w.remaining > 0 {
		return w.fail(stateErrf("entry %q is missing %d body bytes", w.hdr.Name, w.remaining))
	}
	if w.pad > 0 {
		if err := w.emit(zeros[:w.pad]); err != nil {
			return err
		}
		w.pad = 0
	}
	if w.crc && w.hdr.Mode.IsRegular() && w.sum.Sum32() != w.hdr.Checksum {
		return w.fail(usageErrf("entry %q: checksum %08X does not match body sum %08X", w.hdr.Name, w.hdr.Checksum, w.sum.Sum32()))
	}
	w.hdr = nil
	return nil
}

func (w *Writer) emit(p []byte) error {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	if err != nil {
		return w.fail(err)
	}
	return nil
}

// fail latches err so every later call reports the same failure. The
// writer does not rewind: partial output is visible to the sink.
func (w *Writer) fail(err error) error {
	w.err = err
	return err
}

func validateHeader(hdr *Header) error {
	name := hdr.Name
	switch {
	case name == "":
		return usageErrf("empty entry name")
	case !unixpath.Valid(name):
		return usageErrf("entry name contains a NUL byte")
	case !unixpath.IsNormalized(name):
		return usageErrf("entry name %q is not normalized", name)
	case name == ".." || strings.HasPrefix(name, "../"):
		return usageErrf("entry name %q escapes the archive root", name)
	case name == trailerName:
		return usageErrf("entry name %q is reserved for the trailer", name)
	}

	typ := hdr.Mode & ModeType
	switch typ {
	case TypeReg, TypeDir, TypeSymlink, TypeChar, TypeBlock, TypeFifo, TypeSocket:
	default:
		return usageErrf("entry %q has invalid file type %#o", name, int64(typ))
	}

	if hdr.Linkname != "" && typ != TypeSymlink {
		return usageErrf("entry %q has a link target but is not a symbolic link", name)
	}

	switch typ {
	case TypeDir:
		if hdr.Links < 2 {
			return usageErrf("directory %q has link count %d, need at least 2", name, hdr.Links)
		}
		if hdr.Size != 0 {
			return usageErrf("directory %q announces a body", name)
		}
	case TypeSymlink:
		if hdr.Links != 1 {
			return usageErrf("symbolic link %q has link count %d, need exactly 1", name, hdr.Links)
		}
		if hdr.Linkname == "" {
			return usageErrf("symbolic link %q has an empty target", name)
		}
	case TypeReg:
		if hdr.Links < 1 {
			return usageErrf("file %q has link count %d, need at least 1", name, hdr.Links)
		}
		if hdr.Size < 0 {
			return usageErrf("file %q has negative size", name)
		}
	default:
		if hdr.Links != 1 {
			return usageErrf("%s entry %q has link count %d, need exactly 1", typ, name, hdr.Links)
		}
		if hdr.Size != 0 {
			return usageErrf("%s entry %q announces a body", typ, name)
		}
	}
	return nil
}
