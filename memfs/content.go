// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package memfs

import (
	"bytes"
	"fmt"
	"io"
)

// Content is the body of a regular file. Implementations exist for
// byte slices, strings, one-shot readers and deferred producers; the
// filesystem itself only ever sizes, copies and clones content.
type Content interface {
	// Size returns the body length in bytes.
	Size() int64

	// CopyTo writes the body to w and returns the number of bytes
	// written. Stream failures of w are propagated unchanged.
	CopyTo(w io.Writer) (int64, error)

	// Clone returns content with the same bytes. Buffer-backed
	// implementations deep-copy; stream-backed ones may share the
	// stream, which is then the caller's to manage.
	Clone() Content
}

type bytesContent []byte

// BytesContent wraps b as file content. The slice is shared, not
// copied; Clone performs the deep copy.
func BytesContent(b []byte) Content { return bytesContent(b) }

func (c bytesContent) Size() int64 { return int64(len(c)) }

func (c bytesContent) CopyTo(w io.Writer) (int64, error) {
	n, err := w.Write(c)
	return int64(n), err
}

func (c bytesContent) Clone() Content {
	return bytesContent(append([]byte(nil), c...))
}

type stringContent string

// StringContent wraps the UTF-8 bytes of s as file content.
func StringContent(s string) Content { return stringContent(s) }

func (c stringContent) Size() int64 { return int64(len(c)) }

func (c stringContent) CopyTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, string(c))
	return int64(n), err
}

func (c stringContent) Clone() Content { return c }

type readerContent struct {
	r    io.Reader
	size int64
}

// ReaderContent wraps a one-shot stream of exactly size bytes. It can
// be copied out once; Clone shares the stream.
func ReaderContent(r io.Reader, size int64) Content {
	return &readerContent{r: r, size: size}
}

func (c *readerContent) Size() int64 { return c.size }

func (c *readerContent) CopyTo(w io.Writer) (int64, error) {
	n, err := io.CopyN(w, c.r, c.size)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (c *readerContent) Clone() Content { return c }

type deferredContent struct {
	size int64
	open func() (io.Reader, error)
}

// DeferredContent wraps a producer that is invoked on every copy,
// yielding content that can be written out repeatedly without holding
// the bytes in memory.
func DeferredContent(size int64, open func() (io.Reader, error)) Content {
	return &deferredContent{size: size, open: open}
}

func (c *deferredContent) Size() int64 { return c.size }

func (c *deferredContent) CopyTo(w io.Writer) (int64, error) {
	r, err := c.open()
	if err != nil {
		return 0, err
	}
	if rc, ok := r.(io.Closer); ok {
		defer rc.Close()
	}
	n, err := io.CopyN(w, r, c.size)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (c *deferredContent) Clone() Content { return c }

// ReadContent materialises c into a byte slice.
func ReadContent(c Content) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	buf.Grow(int(c.Size()))
	if _, err := c.CopyTo(&buf); err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	return buf.Bytes(), nil
}
