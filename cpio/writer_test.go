// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2017, Ryan Armstrong.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package cpio_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"cpiofs.sh/cpio"
)

func store(w *cpio.Writer, fn, name string) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := cpio.FileInfoHeader(fi, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := w.WriteHeader(hdr); err != nil {
		return err
	}
	if !fi.IsDir() {
		if _, err := io.Copy(w, f); err != nil {
			return err
		}
	}
	return err
}

func TestWriter(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "etc"), 0o755); err != nil {
		t.Fatal(err)
	}
	hosts := filepath.Join(dir, "etc", "hosts")
	if err := os.WriteFile(hosts, []byte("127.0.0.1 localhost\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	w := cpio.NewWriter(&buf)
	if err := store(w, filepath.Join(dir, "etc"), "etc"); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := store(w, hosts, "etc/hosts"); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := cpio.NewReader(bytes.NewReader(buf.Bytes()))
	hdr, _, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Name != "etc" || !hdr.Mode.IsDir() {
		t.Errorf("first entry: %q %v", hdr.Name, hdr.Mode)
	}
	hdr, _, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Name != "etc/hosts" || !hdr.Mode.IsRegular() || hdr.Size != 20 {
		t.Errorf("second entry: %q %v size %d", hdr.Name, hdr.Mode, hdr.Size)
	}
	if _, _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}
