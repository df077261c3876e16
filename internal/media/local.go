// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
)

// Local stores uploads under a directory on this machine.
type Local struct {
	Dir string
}

// NewLocal creates the directory if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("local media: %w", err)
	}
	if err := os.MkdirAll(abs, 0700); err != nil {
		return nil, fmt.Errorf("local media: create %s: %w", abs, err)
	}
	return &Local{Dir: abs}, nil
}

// Upload copies r to Dir/objectPath and returns its file:// URL.
func (l *Local) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, _ string) (string, error) {
	dest := filepath.Join(l.Dir, filepath.FromSlash(objectPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0700); err != nil {
		return "", fmt.Errorf("local media: %w", err)
	}

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("local media: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, MaxUploadBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxUploadBytes {
		err = ErrTooLarge
	}
	if err == nil && size >= 0 && n != size {
		err = fmt.Errorf("short write: %d of %d bytes", n, size)
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("local media: %w", err)
	}

	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(dest)}).String(), nil
}
