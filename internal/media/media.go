// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ObjectPrefix is the top-level folder for chat image uploads.
const ObjectPrefix = "chat-images"

// MaxUploadBytes bounds a single attachment.
const MaxUploadBytes = 20 << 20

var (
	// ErrNotImage is returned when an attachment is not an image.
	ErrNotImage = errors.New("file is not an image")

	// ErrTooLarge is returned for attachments over MaxUploadBytes.
	ErrTooLarge = errors.New("file too large")

	// ErrUnknownBackend is returned by New for an unrecognised backend.
	ErrUnknownBackend = errors.New("unknown media backend")
)

// Uploader stores an object and returns a URL from which it can be read.
type Uploader interface {
	Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (string, error)
}

// ObjectPath returns chat-images/<user>/<uuid>-<name> with the user id and
// file name reduced to safe characters.
func ObjectPath(userID, filename string) string {
	return path.Join(ObjectPrefix, sanitize(userID, "anonymous"), uuid.NewString()+"-"+sanitize(filepath.Base(filename), "image"))
}

// UploadFile validates a local image file and uploads it under ObjectPath.
func UploadFile(ctx context.Context, up Uploader, userID, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat attachment: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotImage, filePath)
	}
	if info.Size() > MaxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, info.Size(), MaxUploadBytes)
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("detect type: %w", err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: %s is %s", ErrNotImage, filepath.Base(filePath), mt.String())
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind attachment: %w", err)
	}

	return up.Upload(ctx, ObjectPath(userID, filePath), f, info.Size(), mt.String())
}

func sanitize(s, fallback string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	s = strings.Trim(s, "._")
	if s == "" {
		return fallback
	}
	return s
}
