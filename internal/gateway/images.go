// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// maxImageBytes bounds how much of an image is read into memory.
const maxImageBytes = 20 << 20

// image is an attachment resolved to bytes.
type image struct {
	MediaType string
	Data      []byte
}

// dataURL renders the image as an RFC 2397 data URL.
func (i image) dataURL() string {
	return "data:" + i.MediaType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// isRemoteURL reports whether a provider can fetch ref itself.
func isRemoteURL(ref string) bool {
	return strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://")
}

// fetchImage loads an image from an http(s), file or data URL and sniffs its
// media type.
func fetchImage(ctx context.Context, client *http.Client, ref string) (image, error) {
	var data []byte
	var err error

	switch {
	case strings.HasPrefix(ref, "data:"):
		data, err = decodeDataURL(ref)
	case strings.HasPrefix(ref, "file://"):
		var u *url.URL
		u, err = url.Parse(ref)
		if err == nil {
			data, err = readLimited(func() (io.ReadCloser, error) { return os.Open(u.Path) })
		}
	case isRemoteURL(ref):
		data, err = readLimited(func() (io.ReadCloser, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
			}
			return resp.Body, nil
		})
	default:
		err = fmt.Errorf("unsupported image reference")
	}
	if err != nil {
		return image{}, fmt.Errorf("load image %s: %w", ref, err)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return image{}, fmt.Errorf("load image %s: not an image (%s)", ref, mt.String())
	}
	return image{MediaType: baseMediaType(mt.String()), Data: data}, nil
}

func readLimited(open func() (io.ReadCloser, error)) ([]byte, error) {
	rc, err := open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	return data, nil
}

func decodeDataURL(ref string) ([]byte, error) {
	comma := strings.IndexByte(ref, ',')
	if comma < 0 || !strings.HasSuffix(ref[:comma], ";base64") {
		return nil, fmt.Errorf("malformed data URL")
	}
	return base64.StdEncoding.DecodeString(ref[comma+1:])
}

// baseMediaType strips parameters such as "; charset=binary".
func baseMediaType(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		return strings.TrimSpace(mt[:i])
	}
	return mt
}
