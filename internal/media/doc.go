// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package media uploads image attachments and returns URLs the AI gateway
// can read.
//
// # Key Types
//
//   - Uploader: Upload(ctx, objectPath, reader, size, contentType) → URL
//   - MinIO: S3-compatible object storage (public base URL or presigned GET)
//   - Local: Copies files under a directory and returns file:// URLs
//
// # Usage
//
//	up, err := media.New(ctx, cfg)
//	url, err := media.UploadFile(ctx, up, user.ID, "/home/me/cat.png")
package media
