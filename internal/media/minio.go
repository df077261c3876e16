// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// PresignExpiry is the lifetime of presigned GET URLs (the S3 maximum).
const PresignExpiry = 7 * 24 * time.Hour

// MinIOConfig holds S3-compatible connection settings.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool

	// PublicBaseURL, when set, is used to build object URLs instead of
	// presigning, e.g. https://cdn.example.com.
	PublicBaseURL string
}

// MinIO uploads to an S3-compatible bucket.
type MinIO struct {
	mc     *minio.Client
	cfg    MinIOConfig
	logger *zap.Logger
}

// NewMinIO creates a client. It does not contact the server; call Init to
// ensure the bucket exists.
func NewMinIO(cfg MinIOConfig, logger *zap.Logger) (*MinIO, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio: endpoint and bucket are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinIO{mc: mc, cfg: cfg, logger: logger.Named("minio")}, nil
}

// Init creates the bucket if it does not exist.
func (m *MinIO) Init(ctx context.Context) error {
	exists, err := m.mc.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.cfg.Bucket, err)
	}
	if !exists {
		if err := m.mc.MakeBucket(ctx, m.cfg.Bucket, minio.MakeBucketOptions{Region: m.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", m.cfg.Bucket, err)
		}
		m.logger.Info("bucket created", zap.String("bucket", m.cfg.Bucket))
	}
	return nil
}

// Upload puts the object and returns its public or presigned URL.
func (m *MinIO) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := m.mc.PutObject(ctx, m.cfg.Bucket, objectPath, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", m.cfg.Bucket, objectPath, err)
	}
	m.logger.Debug("file uploaded",
		zap.String("bucket", m.cfg.Bucket),
		zap.String("name", objectPath),
		zap.Int64("size", info.Size))

	if m.cfg.PublicBaseURL != "" {
		return m.publicURL(objectPath), nil
	}
	u, err := m.mc.PresignedGetObject(ctx, m.cfg.Bucket, objectPath, PresignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", m.cfg.Bucket, objectPath, err)
	}
	return u.String(), nil
}

func (m *MinIO) publicURL(objectPath string) string {
	base := strings.TrimRight(m.cfg.PublicBaseURL, "/")
	escaped := (&url.URL{Path: objectPath}).EscapedPath()
	return base + "/" + m.cfg.Bucket + "/" + strings.TrimLeft(escaped, "/")
}
