// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package media

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Backend names accepted by New.
const (
	BackendLocal = "local"
	BackendMinIO = "minio"
)

// Config selects and configures an uploader.
type Config struct {
	Backend  string
	LocalDir string
	MinIO    MinIOConfig
}

// New builds the uploader for cfg.Backend. The MinIO bucket is created if
// missing.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Uploader, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendLocal, "":
		return NewLocal(cfg.LocalDir)
	case BackendMinIO:
		m, err := NewMinIO(cfg.MinIO, logger)
		if err != nil {
			return nil, err
		}
		if err := m.Init(ctx); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
