// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

// =============================================================================
// ERRORS
// =============================================================================

// ErrKeyNotFound is returned by KV.Get when the key has never been written
// or was deleted. Use errors.Is(err, ErrKeyNotFound) to check for it.
var ErrKeyNotFound = &StorageError{Message: "key not found"}

// ErrClosed is returned when a backend is used after Close.
var ErrClosed = &StorageError{Message: "storage closed"}

// ErrUnknownBackend is returned by Open for an unrecognised backend name.
var ErrUnknownBackend = &StorageError{Message: "unknown storage backend"}

// StorageError represents a storage-related error.
// It implements the error interface and can be compared using errors.Is.
type StorageError struct {
	Message string
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing storage errors.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
