// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keychain.
//
// go-keychain is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package storage provides the key-value layer behind the on-chain ledger
// collaborators: the parameter registry, the spent-token set and the
// authorization wallet. It supports in-memory and file-based backends with
// a common interface.
package storage

import (
	"io/fs"
)

// Backend defines the interface for storage backends.
// All implementations must be thread-safe.
type Backend interface {
	// Get retrieves the value for the given key.
	// Returns ErrNotFound if the key does not exist.
	Get(key string) ([]byte, error)

	// Put stores the value for the given key.
	// If the key already exists, it will be overwritten.
	Put(key string, value []byte, opts *Options) error

	// Delete removes the key and its value from storage.
	// Returns ErrNotFound if the key does not exist.
	Delete(key string) error

	// List returns all keys with the given prefix in sorted order.
	// If prefix is empty, all keys are returned.
	List(prefix string) ([]string, error)

	// Exists checks if a key exists in storage.
	Exists(key string) (bool, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Creator is implemented by backends that can store a key only when it is
// absent, atomically with respect to concurrent callers. The spent-token set
// relies on it so two racing authentications cannot both consume a token.
type Creator interface {
	// Create stores value under key, or returns ErrAlreadyExists.
	Create(key string, value []byte, opts *Options) error
}

// Options contains optional parameters for storage operations.
type Options struct {
	// Permissions sets the file permissions for file-based storage
	Permissions fs.FileMode

	// Metadata contains additional key-value pairs for storage operations
	Metadata map[string]string
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		Permissions: 0600,
		Metadata:    make(map[string]string),
	}
}

// CreateIfAbsent stores value under key only when the key does not exist.
// Backends implementing Creator perform the check atomically; for others the
// check and write are two calls and the caller must serialize access.
func CreateIfAbsent(b Backend, key string, value []byte, opts *Options) error {
	if c, ok := b.(Creator); ok {
		return c.Create(key, value, opts)
	}
	exists, err := b.Exists(key)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyExists
	}
	return b.Put(key, value, opts)
}
