// Package storage provides the local key/value store prompts and the API
// credential are persisted to.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Well-known keys. Values are opaque blobs; there is no schema versioning.
const (
	KeyPrompts    = "savedPrompts"
	KeyCredential = "apiKey"
)

// ErrNotFound is returned by Get when a key has never been set.
var ErrNotFound = errors.New("key not found")

// Store is the interface for key/value backends.
type Store interface {
	// Get retrieves the value stored under key.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Name returns the backend name.
	Name() string
	// Close releases any resources held by the backend.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Provider is one of "file", "sqlite" or "memory".
	Provider string
	// Path is the backing file for the file and sqlite providers.
	Path string
}

// Open creates the backend named by cfg.Provider.
func Open(cfg Config) (Store, error) {
	switch cfg.Provider {
	case "file", "":
		return NewFileStore(cfg.Path)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}
