// Package storage keeps projects and their conversations in memory and
// persists them to a key-value backend.
package storage

import (
	"errors"
	"fmt"

	"pchat/config"
)

// ErrNotFound is returned by KV.Get for a missing key.
var ErrNotFound = errors.New("key not found")

// KV is the persistence backend of a Store. Values are opaque JSON documents.
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
	Close() error
}

// OpenKV opens the backend named by the storage config in dataDir.
func OpenKV(cfg config.StorageConfig, dataDir string) (KV, error) {
	switch cfg.Backend {
	case config.StorageJSON, "":
		return NewFileKV(dataDir)
	case config.StorageSQLite:
		return NewSQLiteKV(dataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
