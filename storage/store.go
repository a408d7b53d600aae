package storage

import (
	"context"
	"fmt"

	"StemDeck/config"

	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// KVStore is durable string-keyed storage for the library cache.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open creates the store selected by cfg.StoreDriver.
func Open(cfg *config.Config) (KVStore, error) {
	switch cfg.StoreDriver {
	case "", "sqlite":
		return NewSQLiteStore(cfg.StorePath)
	case "redis":
		return NewRedisStore(cfg)
	case "mysql":
		return NewGormStore(cfg)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
