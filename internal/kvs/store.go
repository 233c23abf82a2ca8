// Package kvs provides the key-value stores reducer state is persisted in.
//
// The reduction core only needs key-scoped Get and Set; no backend offers
// transactions or multi-key operations through this interface.
package kvs

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/observerd/internal/config"
	"github.com/nats-io/nats.go"
)

var (
	// ErrNotFound is returned by Get when the key has never been set.
	ErrNotFound = errors.New("key not found")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown store backend")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store closed")
)

// Store is a string-keyed byte store.
type Store interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Close releases backend resources.
	Close() error
}

// Open builds the backend named in cfg. nc is required for the NATS backend
// and ignored otherwise.
func Open(ctx context.Context, cfg config.StoreConfig, nc *nats.Conn) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password.Value(),
			DB:       cfg.Redis.DB,
			TTL:      cfg.TTL.Duration(),
		})
	case config.BackendNATS:
		if nc == nil {
			return nil, fmt.Errorf("nats backend requires a connection")
		}
		return NewNATSStore(nc, cfg.NATS.Bucket, cfg.TTL.Duration())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
