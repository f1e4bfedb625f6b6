// Package backend opens the slot storage named by a larder.yml configuration.
package backend

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/larder/internal/config"
	"github.com/dyluth/larder/internal/memslot"
	"github.com/dyluth/larder/internal/sqlslot"
	"github.com/dyluth/larder/pkg/slot"
	"github.com/redis/go-redis/v9"
)

// Storage is a slot.Storage that must be closed after use.
type Storage interface {
	slot.Storage
	io.Closer
}

// Open connects to the configured backend and verifies it is reachable.
// The memory backend gets a fresh origin per call.
func Open(ctx context.Context, cfg *config.LarderConfig) (Storage, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client, err := slot.NewClient(redisOpts, cfg.Origin, cfg.Area)
		if err != nil {
			return nil, fmt.Errorf("failed to create slot client: %w", err)
		}
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("Redis not accessible at %s: %w", cfg.Redis.URL, err)
		}
		return client, nil

	case config.BackendSQLite:
		store, err := sqlslot.Open(cfg.SQLite.Path, cfg.Area)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite slot store: %w", err)
		}
		return store, nil

	case config.BackendMemory:
		return nopCloser{memslot.NewOrigin(cfg.Origin).Open(cfg.Area)}, nil

	default:
		return nil, fmt.Errorf("unknown backend '%s'", cfg.Backend)
	}
}

type nopCloser struct {
	*memslot.Storage
}

func (nopCloser) Close() error { return nil }
