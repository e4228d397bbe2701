// Package store implements the durable side of the room registry.
package store

import (
	"context"
	"fmt"

	"github.com/dkeye/Hangout/internal/core"
	"github.com/rs/zerolog/log"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresURL string
	RedisURL    string
}

// Open connects the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (core.RoomStore, error) {
	log.Info().Str("module", "store").Str("driver", opts.Driver).Msg("opening room store")
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(ctx, opts.SQLitePath)
	case DriverPostgres:
		if opts.PostgresURL == "" {
			return nil, fmt.Errorf("store: postgres_url is required for the postgres driver")
		}
		return NewPostgresStore(ctx, opts.PostgresURL)
	case DriverRedis:
		if opts.RedisURL == "" {
			return nil, fmt.Errorf("store: redis_url is required for the redis driver")
		}
		return NewRedisStore(ctx, opts.RedisURL)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", opts.Driver)
	}
}
