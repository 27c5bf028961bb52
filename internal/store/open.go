package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"chess-puzzle-bot/internal/config"
	"chess-puzzle-bot/internal/pkg/db"
)

// Open builds the Store selected by cfg.Driver. The returned func releases
// any connection the backend holds.
func Open(ctx context.Context, cfg *config.StorageConfig) (Store, func(), error) {
	switch cfg.Driver {
	case "", "file":
		log.Info().Str("path", cfg.Path).Msg("Using file document store")
		return NewFileStore(cfg.Path), func() {}, nil

	case "memory":
		log.Warn().Msg("Using in-memory document store, state is lost on restart")
		return NewMemoryStore(), func() {}, nil

	case "postgres":
		pool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		st := NewPostgresStore(pool.Pool, cfg.Name)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return st, pool.Close, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Using redis document store")
		return NewRedisStore(client, cfg.Redis.Prefix), func() { client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
