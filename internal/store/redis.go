package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"chess-puzzle-bot/internal/model"
)

// RedisStore keeps the document under a single key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore using keys under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "puzzlebot"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Load reads the document key.
func (s *RedisStore) Load(ctx context.Context) (*model.Document, error) {
	body, err := s.client.Get(ctx, s.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return decode(body)
}

// Save overwrites the document key without expiry.
func (s *RedisStore) Save(ctx context.Context, doc *model.Document) error {
	body, err := encode(doc)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(), body, 0).Err(); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *RedisStore) key() string {
	return s.prefix + ":document"
}
