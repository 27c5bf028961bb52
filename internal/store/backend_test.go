package store

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"chess-puzzle-bot/internal/config"
	"chess-puzzle-bot/internal/model"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool.
// Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	return pool, func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
}

func sampleDocument() *model.Document {
	doc := model.NewDocument()
	doc.Puzzles = append(doc.Puzzles, &model.Puzzle{
		ID: "p1", Number: 1, Title: "Mate in one", ImageRef: "file-1",
		Options:   []model.Option{{Text: "Qh7#", IsCorrect: true}, {Text: "Qg6"}},
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Postings: []model.Posting{{
			ChatID: -100, MessageID: 42,
			Mapping: map[string]string{"A": "Qg6", "B": "Qh7#"},
		}},
	})
	doc.Groups[-100] = &model.Group{ChatID: -100, Title: "Club", NextPuzzleIndex: 1}
	return doc
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	st := NewPostgresStore(pool, "")
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Migrate(ctx), "migrate must be repeatable")

	_, err := st.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Save(ctx, sampleDocument()))

	doc := sampleDocument()
	doc.Groups[-100].NextPuzzleIndex = 0
	require.NoError(t, st.Save(ctx, doc), "second save overwrites")

	loaded, err := st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Puzzles, 1)
	assert.Equal(t, "Qh7#", loaded.Puzzles[0].Postings[0].Mapping["B"])
	assert.Equal(t, 0, loaded.Groups[-100].NextPuzzleIndex)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	st := NewRedisStore(client, "test")

	_, err := st.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Save(ctx, sampleDocument()))
	assert.True(t, mr.Exists("test:document"))
	assert.Equal(t, time.Duration(0), mr.TTL("test:document"))

	loaded, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Club", loaded.Groups[-100].Title)
	assert.Equal(t, 1, loaded.Groups[-100].NextPuzzleIndex)
}

func TestRedisStore_CorruptBody(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set("puzzlebot:document", "{not json"))

	_, err := NewRedisStore(client, "").Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("file", func(t *testing.T) {
		st, closeFn, err := Open(ctx, &config.StorageConfig{Driver: "file", Path: t.TempDir() + "/doc.json"})
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &FileStore{}, st)
	})

	t.Run("memory", func(t *testing.T) {
		st, closeFn, err := Open(ctx, &config.StorageConfig{Driver: "memory"})
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &MemoryStore{}, st)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := &config.StorageConfig{Driver: "redis", Redis: config.RedisConfig{Addr: mr.Addr(), Prefix: "bot"}}
		st, closeFn, err := Open(ctx, cfg)
		require.NoError(t, err)
		defer closeFn()

		require.NoError(t, st.Save(ctx, model.NewDocument()))
		assert.True(t, mr.Exists("bot:document"))
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, _, err := Open(ctx, &config.StorageConfig{Driver: "etcd"})
		assert.Error(t, err)
	})
}
