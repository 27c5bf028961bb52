package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chess-puzzle-bot/internal/model"
)

// PostgresStore keeps the document as a single JSONB row.
type PostgresStore struct {
	pool *pgxpool.Pool
	name string
}

// NewPostgresStore creates a PostgresStore for the named document.
func NewPostgresStore(pool *pgxpool.Pool, name string) *PostgresStore {
	if name == "" {
		name = "main"
	}
	return &PostgresStore{pool: pool, name: name}
}

// Migrate creates the documents table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bot_documents (
			name VARCHAR(64) PRIMARY KEY,
			body JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create bot_documents table: %w", err)
	}
	return nil
}

// Load reads the document row.
func (s *PostgresStore) Load(ctx context.Context) (*model.Document, error) {
	const query = `SELECT body FROM bot_documents WHERE name = $1`

	var body []byte
	if err := s.pool.QueryRow(ctx, query, s.name).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return decode(body)
}

// Save upserts the whole document row.
func (s *PostgresStore) Save(ctx context.Context, doc *model.Document) error {
	const query = `
		INSERT INTO bot_documents (name, body, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()
	`

	body, err := encode(doc)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, s.name, string(body)); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}
