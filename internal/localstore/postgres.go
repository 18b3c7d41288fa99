package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the table PostgresStore uses. Run by EnsureSchema.
const Schema = `CREATE TABLE IF NOT EXISTS client_storage (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	expires_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, key)
)`

// PostgresStore implements Store on a PostgreSQL table. Rows are scoped by
// namespace so several panels can share one database.
type PostgresStore struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool, namespace string) *PostgresStore {
	if namespace == "" {
		namespace = "default"
	}
	return &PostgresStore{pool: pool, namespace: namespace}
}

// EnsureSchema creates the backing table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM client_storage
		 WHERE namespace = $1 AND key = $2
		   AND (expires_at IS NULL OR expires_at > now())`,
		s.namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var expires *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expires = &t
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO client_storage (namespace, key, value, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (namespace, key)
		 DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		s.namespace, key, value, expires)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM client_storage WHERE namespace = $1 AND key = $2`,
		s.namespace, key)
	return err
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM client_storage WHERE namespace = $1`, s.namespace)
	return err
}
