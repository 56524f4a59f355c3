package txstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTable = `CREATE TABLE IF NOT EXISTS convtrack_schema_transactions (
	schema_name    TEXT PRIMARY KEY,
	transaction_id TEXT NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsert = `INSERT INTO convtrack_schema_transactions (schema_name, transaction_id, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (schema_name) DO UPDATE SET transaction_id = EXCLUDED.transaction_id, updated_at = now()`

// PostgresStore keeps the mapping in a table shared by every CLI user of the
// database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and creates the table when missing.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create store table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Lookup(ctx context.Context, schema string) (string, bool, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT transaction_id FROM convtrack_schema_transactions WHERE schema_name = $1`, schema).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, schema, id string) error {
	_, err := s.pool.Exec(ctx, upsert, schema, id)
	return err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
