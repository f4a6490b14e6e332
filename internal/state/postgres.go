package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// #region postgres-schema
const pgSchema = `
CREATE TABLE IF NOT EXISTS align_state (
	device_key  TEXT PRIMARY KEY,
	version_id  TEXT NOT NULL,
	blob        TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// #endregion postgres-schema

// #region postgres-store
// PostgresStore keeps the latest blob per device in a single Postgres table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pool, pings it and ensures the table exists.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresStore) Load(ctx context.Context, deviceKey string) (string, error) {
	var blob string
	err := p.pool.QueryRow(ctx, `SELECT blob FROM align_state WHERE device_key = $1`, deviceKey).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("postgres load %s: %w", deviceKey, err)
	}
	return blob, nil
}

func (p *PostgresStore) Save(ctx context.Context, deviceKey, blob string) (string, error) {
	id := uuid.New().String()
	_, err := p.pool.Exec(ctx,
		`INSERT INTO align_state (device_key, version_id, blob, updated_at) VALUES ($1, $2, $3, now())
		 ON CONFLICT (device_key) DO UPDATE SET version_id = EXCLUDED.version_id, blob = EXCLUDED.blob, updated_at = now()`,
		deviceKey, id, blob,
	)
	if err != nil {
		return "", fmt.Errorf("postgres save %s: %w", deviceKey, err)
	}
	return id, nil
}

func (p *PostgresStore) Delete(ctx context.Context, deviceKey string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM align_state WHERE device_key = $1`, deviceKey); err != nil {
		return fmt.Errorf("postgres delete %s: %w", deviceKey, err)
	}
	return nil
}

// #endregion postgres-store
