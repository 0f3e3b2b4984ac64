package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a KeyValueStore over a single omni_kv table. The schema is
// applied by db.Migrate before the pool is handed to NewPostgres.
//
// Postgres is safe for concurrent use; each call is a single statement and
// Set is an upsert, so last-write-wins per key.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed store on an existing pool.
// The pool's lifecycle is owned by the caller.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Get implements KeyValueStore.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	var value []byte
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM omni_kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("getting %q: %w", key, err)
	}
	return value, nil
}

// Set implements KeyValueStore.
func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO omni_kv (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, updated_at = now()`, key, value)
	if err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}
	return nil
}

// Delete implements KeyValueStore.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	if _, err := p.pool.Exec(ctx,
		`DELETE FROM omni_kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}
