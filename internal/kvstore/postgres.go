package kvstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxQuerier is the subset of *pgxpool.Pool used by Postgres; pgxmock satisfies it too.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is a Store over the timer_kv table, for agents sharing a database.
type Postgres struct {
	pool pgxQuerier
}

// NewPostgres constructs a Postgres-backed store.
func NewPostgres(pool pgxQuerier) *Postgres { return &Postgres{pool: pool} }

// Get implements Store.
func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	const q = `SELECT value FROM timer_kv WHERE key=$1`
	var v string
	err := p.pool.QueryRow(ctx, q, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set implements Store.
func (p *Postgres) Set(ctx context.Context, key, value string) error {
	const q = `
INSERT INTO timer_kv (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	_, err := p.pool.Exec(ctx, q, key, value)
	return err
}

// Remove implements Store.
func (p *Postgres) Remove(ctx context.Context, key string) error {
	const q = `DELETE FROM timer_kv WHERE key=$1`
	_, err := p.pool.Exec(ctx, q, key)
	return err
}
