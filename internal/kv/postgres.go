package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxConn is the subset of *pgxpool.Pool used by PostgresStore.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps entries in the kv_entries table created by cmd/migrate.
type PostgresStore struct {
	pool PgxConn
}

// NewPostgresStore wraps a connected pool.
func NewPostgresStore(pool PgxConn) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1`, key,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapPostgres("get", key, err)
	}
	return v, true, nil
}

func (p *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO kv_entries (key, value)
		 VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value,
	)
	if err != nil {
		return wrapPostgres("set", key, err)
	}
	return nil
}

func (p *PostgresStore) Remove(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return wrapPostgres("remove", key, err)
	}
	return nil
}

// wrapPostgres maps disk_full (53100) and program_limit_exceeded (54000) to
// ErrQuotaExceeded.
func wrapPostgres(op, key string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "53100" || pgErr.Code == "54000") {
		return fmt.Errorf("%w: postgres %s %s: %w", ErrQuotaExceeded, op, key, err)
	}
	return fmt.Errorf("%w: postgres %s %s: %w", ErrUnavailable, op, key, err)
}
