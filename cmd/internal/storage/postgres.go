// Package storage holds the Postgres plumbing shared by the taskhub stores:
// pool construction, schema migrations and SQLSTATE classification.
//
// The pgx pool is owned by the caller. Stores built on it must not close it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskhub/cmd/internal/storage/migrations"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PoolConfig controls pool sizing.
type PoolConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
	// RuntimeParams are applied to every connection (e.g. search_path).
	RuntimeParams map[string]string
}

// NewPool builds a pgxpool and validates connectivity.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("storage: parse database url: %w", err)
	}

	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns >= 0 {
		pcfg.MinConns = cfg.MinConns
	}
	for k, v := range cfg.RuntimeParams {
		pcfg.ConnConfig.RuntimeParams[k] = v
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}

	if err := Ping(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Ping checks if a connection can be acquired within timeout.
func Ping(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	if pool == nil {
		return errors.New("storage: nil pool")
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// Migrate applies all pending migrations. It is safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	if pool == nil {
		return 0, errors.New("storage: nil pool")
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return 0, fmt.Errorf("storage: goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("storage: migrate: %w", err)
	}
	return len(results), nil
}

// UniqueViolation reports whether err is a Postgres unique_violation (23505)
// and returns the violated constraint name.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" {
		return "", false
	}
	return pgErr.ConstraintName, true
}

// ForeignKeyViolation reports whether err is a Postgres foreign_key_violation (23503).
func ForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503"
}
