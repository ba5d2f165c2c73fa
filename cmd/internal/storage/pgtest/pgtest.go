// Package pgtest opens throwaway Postgres schemas for integration tests.
//
// Tests are opt-in: they skip unless TASKHUB_DATABASE_URL is set. Outside CI an
// unreachable server also skips.
package pgtest

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"taskhub/cmd/identity/ids"
	"taskhub/cmd/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnvKey names the database URL used by integration tests.
const EnvKey = "TASKHUB_DATABASE_URL"

// Open returns a pool whose search_path points at a fresh, fully migrated
// schema. The schema is dropped and the pool closed on test cleanup.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv(EnvKey))
	if raw == "" {
		t.Skip("integration test skipped: " + EnvKey + " is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	admin, err := storage.NewPool(ctx, storage.PoolConfig{URL: raw, MaxConns: 2})
	if err != nil {
		if shouldSkip(err) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("connect postgres: %v", err)
	}

	id, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		admin.Close()
		t.Fatalf("ulid: %v", err)
	}
	schema := "taskhub_it_" + strings.ToLower(id)
	quoted := pgx.Identifier{schema}.Sanitize()

	if _, err := admin.Exec(ctx, `CREATE SCHEMA `+quoted); err != nil {
		admin.Close()
		t.Fatalf("create schema: %v", err)
	}

	pool, err := storage.NewPool(ctx, storage.PoolConfig{
		URL:           raw,
		MaxConns:      16,
		RuntimeParams: map[string]string{"search_path": schema},
	})
	if err != nil {
		admin.Close()
		t.Fatalf("connect schema pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		dctx, dcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dcancel()
		_, _ = admin.Exec(dctx, `DROP SCHEMA IF EXISTS `+quoted+` CASCADE`)
		admin.Close()
	})

	if _, err := storage.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func shouldSkip(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}
