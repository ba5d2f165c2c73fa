package app

import (
	"context"
	"time"

	"taskhub/cmd/identity"
	"taskhub/cmd/internal/auth/session"
	"taskhub/cmd/internal/storage"
	"taskhub/cmd/internal/tasks"

	"github.com/jackc/pgx/v5/pgxpool"
)

// stores bundles the persistence backends selected at startup.
type stores struct {
	users    identity.Store
	sessions session.Store
	tasks    tasks.Store

	// pool is nil in memory mode.
	pool *pgxpool.Pool
}

func (s stores) dbEnabled() bool { return s.pool != nil }

func (s stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// openStores picks Postgres when a database URL is configured and in-memory
// stores otherwise.
func openStores(ctx context.Context, cfg Config, log Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return stores{
			users:    identity.NewMemoryStore(),
			sessions: session.NewMemoryStore(),
			tasks:    tasks.NewMemoryStore(),
		}, nil
	}

	pool, err := storage.NewPool(ctx, storage.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return stores{}, err
	}

	if cfg.DBMigrate {
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		n, err := storage.Migrate(migrateCtx, pool)
		cancel()
		if err != nil {
			pool.Close()
			return stores{}, err
		}
		log.Info("db.migrate.done", "applied", n)
	}

	users, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return stores{}, err
	}
	taskStore, err := tasks.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return stores{}, err
	}

	log.Info("db.enabled.postgres_store")
	return stores{
		users:    users,
		sessions: session.NewPostgresStore(pool),
		tasks:    taskStore,
		pool:     pool,
	}, nil
}

// pingDB is used by /readyz.
func pingDB(ctx context.Context, pool *pgxpool.Pool) error {
	return storage.Ping(ctx, pool, 2*time.Second)
}
