package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskhub/cmd/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (refresh_sessions).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const rowColumns = `id, user_id, token_hash, COALESCE(previous_token_hash, ''), expires_at, created_at, updated_at`

// Insert implements Store.
func (s *PostgresStore) Insert(ctx context.Context, row Row) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_sessions (id, user_id, token_hash, previous_token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, NULL, $4, $5)
	`, row.ID, row.UserID, row.TokenHash, row.ExpiresAt, row.CreatedAt)
	if err != nil {
		if _, ok := storage.UniqueViolation(err); ok {
			return ErrConflict
		}
		if storage.ForeignKeyViolation(err) {
			return fmt.Errorf("session: unknown user %q: %w", row.UserID, ErrNotFound)
		}
		return err
	}
	return nil
}

// FindByValue implements Store.
func (s *PostgresStore) FindByValue(ctx context.Context, tokenHash string) (Row, error) {
	return scanRow(s.pool.QueryRow(ctx,
		`SELECT `+rowColumns+` FROM refresh_sessions WHERE token_hash = $1`, tokenHash))
}

// Update implements Store.
func (s *PostgresStore) Update(ctx context.Context, id uuid.UUID, newHash string, newExpiresAt, now time.Time) error {
	_, err := updateRow(ctx, s.pool, id, newHash, newExpiresAt, now)
	return err
}

// Expire implements Store.
func (s *PostgresStore) Expire(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_sessions
		SET expires_at = $2, updated_at = $2
		WHERE id = $1 AND expires_at > $2
	`, id, now)
	return err
}

// Rotate implements Store.
//
// The row is locked with SELECT ... FOR UPDATE. A concurrent caller holding
// the same value blocks on the lock and, once the winner commits, re-evaluates
// token_hash against the new version and finds nothing.
func (s *PostgresStore) Rotate(ctx context.Context, in RotateInput) (Row, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Row{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row, err := scanRow(tx.QueryRow(ctx,
		`SELECT `+rowColumns+` FROM refresh_sessions WHERE token_hash = $1 FOR UPDATE`, in.PresentedHash))
	if errors.Is(err, ErrNotFound) {
		prev, perr := scanRow(tx.QueryRow(ctx,
			`SELECT `+rowColumns+` FROM refresh_sessions WHERE previous_token_hash = $1`, in.PresentedHash))
		if perr == nil {
			return prev, ReuseError{SessionID: prev.ID, UserID: prev.UserID}
		}
		if errors.Is(perr, ErrNotFound) {
			return Row{}, ErrNotFound
		}
		return Row{}, perr
	}
	if err != nil {
		return Row{}, err
	}

	if !row.Live(in.Now) {
		return row, ErrExpired
	}

	updated, err := updateRow(ctx, tx, row.ID, in.NewHash, in.NewExpiresAt, in.Now)
	if err != nil {
		return Row{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Row{}, err
	}
	return updated, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func updateRow(ctx context.Context, q querier, id uuid.UUID, newHash string, newExpiresAt, now time.Time) (Row, error) {
	row, err := scanRow(q.QueryRow(ctx, `
		UPDATE refresh_sessions
		SET previous_token_hash = token_hash,
		    token_hash = $2,
		    expires_at = $3,
		    updated_at = $4
		WHERE id = $1
		RETURNING `+rowColumns, id, newHash, newExpiresAt, now))
	if err != nil {
		if _, ok := storage.UniqueViolation(err); ok {
			return Row{}, ErrConflict
		}
		return Row{}, err
	}
	return row, nil
}

func scanRow(r pgx.Row) (Row, error) {
	var row Row
	err := r.Scan(
		&row.ID,
		&row.UserID,
		&row.TokenHash,
		&row.PreviousTokenHash,
		&row.ExpiresAt,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrNotFound
	}
	if err != nil {
		return Row{}, err
	}
	return row, nil
}
