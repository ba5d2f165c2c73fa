package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskhub/cmd/identity/ids"
	"taskhub/cmd/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
// The pgx pool is owned by the caller; this store does not close it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

const userColumns = `id, username, full_name, email, age, password_hash, created_at`

// CreateUser inserts a user with a fresh ULID.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	in, err := validateCreate(op, in)
	if err != nil {
		return User{}, err
	}

	id, err := ids.NewULID(in.Now)
	if err != nil {
		return User{}, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO users (
		     id, username, username_norm, full_name, email, email_norm, age, password_hash, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id,
		in.Username,
		NormalizeUsername(in.Username),
		in.FullName,
		in.Email,
		NormalizeEmail(in.Email),
		in.Age,
		in.PasswordHash,
		in.Now,
	)
	if err != nil {
		if c, ok := storage.UniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: conflictField(c)}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	return User{
		ID:           id,
		Username:     in.Username,
		FullName:     in.FullName,
		Email:        in.Email,
		Age:          in.Age,
		PasswordHash: in.PasswordHash,
		CreatedAt:    in.Now,
	}, nil
}

// GetUserByUsername looks a user up by normalized username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	const op = "identity.GetUserByUsername"

	norm := NormalizeUsername(username)
	if norm == "" {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username_norm = $1`, norm)
	return scanUser(op, row)
}

// GetUserByID looks a user up by id.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(op, row)
}

func scanUser(op string, row pgx.Row) (User, error) {
	var (
		u         User
		createdAt time.Time
	)
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.Age, &u.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	u.CreatedAt = createdAt.UTC()
	return u, nil
}

// conflictField maps stable constraint names to logical fields.
func conflictField(constraint string) string {
	c := strings.ToLower(strings.TrimSpace(constraint))
	switch {
	case c == "uq_users_username_norm", strings.Contains(c, "username"):
		return "username"
	case c == "uq_users_email_norm", strings.Contains(c, "email"):
		return "email"
	default:
		return "unique"
	}
}
