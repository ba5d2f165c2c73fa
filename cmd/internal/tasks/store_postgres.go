package tasks

import (
	"context"
	"errors"
	"fmt"

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
		return nil, fmt.Errorf("tasks: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

const taskColumns = `id, title, description, completed, owner_id, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, in CreateInput) (Task, error) {
	const op = "tasks.Create"

	in, err := validateCreate(in)
	if err != nil {
		return Task{}, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (title, description, owner_id, created_at, updated_at)
		   VALUES ($1, $2, $3, $4, $4)
		 RETURNING `+taskColumns,
		in.Title, in.Description, in.OwnerID, in.Now)
	t, err := scanTask(op, row)
	if err != nil && storage.ForeignKeyViolation(err) {
		return Task{}, invalid("unknown owner")
	}
	return t, err
}

func (s *PostgresStore) List(ctx context.Context, skip, limit int) ([]Task, error) {
	const op = "tasks.List"

	if skip < 0 || limit < 0 {
		return nil, invalid("skip and limit must be non-negative")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY id OFFSET $1 LIMIT $2`, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]Task, 0, limit)
	for rows.Next() {
		t, err := scanTask(op, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask("tasks.Get", row)
}

func (s *PostgresStore) Update(ctx context.Context, id int64, in UpdateInput) (Task, error) {
	in, err := validateUpdate(in)
	if err != nil {
		return Task{}, err
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE tasks
		    SET title       = COALESCE($2, title),
		        description = COALESCE($3, description),
		        completed   = COALESCE($4, completed),
		        updated_at  = $5
		  WHERE id = $1
		 RETURNING `+taskColumns,
		id, in.Title, in.Description, in.Completed, in.Now)
	return scanTask("tasks.Update", row)
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) (Task, error) {
	row := s.pool.QueryRow(ctx, `DELETE FROM tasks WHERE id = $1 RETURNING `+taskColumns, id)
	return scanTask("tasks.Delete", row)
}

func scanTask(op string, row pgx.Row) (Task, error) {
	var t Task
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("%s: %w", op, err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}
