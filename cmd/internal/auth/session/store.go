package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Row mirrors a refresh_sessions row.
type Row struct {
	ID                uuid.UUID
	UserID            string
	TokenHash         string
	PreviousTokenHash string
	ExpiresAt         time.Time
	CreatedAt         time.Time
	UpdatedAt         *time.Time
}

// Live reports whether the row can still be used at now.
func (r Row) Live(now time.Time) bool { return now.Before(r.ExpiresAt) }

// RotateInput describes one atomic rotation.
type RotateInput struct {
	PresentedHash string
	NewHash       string
	NewExpiresAt  time.Time
	Now           time.Time
}

// Store abstracts persistence for refresh sessions.
type Store interface {
	// Insert stores a new row. A duplicate token hash returns ErrConflict.
	Insert(ctx context.Context, row Row) error

	// FindByValue loads the row whose current token hash matches, or ErrNotFound.
	FindByValue(ctx context.Context, tokenHash string) (Row, error)

	// Update replaces the token hash and expiration of a row by id.
	Update(ctx context.Context, id uuid.UUID, newHash string, newExpiresAt, now time.Time) error

	// Expire sets expires_at to now if it is later. Idempotent; unknown ids are a no-op.
	Expire(ctx context.Context, id uuid.UUID, now time.Time) error

	// Rotate finds the live row holding PresentedHash and replaces its value in
	// one serialized step, recording PresentedHash as the previous value.
	//
	// Errors: ErrExpired if the row is no longer live, ReuseError if
	// PresentedHash is a session's previous value, ErrNotFound otherwise.
	Rotate(ctx context.Context, in RotateInput) (Row, error)
}
