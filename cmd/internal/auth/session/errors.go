package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by a Store when no row matches.
	ErrNotFound = errors.New("refresh session not found")

	// ErrExpired is returned by Store.Rotate when the matching row is no longer live.
	ErrExpired = errors.New("refresh session expired")

	// ErrConflict is returned when a token hash collides with an existing row.
	ErrConflict = errors.New("refresh session conflict")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// ReuseError is returned by Store.Rotate when the presented hash is the one
// the last rotation of a session replaced.
type ReuseError struct {
	SessionID uuid.UUID
	UserID    string
}

func (e ReuseError) Error() string {
	return fmt.Sprintf("refresh value reused for session %s", e.SessionID)
}
