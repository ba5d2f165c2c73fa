package identity

import (
	"context"
	"strings"
	"time"
)

// User is a taskhub account.
type User struct {
	ID           string
	Username     string
	FullName     string
	Email        string
	Age          int
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUserInput describes a registration. PasswordHash is already encoded
// by cmd/security/password.
type CreateUserInput struct {
	Username     string
	FullName     string
	Email        string
	Age          int
	PasswordHash string
	Now          time.Time
}

// Store is the user persistence boundary.
//
// Lookups of a missing user return an error satisfying IsNotFound. A duplicate
// username or email (case-insensitive) returns ConflictError.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
}

func validateCreate(op string, in CreateUserInput) (CreateUserInput, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	switch {
	case in.Username == "":
		return in, invalid(op, "username is required")
	case in.Email == "":
		return in, invalid(op, "email is required")
	case !strings.Contains(in.Email, "@"):
		return in, invalid(op, "email is malformed")
	case in.Age < 0:
		return in, invalid(op, "age must be non-negative")
	case strings.TrimSpace(in.PasswordHash) == "":
		return in, invalid(op, "password hash is required")
	}

	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}

// NormalizeUsername returns the lookup key for a username. Usernames are
// unique case-insensitively.
func NormalizeUsername(s string) string { return foldKey(s) }

// NormalizeEmail returns the lookup key for an email address.
func NormalizeEmail(s string) string { return foldKey(s) }

func foldKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
