// Package autherr defines the authentication failure taxonomy shared by the
// token codec, the refresh session store and the session manager.
//
// Every variant matches ErrUnauthenticated via errors.Is, so the HTTP boundary
// can map all of them to a single 401 while logs and tests still see the
// specific cause.
package autherr

import "errors"

// ErrUnauthenticated is the umbrella kind for every authentication failure.
var ErrUnauthenticated = errors.New("unauthenticated")

// Error is a specific authentication failure.
type Error struct {
	reason string
}

func (e *Error) Error() string { return e.reason }

// Is reports ErrUnauthenticated as a match in addition to identity.
func (e *Error) Is(target error) bool { return target == ErrUnauthenticated }

var (
	// ErrInvalidCredentials is returned by login when the username is unknown or the password does not match.
	ErrInvalidCredentials = &Error{reason: "invalid credentials"}

	// ErrInvalidRefreshToken is returned when a refresh value is unknown, expired, or already rotated.
	ErrInvalidRefreshToken = &Error{reason: "invalid refresh token"}

	// ErrExpired is returned for an access token at or past its expiration instant.
	ErrExpired = &Error{reason: "token expired"}

	// ErrInvalidSignature is returned when the access token signature does not verify.
	ErrInvalidSignature = &Error{reason: "invalid token signature"}

	// ErrMalformed is returned for structurally invalid access tokens.
	ErrMalformed = &Error{reason: "malformed token"}
)

// IsAuth reports whether err is any authentication failure.
func IsAuth(err error) bool { return errors.Is(err, ErrUnauthenticated) }
