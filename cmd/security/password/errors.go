package password

import "errors"

// Policy errors are returned by Validate and Hash. Handlers map them to 400.
var (
	ErrPasswordTooShort = errors.New("password: shorter than the minimum length")
	ErrPasswordTooLong  = errors.New("password: longer than the maximum length")
	ErrWeakPassword     = errors.New("password: too easy to guess")
)

// ErrInvalidHash reports a stored hash that cannot be parsed or is out of bounds.
var ErrInvalidHash = errors.New("password: invalid hash encoding")
