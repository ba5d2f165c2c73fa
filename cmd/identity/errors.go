package identity

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a Store matches exactly one of them
// under errors.Is; HTTP handlers map them to 400, 404 and 409.
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
)

// OpError carries an ErrInvalidInput reason. Msg never contains secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string { return joinErr(e.Op, e.Kind, e.Msg) }

func (e OpError) Unwrap() error { return e.Kind }

// ConflictError names the unique field ("username" or "email") that collided.
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string { return joinErr(e.Op, ErrConflict, e.Field) }

func (e ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError reports a missing user.
type NotFoundError struct {
	Op       string
	Resource string
}

func (e NotFoundError) Error() string { return joinErr(e.Op, ErrNotFound, e.Resource) }

func (e NotFoundError) Unwrap() error { return ErrNotFound }

func joinErr(op string, kind error, detail string) string {
	if detail == "" {
		return fmt.Sprintf("%s: %v", op, kind)
	}
	return fmt.Sprintf("%s: %v: %s", op, kind, detail)
}

func invalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is of kind ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err is of kind ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
