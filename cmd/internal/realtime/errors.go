package realtime

import "errors"

var (
	// ErrClosed reports that a connection is closed or was never opened.
	ErrClosed = errors.New("realtime: connection closed")

	// ErrAlreadyRegistered is returned by Register for a client that is already open.
	ErrAlreadyRegistered = errors.New("realtime: client already registered")

	// ErrBadMessage reports an undecodable frame. The connection stays usable.
	ErrBadMessage = errors.New("realtime: bad message")
)
