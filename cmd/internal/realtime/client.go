package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"taskhub/cmd/identity/ids"
	v1 "taskhub/contracts/notify/v1"
)

// NewConnectionID returns a ULID identifying one accepted connection.
func NewConnectionID(now time.Time) (string, error) { return ids.NewULID(now) }

// State is the lifecycle position of a Client.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is one duplex connection tracked by a Registry.
//
// State only moves forward: Connecting -> Open -> Closed, or Connecting -> Closed.
// Writes are serialized per client; reads are owned by the connection's own
// goroutine.
type Client struct {
	ID string
	// Tag is the caller-supplied label from the URL (client_id).
	Tag string
	// Subject is the authenticated username, empty for anonymous connections.
	Subject string

	conn  Conn
	state atomic.Int32

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps conn in a Client in StateConnecting.
func NewClient(id, tag, subject string, conn Conn) *Client {
	return &Client{
		ID:      id,
		Tag:     tag,
		Subject: subject,
		conn:    conn,
		done:    make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State { return State(c.state.Load()) }

// Done returns a channel that is closed once the client reaches StateClosed.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) open() bool {
	return c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
}

// markClosed transitions to StateClosed and closes the transport exactly once.
// It reports whether this call performed the transition.
func (c *Client) markClosed(reason string) bool {
	first := false
	c.closeOnce.Do(func() {
		first = true
		c.state.Store(int32(StateClosed))
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close(reason)
		}
	})
	return first
}

func (c *Client) send(parent context.Context, msg v1.Message, timeout time.Duration) error {
	if c.State() != StateOpen {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	return c.conn.Write(ctx, msg)
}
