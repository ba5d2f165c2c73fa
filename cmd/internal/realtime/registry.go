package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	v1 "taskhub/contracts/notify/v1"
)

// defaultWriteTimeout bounds one delivery when no timeout is configured.
const defaultWriteTimeout = 5 * time.Second

// Registry is the set of open connections and the fan-out over them.
//
// Concurrency guarantees:
//   - Register/Deregister are safe under concurrent Broadcast.
//   - Broadcast iterates a snapshot taken in insertion order.
//   - Each send is bounded by the write timeout; a failed send deregisters
//     that client and never fails the broadcast for the others.
type Registry struct {
	log          *slog.Logger
	writeTimeout time.Duration
	metrics      *Metrics

	mu      sync.Mutex
	members []*Client
}

// NewRegistry constructs an empty Registry. metrics may be nil.
func NewRegistry(log *slog.Logger, writeTimeout time.Duration, metrics *Metrics) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Registry{
		log:          log,
		writeTimeout: writeTimeout,
		metrics:      metrics,
	}
}

// Register opens c and appends it to the active set.
// A client that is already open returns ErrAlreadyRegistered; a closed one ErrClosed.
func (r *Registry) Register(c *Client) error {
	if c == nil {
		return ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !c.open() {
		if c.State() == StateOpen {
			return ErrAlreadyRegistered
		}
		return ErrClosed
	}
	r.members = append(r.members, c)
	r.metrics.setActive(len(r.members))

	r.log.Info("registry.register", "conn_id", c.ID, "client_id", c.Tag, "active", len(r.members))
	return nil
}

// Deregister closes c and removes it from the active set. Idempotent.
func (r *Registry) Deregister(c *Client) {
	if c == nil {
		return
	}

	r.mu.Lock()
	removed := false
	for i, m := range r.members {
		if m == c {
			r.members = append(r.members[:i:i], r.members[i+1:]...)
			removed = true
			break
		}
	}
	active := len(r.members)
	r.metrics.setActive(active)
	r.mu.Unlock()

	// Close after removal so no broadcaster picks the client up again.
	closed := c.markClosed("bye")
	if removed || closed {
		r.log.Info("registry.deregister", "conn_id", c.ID, "client_id", c.Tag, "active", active)
	}
}

// ReceiveOne blocks until c delivers a frame.
//
// It returns ErrClosed once the transport is gone, and an error wrapping
// ErrBadMessage for a frame that could not be decoded.
func (r *Registry) ReceiveOne(ctx context.Context, c *Client) (v1.Message, error) {
	if c == nil || c.State() != StateOpen {
		return v1.Message{}, ErrClosed
	}

	msg, err := c.conn.Read(ctx)
	if err == nil {
		return msg, nil
	}
	if isTransportClosed(err) {
		r.log.Debug("registry.receive.closed", "conn_id", c.ID, "err", err)
		return v1.Message{}, ErrClosed
	}
	return v1.Message{}, err
}

// Broadcast sends msg to every open client, in registration order, and
// returns the number of successful deliveries.
func (r *Registry) Broadcast(ctx context.Context, msg v1.Message) int {
	snapshot := r.Snapshot()

	delivered := 0
	for _, c := range snapshot {
		if c.State() != StateOpen {
			continue
		}
		if err := c.send(ctx, msg, r.writeTimeout); err != nil {
			r.log.Info("registry.broadcast.drop", "conn_id", c.ID, "client_id", c.Tag, "err", err)
			r.metrics.delivery("fail")
			r.Deregister(c)
			continue
		}
		r.metrics.delivery("ok")
		delivered++
	}

	r.metrics.broadcast()
	r.log.Debug("registry.broadcast", "recipients", len(snapshot), "delivered", delivered)
	return delivered
}

// Snapshot returns the open clients in registration order.
func (r *Registry) Snapshot() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Client, len(r.members))
	copy(out, r.members)
	return out
}

// Len returns the number of open clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Contains reports whether c is in the active set.
func (r *Registry) Contains(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m == c {
			return true
		}
	}
	return false
}

// Close deregisters every client.
func (r *Registry) Close() {
	for _, c := range r.Snapshot() {
		r.Deregister(c)
	}
}
