package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	v1 "taskhub/contracts/notify/v1"

	"github.com/coder/websocket"
)

// Conn is the transport under a Client.
//
// Read blocks for the next frame; undecodable frames return an error wrapping
// ErrBadMessage. Any other Read error means the transport is gone.
type Conn interface {
	Read(ctx context.Context) (v1.Message, error)
	Write(ctx context.Context, msg v1.Message) error
	Close(reason string) error
}

// maxFrameBytes bounds a single inbound frame.
const maxFrameBytes = 64 << 10

type wsConn struct {
	c *websocket.Conn
}

// NewWSConn adapts an accepted websocket connection.
func NewWSConn(c *websocket.Conn) Conn {
	c.SetReadLimit(maxFrameBytes)
	return &wsConn{c: c}
}

func (w *wsConn) Read(ctx context.Context) (v1.Message, error) {
	mt, data, err := w.c.Read(ctx)
	if err != nil {
		return v1.Message{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Message{}, fmt.Errorf("%w: unsupported frame type %v", ErrBadMessage, mt)
	}
	msg, err := v1.Decode(data)
	if err != nil {
		return v1.Message{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	return msg, nil
}

func (w *wsConn) Write(ctx context.Context, msg v1.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.c.Write(ctx, websocket.MessageText, b)
}

// Close starts the close handshake without waiting for the peer, so callers
// on the broadcast path are never held up by a dead connection.
func (w *wsConn) Close(reason string) error {
	go func() {
		_ = w.c.Close(websocket.StatusNormalClosure, reason)
	}()
	return nil
}

// isTransportClosed reports whether err from Read means the peer or the
// transport is gone, as opposed to a bad frame.
func isTransportClosed(err error) bool {
	return err != nil && !errors.Is(err, ErrBadMessage)
}
