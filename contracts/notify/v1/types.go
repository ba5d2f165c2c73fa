// Package v1 is the wire contract of the task notification channel.
//
// Every frame in both directions is a JSON text message of the form
// {"message": "..."}. Servers treat the text as opaque.
package v1

import (
	"encoding/json"
	"errors"
	"unicode/utf8"
)

// Subprotocol is offered during the WebSocket handshake. Clients may omit it.
const Subprotocol = "taskhub.notify.v1"

// MaxMessageChars bounds the text of one frame (runes).
const MaxMessageChars = 4000

var (
	ErrMissingMessage = errors.New("missing message field")
	ErrMessageTooLong = errors.New("message too long")
)

// Message is one notification frame.
type Message struct {
	Message string `json:"message"`
}

// New returns a Message carrying text.
func New(text string) Message { return Message{Message: text} }

// Validate checks length bounds.
func (m Message) Validate() error {
	if utf8.RuneCountInString(m.Message) > MaxMessageChars {
		return ErrMessageTooLong
	}
	return nil
}

// Decode parses and validates a frame. The "message" field is required.
func Decode(data []byte) (Message, error) {
	var raw struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, err
	}
	if raw.Message == nil {
		return Message{}, ErrMissingMessage
	}
	m := Message{Message: *raw.Message}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
