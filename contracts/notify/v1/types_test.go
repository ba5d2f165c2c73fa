package v1

import (
	"errors"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	m, err := Decode([]byte(`{"message":"Task 7 updated"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Message != "Task 7 updated" {
		t.Fatalf("got %q", m.Message)
	}

	if _, err := Decode([]byte(`{"text":"x"}`)); !errors.Is(err, ErrMissingMessage) {
		t.Fatalf("expected ErrMissingMessage, got %v", err)
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatalf("expected json error")
	}

	long := `{"message":"` + strings.Repeat("a", MaxMessageChars+1) + `"}`
	if _, err := Decode([]byte(long)); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}

	empty, err := Decode([]byte(`{"message":""}`))
	if err != nil || empty.Message != "" {
		t.Fatalf("empty text is a valid frame: %v", err)
	}
}
