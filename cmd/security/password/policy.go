package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// commonPasswords are rejected outright when RejectVeryWeak is set.
var commonPasswords = map[string]struct{}{
	"password":     {},
	"password123":  {},
	"123456":       {},
	"123456789":    {},
	"qwerty":       {},
	"qwerty123":    {},
	"11111111":     {},
	"taskhub":      {},
	"letmein":      {},
	"iloveyou":     {},
	"passw0rd":     {},
	"123456789012": {},
}

// Validate checks the length policy (in runes) and, when enabled, the
// weak-value filter.
func (c Config) Validate(plain string) error {
	switch n := utf8.RuneCountInString(plain); {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	}
	if c.Policy.RejectVeryWeak && looksVeryWeak(plain) {
		return ErrWeakPassword
	}
	return nil
}

// looksVeryWeak rejects only trivially guessable values: a single repeated
// character, short all-digit PINs and a small list of common passwords.
func looksVeryWeak(plain string) bool {
	s := strings.TrimSpace(plain)
	if s == "" {
		return true
	}
	if _, ok := commonPasswords[strings.ToLower(s)]; ok {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	if strings.Trim(s, string(first)) == "" {
		return true
	}

	if strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 &&
		utf8.RuneCountInString(s) < 12 {
		return true
	}
	return false
}
