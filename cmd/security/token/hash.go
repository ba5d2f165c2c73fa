package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the refresh hashing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "TASKHUB_TOKEN_HMAC_KEY"
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// HMACKeyFromEnv returns the configured HMAC key bytes (trimmed), enforcing a minimum byte length.
// If the env var is missing/blank -> ErrHMACKeyMissing.
// If too short -> ErrHMACKeyTooShort.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return b, nil
}

// Hasher digests refresh values for storage and lookup.
// The zero value hashes with plain SHA-256.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher. A nil or empty key selects SHA-256.
func NewHasher(key []byte) Hasher {
	if len(key) == 0 {
		return Hasher{}
	}
	k := make([]byte, len(key))
	copy(k, key)
	return Hasher{key: k}
}

// HasherFromEnv builds a Hasher from TASKHUB_TOKEN_HMAC_KEY.
//
// When require is true the key must be present and at least minBytes long;
// otherwise a missing key falls back to SHA-256 (dev mode).
func HasherFromEnv(minBytes int, require bool) (Hasher, error) {
	key, err := HMACKeyFromEnv(minBytes)
	switch {
	case err == nil:
		return NewHasher(key), nil
	case err == ErrHMACKeyMissing && !require:
		return Hasher{}, nil
	default:
		return Hasher{}, err
	}
}

// HMACEnabled reports whether this Hasher is keyed.
func (h Hasher) HMACEnabled() bool { return len(h.key) > 0 }

// Hash returns the 64-char hex digest stored for a refresh value.
func (h Hasher) Hash(value string) string {
	if len(h.key) == 0 {
		return HashSHA256Hex(value)
	}
	return HashHMACSHA256Hex(value, h.key)
}
