package app

import (
	"errors"
	"fmt"

	"taskhub/cmd/security/token"
)

// minHMACKeyBytes is the shortest accepted refresh hashing key.
const minHMACKeyBytes = 32

// NewTokenHasher builds the refresh-value hasher and enforces the HMAC policy.
//
// With RequireTokenHMAC the key must be present and long enough, and startup
// fails otherwise. Without it a missing key falls back to SHA-256.
func NewTokenHasher(cfg Config) (token.Hasher, error) {
	h, err := token.HasherFromEnv(minHMACKeyBytes, cfg.RequireTokenHMAC)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return token.Hasher{}, fmt.Errorf("security policy: TASKHUB_REQUIRE_TOKEN_HMAC=true but %s is missing", token.HMACEnvKey)
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return token.Hasher{}, fmt.Errorf("security policy: %s is too short (min %d bytes)", token.HMACEnvKey, minHMACKeyBytes)
		default:
			return token.Hasher{}, err
		}
	}

	if cfg.RequireTokenHMAC && !h.HMACEnabled() {
		return token.Hasher{}, errors.New("security policy: TASKHUB_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}
	return h, nil
}
