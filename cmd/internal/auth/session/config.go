package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config defines runtime configuration for the session subsystem.
type Config struct {
	// Secret signs access tokens (HMAC).
	Secret []byte

	// Algorithm is HS256, HS384 or HS512.
	Algorithm string

	// Issuer is the value set in the "iss" claim of access tokens.
	Issuer string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// RefreshTokenBytes is the entropy of opaque refresh values.
	RefreshTokenBytes int

	// ReuseExpiresSession expires the whole session when a rotated value is replayed.
	ReuseExpiresSession bool
}

// DefaultConfig returns defaults suitable for development. Secret is empty and must be set.
func DefaultConfig() Config {
	return Config{
		Algorithm:           "HS256",
		Issuer:              "taskhub",
		AccessTokenTTL:      15 * time.Minute,
		RefreshTokenTTL:     10080 * time.Minute,
		RefreshTokenBytes:   32,
		ReuseExpiresSession: true,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - TASKHUB_SECRET_KEY
//
// Optional:
//   - TASKHUB_JWT_ALGORITHM (HS256|HS384|HS512)
//   - TASKHUB_ACCESS_TOKEN_EXPIRE_MINUTES
//   - TASKHUB_REFRESH_TOKEN_EXPIRE_MINUTES
//   - TASKHUB_AUTH_ISSUER
//   - TASKHUB_AUTH_REFRESH_TOKEN_BYTES (32..64)
//   - TASKHUB_AUTH_REUSE_EXPIRES_SESSION (bool)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	secret := strings.TrimSpace(os.Getenv("TASKHUB_SECRET_KEY"))
	if secret == "" {
		return Config{}, ErrConfig
	}
	cfg.Secret = []byte(secret)

	if v := strings.TrimSpace(os.Getenv("TASKHUB_JWT_ALGORITHM")); v != "" {
		switch strings.ToUpper(v) {
		case "HS256", "HS384", "HS512":
			cfg.Algorithm = strings.ToUpper(v)
		default:
			return Config{}, ErrConfig
		}
	}

	if v := os.Getenv("TASKHUB_ACCESS_TOKEN_EXPIRE_MINUTES"); v != "" {
		d, err := parseMinutes(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("TASKHUB_REFRESH_TOKEN_EXPIRE_MINUTES"); v != "" {
		d, err := parseMinutes(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenTTL = d
	}

	if v := strings.TrimSpace(os.Getenv("TASKHUB_AUTH_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("TASKHUB_AUTH_REFRESH_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenBytes = n
	}

	if v := os.Getenv("TASKHUB_AUTH_REUSE_EXPIRES_SESSION"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.ReuseExpiresSession = b
	}

	// Refresh sessions must outlive access tokens.
	if cfg.RefreshTokenTTL < cfg.AccessTokenTTL {
		return Config{}, ErrConfig
	}

	return cfg, nil
}

func parseMinutes(v string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, ErrConfig
	}
	return time.Duration(n) * time.Minute, nil
}
