package password

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int
	MaxLength int
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns a strong baseline suitable for interactive logins.
// Values can be overridden via env.
func DefaultConfig() Config {
	// Parallelism follows the CPU count, clamped to [1..4].
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,      // 64 MiB
			Iterations:  3,              // reasonable default for interactive logins
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above; safe conversion.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      12,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
	}
}

// envKnob binds one environment variable to a Config field.
type envKnob struct {
	key   string
	apply func(cfg *Config, raw string) error
}

func intKnob(key string, minVal, maxVal int, field func(*Config) *int) envKnob {
	return envKnob{key: key, apply: func(cfg *Config, raw string) error {
		n, err := atoiPositiveInt(raw, minVal, maxVal)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}}
}

func u32Knob(key string, minVal, maxVal uint32, field func(*Config) *uint32) envKnob {
	return envKnob{key: key, apply: func(cfg *Config, raw string) error {
		u, err := atou32(raw, minVal, maxVal)
		if err != nil {
			return err
		}
		*field(cfg) = u
		return nil
	}}
}

var envKnobs = []envKnob{
	intKnob("TASKHUB_PASSWORD_MIN_LEN", 1, 1024, func(c *Config) *int { return &c.Policy.MinLength }),
	intKnob("TASKHUB_PASSWORD_MAX_LEN", 1, 4096, func(c *Config) *int { return &c.Policy.MaxLength }),
	{key: "TASKHUB_PASSWORD_REJECT_VERY_WEAK", apply: func(c *Config, raw string) error {
		b, err := parseBool(raw)
		c.Policy.RejectVeryWeak = b
		return err
	}},
	u32Knob("TASKHUB_ARGON2_MEMORY_KIB", 8*1024, 1024*1024, func(c *Config) *uint32 { return &c.Params.MemoryKiB }),
	u32Knob("TASKHUB_ARGON2_ITERATIONS", 1, 20, func(c *Config) *uint32 { return &c.Params.Iterations }),
	{key: "TASKHUB_ARGON2_PARALLELISM", apply: func(c *Config, raw string) error {
		u, err := atou32(raw, 1, 64)
		if err != nil {
			return err
		}
		p, err := u32ToU8(u)
		c.Params.Parallelism = p
		return err
	}},
	u32Knob("TASKHUB_ARGON2_SALT_LEN", 8, 64, func(c *Config) *uint32 { return &c.Params.SaltLength }),
	u32Knob("TASKHUB_ARGON2_KEY_LEN", 16, 64, func(c *Config) *uint32 { return &c.Params.KeyLength }),
}

// FromEnv applies TASKHUB_PASSWORD_* and TASKHUB_ARGON2_* over DefaultConfig.
// Blank variables are ignored. Any invalid value fails with the key name.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	for _, k := range envKnobs {
		raw := strings.TrimSpace(os.Getenv(k.key))
		if raw == "" {
			continue
		}
		if err := k.apply(&cfg, raw); err != nil {
			return Config{}, fmt.Errorf("%s: %w", k.key, err)
		}
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}
	return cfg, nil
}

func atoiPositiveInt(s string, minVal, maxVal int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("not an integer")
	}
	if n < minVal || n > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return n, nil
}

func atou32(s string, minVal, maxVal uint32) (uint32, error) {
	u64, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errors.New("not an unsigned integer")
	}
	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}

func u32ToU8(u uint32) (uint8, error) {
	if u > math.MaxUint8 {
		return 0, fmt.Errorf("out of range [0..%d]", math.MaxUint8)
	}
	return uint8(u), nil
}

func parseBool(s string) (bool, error) {
	b, err := strconv.ParseBool(strings.ToLower(s))
	if err == nil {
		return b, nil
	}
	switch strings.ToLower(s) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return false, errors.New("invalid boolean")
}
