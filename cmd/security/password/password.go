package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const phcPrefix = "$argon2id$"

var b64 = base64.RawStdEncoding

// phc is a decoded "$argon2id$v=19$m=..,t=..,p=..$salt$key" string.
type phc struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (p phc) String() string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		phcPrefix,
		argon2.Version,
		p.params.MemoryKiB,
		p.params.Iterations,
		p.params.Parallelism,
		b64.EncodeToString(p.salt),
		b64.EncodeToString(p.key),
	)
}

// Hash checks the policy and returns the encoded Argon2id hash of plain.
func (c Config) Hash(plain string) (string, error) {
	if err := c.Validate(plain); err != nil {
		return "", err
	}
	return c.hash(plain)
}

func (c Config) hash(plain string) (string, error) {
	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: salt: %w", err)
	}
	p := phc{params: c.Params, salt: salt}
	p.key = derive(plain, p.params, salt, c.Params.KeyLength)
	return p.String(), nil
}

// Verify compares plain against an encoded Argon2id hash.
// A mismatch is (false, nil). A malformed hash, or one whose cost exceeds
// twice the configured parameters, is (false, ErrInvalidHash).
func (c Config) Verify(encoded, plain string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	if !c.accepts(p.params) {
		return false, ErrInvalidHash
	}

	got := derive(plain, p.params, p.salt, p.params.KeyLength)
	return subtle.ConstantTimeCompare(got, p.key) == 1, nil
}

func derive(plain string, p Argon2idParams, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(plain), salt, p.Iterations, p.MemoryKiB, p.Parallelism, keyLen)
}

// accepts bounds attacker-controlled cost parameters.
func (c Config) accepts(got Argon2idParams) bool {
	lim := c.Params
	switch {
	case got.MemoryKiB > lim.MemoryKiB*2,
		got.Iterations > lim.Iterations*2,
		uint32(got.Parallelism) > uint32(lim.Parallelism)*2:
		return false
	case got.SaltLength < 8 || got.SaltLength > 64:
		return false
	case got.KeyLength < 16 || got.KeyLength > 128:
		return false
	}
	return true
}

func parsePHC(encoded string) (phc, error) {
	rest, ok := strings.CutPrefix(encoded, phcPrefix)
	if !ok {
		return phc{}, ErrInvalidHash
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 || fields[0] != "v="+strconv.Itoa(argon2.Version) {
		return phc{}, ErrInvalidHash
	}

	var mem, iter, par uint64
	for _, kv := range strings.Split(fields[1], ",") {
		k, v, found := strings.Cut(kv, "=")
		if !found {
			return phc{}, ErrInvalidHash
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return phc{}, ErrInvalidHash
		}
		switch k {
		case "m":
			mem = n
		case "t":
			iter = n
		case "p":
			par = n
		default:
			return phc{}, ErrInvalidHash
		}
	}
	if mem == 0 || iter == 0 || par == 0 || par > 255 {
		return phc{}, ErrInvalidHash
	}

	salt, err := b64.DecodeString(fields[2])
	if err != nil {
		return phc{}, ErrInvalidHash
	}
	key, err := b64.DecodeString(fields[3])
	if err != nil {
		return phc{}, ErrInvalidHash
	}

	return phc{
		params: Argon2idParams{
			MemoryKiB:   uint32(mem),
			Iterations:  uint32(iter),
			Parallelism: uint8(par),
			SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by accepts.
			KeyLength:   uint32(len(key)),  // #nosec G115 -- bounded by accepts.
		},
		salt: salt,
		key:  key,
	}, nil
}
