package password

import (
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// verifyLimits bounds attacker-controlled parameters for the package-level
// Verify. They mirror the upper ranges accepted by FromEnv (after the 2x
// allowance in withinReasonableBounds).
var verifyLimits = Config{
	Params: Argon2idParams{
		MemoryKiB:   512 * 1024,
		Iterations:  10,
		Parallelism: 32,
	},
}

// Verify reports whether plain matches storedHash.
//
// Argon2id and bcrypt encodings are supported. Any malformed or unsupported
// hash yields false.
func Verify(plain, storedHash string) bool {
	switch {
	case isBcrypt(storedHash):
		return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plain)) == nil
	case strings.HasPrefix(storedHash, "$argon2id$"):
		ok, err := verifyLimits.Verify(storedHash, plain)
		return err == nil && ok
	default:
		return false
	}
}

func isBcrypt(h string) bool {
	return strings.HasPrefix(h, "$2a$") ||
		strings.HasPrefix(h, "$2b$") ||
		strings.HasPrefix(h, "$2y$")
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// VerifyDummy spends roughly the same time as a real Argon2id verification and
// always reports false. Callers use it when the account does not exist.
func VerifyDummy(plain string) bool {
	dummyOnce.Do(func() {
		h, err := DefaultConfig().hash("taskhub-dummy-password")
		if err == nil {
			dummyHash = h
		}
	})
	if dummyHash == "" {
		return false
	}
	_ = Verify(plain, dummyHash)
	return false
}
