package session

import (
	"crypto/rand"
	"encoding/base64"
)

// newRefreshValue returns a URL-safe opaque value with nBytes of entropy.
func newRefreshValue(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
