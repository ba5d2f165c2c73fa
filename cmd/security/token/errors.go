package token

import "errors"

// Setup errors. Validation failures are autherr variants, not these.
var (
	// ErrSecretMissing: NewCodec was given an empty signing secret.
	ErrSecretMissing = errors.New("token: signing secret missing")
	// ErrUnsupportedAlg: the algorithm is not HS256, HS384 or HS512.
	ErrUnsupportedAlg = errors.New("token: unsupported signing algorithm")

	// ErrHMACKeyMissing: TASKHUB_TOKEN_HMAC_KEY is unset or blank.
	ErrHMACKeyMissing = errors.New("token: refresh HMAC key missing")
	// ErrHMACKeyTooShort: TASKHUB_TOKEN_HMAC_KEY is below the minimum length.
	ErrHMACKeyTooShort = errors.New("token: refresh HMAC key too short")
)
