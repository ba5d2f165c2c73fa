package token

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"taskhub/cmd/internal/auth/autherr"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access-token payload: subject (username) plus registered times.
type Claims struct {
	jwt.RegisteredClaims
}

// Codec mints and validates HMAC-signed access tokens.
// It holds only the process-wide secret and is safe for concurrent use.
type Codec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	issuer string
}

// NewCodec builds a Codec. alg must be one of HS256, HS384 or HS512 (empty means HS256).
func NewCodec(secret []byte, alg string, issuer string) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrSecretMissing
	}

	var method *jwt.SigningMethodHMAC
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, ErrUnsupportedAlg
	}

	s := make([]byte, len(secret))
	copy(s, secret)
	return &Codec{secret: s, method: method, issuer: issuer}, nil
}

// Mint encodes subject, issued-at and now+ttl expiration and signs them.
// The returned expiration is the exact instant carried by the token
// (JWT NumericDate precision).
func (c *Codec) Mint(subject string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	exp := now.Add(ttl).Truncate(jwt.TimePrecision)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Validate checks structure, signature and expiration, returning the subject.
//
// The MAC is verified over the raw segments before any claim is decoded, so a
// modified header, payload or signature byte always surfaces as
// autherr.ErrInvalidSignature. Expiration is inclusive: a token presented at
// exactly its exp instant is autherr.ErrExpired.
func (c *Codec) Validate(raw string, now time.Time) (string, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", autherr.ErrMalformed
	}

	sig, err := base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil {
		return "", autherr.ErrInvalidSignature
	}
	if err := c.method.Verify(parts[0]+"."+parts[1], sig, c.secret); err != nil {
		return "", autherr.ErrInvalidSignature
	}

	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithStrictDecoding(),
		// Time checks are done below against the caller's clock.
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}); err != nil {
		return "", classify(err)
	}

	if claims.Subject == "" || claims.ExpiresAt == nil {
		return "", autherr.ErrMalformed
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return "", autherr.ErrInvalidSignature
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return "", autherr.ErrExpired
	}

	return claims.Subject, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrSignatureInvalid):
		return autherr.ErrInvalidSignature
	default:
		return autherr.ErrMalformed
	}
}
