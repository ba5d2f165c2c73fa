// Package token holds the stateless token primitives of taskhub.
//
// Two concerns live here:
//   - Codec mints and validates short-lived access tokens (JWT, HMAC-signed
//     with the process secret).
//   - Hasher derives the server-side digest of opaque refresh values, so the
//     plain refresh token is never persisted.
//
// Environment:
//   - TASKHUB_TOKEN_HMAC_KEY: when set, refresh values are hashed with
//     HMAC-SHA256 under this key; otherwise plain SHA-256 is used.
package token
