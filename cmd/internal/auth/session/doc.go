// Package session implements taskhub's authentication core.
//
// A login creates one refresh session row and mints a short-lived JWT access
// token. Refresh values are opaque random strings rotated on every use; only
// their hash is stored (HMAC-SHA256 when TASKHUB_TOKEN_HMAC_KEY is set,
// otherwise SHA-256). Rotation is serialized per session so that concurrent
// refreshes with one value yield exactly one new value.
//
// Presenting the value replaced by the last rotation is treated as reuse: the
// request is rejected and, unless disabled, the whole session is expired.
package session
