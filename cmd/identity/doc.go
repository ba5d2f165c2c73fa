// Package identity owns taskhub user accounts: the User record, its
// persistence boundary (Store) and the error kinds callers map to HTTP
// status codes.
//
// Password hashing lives in cmd/security/password; this package only stores
// the encoded hash.
package identity
