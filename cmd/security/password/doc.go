// Package password provides password hashing and verification for taskhub.
//
// New hashes are Argon2id in a PHC-like encoded string format. Verification
// also accepts bcrypt hashes ($2a$, $2b$, $2y$) so that rows created by older
// deployments keep working.
//
// Hash strings are treated as untrusted input during Verify: malformed or
// out-of-bounds encodings are rejected instead of being computed.
package password
