// Package crypto exposes the minimal primitives used by the messaging core.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519) and conversion of Ed25519 identity keys to
//     their Curve25519 form (Ed25519PublicToX25519, Ed25519PrivateToX25519)
//   - XChaCha20-Poly1305 authenticated encryption (Seal, Open)
//   - A BLAKE2b keyed hash and the two-step KDF built on it (Hash256, KDF)
//   - Argon2id passphrase sealing for secrets at rest (EncryptSecret,
//     DecryptSecret)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// All functions return fixed-size array types defined in internal/domain to
// avoid accidental truncation at encoding boundaries. Callers should treat
// returned secrets as sensitive and rely on memzero.Zero when practical to
// reduce lifetime in memory.
package crypto
