// Package x3dh implements the X3DH key agreement used to bootstrap a Double
// Ratchet session between two devices.
//
// # Overview
//
// X3DH lets an initiator derive a shared 32-byte secret with a responder who
// has published a pre-key bundle. The bundle contains:
//   - Identity key (Ed25519, converted to X25519 for agreement)
//   - Agreement key (X25519)
//   - Signed pre-key (X25519) and its Ed25519 signature
//   - Optional one-time pre-keys (X25519)
//
// # Flows
//
// Initiator:
//  1. Verify the signed pre-key signature. Nothing else runs if it fails.
//  2. Compute DH values (IKa·SPKb, AKa·IKb, AKa·SPKb, AKa·OPKb).
//  3. Hash the concatenated transcript with BLAKE2b-256.
//
// Responder:
//  1. Verify the initiator's own signed pre-key signature.
//  2. Compute the mirrored DH set (SPKb·IKa, IKb·AKa, SPKb·AKa, OPKb·AKa).
//  3. Hash the same transcript to the identical secret.
//
// When no one-time pre-key is available the fourth value is 32 zero bytes.
// This degraded mode is explicit and both sides must agree on it.
//
// # Errors
//
// domain.ErrSignatureInvalid is returned when the signed pre-key signature
// fails verification. Other errors wrap lower-level crypto failures.
//
// # Security notes
//
// The functions are pure. Callers own one-time pre-key consumption: a key
// mixed into one handshake must never be offered to another.
package x3dh
