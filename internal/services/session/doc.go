// Package session owns the per-peer Double Ratchet state for this device.
//
// The Manager runs X3DH once per peer (as initiator with InitializeSession or
// as responder with AcceptSession), then encrypts and decrypts envelopes by
// stepping the peer's ratchet. All sessions and their safety numbers are
// persisted as one snapshot under "<self>/sessions".
//
// # Concurrency
//
// Operations on the same peer are serialised by a per-entry lock; different
// peers proceed in parallel. Every mutation runs on a clone of the ratchet
// state, and the clone replaces the live state only after the snapshot
// holding it has been written. A failed decrypt or a failed write therefore
// leaves the in-memory and stored state exactly as they were.
package session
