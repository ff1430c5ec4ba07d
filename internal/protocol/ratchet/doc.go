// Package ratchet implements the Double Ratchet chain-stepping state machine.
//
// A State owns a root key, an optional send chain, an optional receive chain,
// and the current local ratchet key pair. Each chain step derives a message
// key and replaces the chain key with a one-way successor. When the peer
// presents a new ratchet public key the root key advances through a DH step
// and both chains are re-seeded.
//
// States move uninitialized -> sending-only -> bidirectional. The responder
// starts with its signed pre-key pair as the ratchet key pair and no chains.
//
// Skipped message keys are not cached: a message that arrives after a later
// one on the same chain cannot be opened.
//
// Concurrency: State is NOT safe for concurrent use. Callers must serialise
// access per conversation, and should mutate a Clone and swap it in only once
// the whole operation (decrypt, persist) has succeeded.
package ratchet
