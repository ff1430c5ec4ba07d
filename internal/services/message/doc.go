// Package message sends and receives encrypted messages.
//
// It sits on top of the session manager: the first send to a peer fetches
// that peer's bundle and runs the handshake, the first delivery from a peer
// bootstraps the responder side, and everything else is a ratchet step.
// Envelopes travel through an EnvelopeTransport; the receive cursor is kept
// in the device's snapshot store.
package message
