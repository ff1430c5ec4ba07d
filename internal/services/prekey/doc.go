// Package prekey manages the signed pre-key and one-time pre-keys used for
// X3DH bootstrap.
//
// It rotates pre-keys, projects and publishes the public bundle to the
// directory, and marks one-time pre-keys used once a handshake consumes them.
package prekey
