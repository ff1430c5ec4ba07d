// Package identity manages creation and loading of this device's key bundle.
//
// It enforces the passphrase policy guarding the local stores, generates the
// Ed25519 identity, X25519 agreement key, signed pre-key and one-time pre-key
// pool, and persists them via a domain.SnapshotStore under "<self>/device".
package identity
