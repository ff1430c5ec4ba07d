package domain

import "errors"

var (
	// ErrSignatureInvalid means a signed pre-key failed verification under the
	// peer's identity key. The handshake is aborted.
	ErrSignatureInvalid = errors.New("signed pre-key signature invalid")

	// ErrSessionNotFound means an operation needed an established session.
	ErrSessionNotFound = errors.New("no session with peer; handshake first")

	// ErrChainNotInitialized means a chain was stepped before it was seeded.
	ErrChainNotInitialized = errors.New("ratchet chain is not initialized")

	// ErrDecryptFailure means an envelope failed authentication.
	ErrDecryptFailure = errors.New("message could not be decrypted")

	// ErrSerialization means a persisted snapshot is malformed or truncated.
	ErrSerialization = errors.New("malformed snapshot")

	// ErrSkipLimitExceeded means an envelope is further ahead of the receive
	// chain than the forward-skip bound allows.
	ErrSkipLimitExceeded = errors.New("message number too far ahead of receive chain")

	// ErrNotFound is returned by collaborators when a peer or key is unknown.
	ErrNotFound = errors.New("not found")

	// ErrDeviceNotInitialized means no device key bundle has been generated.
	ErrDeviceNotInitialized = errors.New("device keys not initialized")

	// ErrDeviceExists means a device key bundle is already stored.
	ErrDeviceExists = errors.New("device keys already exist")
)

// IsProtocolError reports whether err is a handshake or ratchet failure, as
// opposed to a transient transport or storage error. Protocol failures imply
// a compromised or desynchronised channel and are never retried.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrSignatureInvalid) ||
		errors.Is(err, ErrDecryptFailure) ||
		errors.Is(err, ErrSkipLimitExceeded) ||
		errors.Is(err, ErrSerialization) ||
		errors.Is(err, ErrChainNotInitialized)
}
