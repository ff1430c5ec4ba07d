package crypto

import (
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/util/memzero"
)

// Ed25519PublicToX25519 maps an Ed25519 public key to the Montgomery form
// of the same point, usable as an X25519 public key.
func Ed25519PublicToX25519(pub domain.Ed25519Public) (domain.X25519Public, error) {
	var out domain.X25519Public
	p, err := new(edwards25519.Point).SetBytes(pub[:])
	if err != nil {
		return out, fmt.Errorf("invalid ed25519 public key: %w", err)
	}
	copy(out[:], p.BytesMontgomery())
	return out, nil
}

// Ed25519PrivateToX25519 derives the X25519 scalar matching an Ed25519 key:
// the clamped lower half of SHA-512(seed), as in RFC 8032.
func Ed25519PrivateToX25519(priv domain.Ed25519Private) domain.X25519Private {
	var out domain.X25519Private
	h := sha512.Sum512(priv[:32])
	copy(out[:], h[:32])
	memzero.Zero(h[:])
	clamp(&out)
	return out
}
