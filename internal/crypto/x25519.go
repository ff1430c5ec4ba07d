package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

// GenerateX25519 returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func GenerateX25519() (domain.X25519KeyPair, error) {
	var kp domain.X25519KeyPair
	if _, err := rand.Read(kp.Private[:]); err != nil {
		return kp, err
	}
	clamp(&kp.Private)
	pub, err := X25519Public(kp.Private)
	if err != nil {
		return kp, err
	}
	kp.Public = pub
	return kp, nil
}

// X25519Public derives the public key for priv.
func X25519Public(priv domain.X25519Private) (domain.X25519Public, error) {
	var pub domain.X25519Public
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return pub, err
	}
	copy(pub[:], pb)
	return pub, nil
}

// DH computes X25519 Diffie–Hellman. A low-order peer key yields an error
// rather than an all-zero secret.
func DH(priv domain.X25519Private, pub domain.X25519Public) (out [32]byte, err error) {
	secret, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return out, fmt.Errorf("x25519: %w", err)
	}
	copy(out[:], secret)
	return out, nil
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
