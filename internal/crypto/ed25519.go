package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

// GenerateEd25519 returns a new Ed25519 signing key pair.
func GenerateEd25519() (domain.Ed25519KeyPair, error) {
	var kp domain.Ed25519KeyPair
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return kp, err
	}
	copy(kp.Private[:], sk)
	copy(kp.Public[:], pk)
	return kp, nil
}

// SignEd25519 signs msg with priv and returns the signature.
func SignEd25519(priv domain.Ed25519Private, msg []byte) domain.Ed25519Signature {
	var sig domain.Ed25519Signature
	copy(sig[:], ed25519.Sign(ed25519.PrivateKey(priv[:]), msg))
	return sig
}

// VerifyEd25519 verifies sig over msg with pub.
func VerifyEd25519(pub domain.Ed25519Public, msg []byte, sig domain.Ed25519Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig[:])
}
