package x3dh

import (
	"fmt"

	"github.com/NitinDabar/e2ee-chat/internal/crypto"
	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/util/memzero"
)

// InitiatorSharedSecret derives the shared secret for the initiator.
//
// peerOPK is the peer one-time pre-key to mix in, or nil for the degraded
// mode. Use SelectOneTimePreKey to pick it from the bundle.
func InitiatorSharedSecret(
	ourIdentity domain.Ed25519Private,
	ourAgreement domain.X25519Private,
	peer domain.PreKeyBundle,
	peerOPK *domain.X25519Public,
) (domain.SymmetricKey, error) {
	var sk domain.SymmetricKey
	if err := VerifySignedPreKey(peer.IdentityKey, peer.SignedPreKey, peer.SignedPreKeySignature); err != nil {
		return sk, err
	}
	peerIdentity, err := crypto.Ed25519PublicToX25519(peer.IdentityKey)
	if err != nil {
		return sk, err
	}
	ourIdentityX := crypto.Ed25519PrivateToX25519(ourIdentity)
	defer memzero.Zero(ourIdentityX[:])

	var dhs [4][32]byte
	defer wipe(&dhs)

	if dhs[0], err = crypto.DH(ourIdentityX, peer.SignedPreKey); err != nil { // DH(IKA, SPKB)
		return sk, fmt.Errorf("x3dh dh1: %w", err)
	}
	if dhs[1], err = crypto.DH(ourAgreement, peerIdentity); err != nil { // DH(AKA, IKB)
		return sk, fmt.Errorf("x3dh dh2: %w", err)
	}
	if dhs[2], err = crypto.DH(ourAgreement, peer.SignedPreKey); err != nil { // DH(AKA, SPKB)
		return sk, fmt.Errorf("x3dh dh3: %w", err)
	}
	if peerOPK != nil {
		if dhs[3], err = crypto.DH(ourAgreement, *peerOPK); err != nil { // DH(AKA, OPKB)
			return sk, fmt.Errorf("x3dh dh4: %w", err)
		}
	}
	return combine(&dhs), nil
}

// ResponderSharedSecret derives the shared secret for the responder from its
// own private keys and the initiator's public bundle. ourOPK is the private
// half of the one-time pre-key the initiator used, or nil.
func ResponderSharedSecret(
	ourIdentity domain.Ed25519Private,
	ourSignedPreKey domain.X25519Private,
	ourOPK *domain.X25519Private,
	peer domain.PreKeyBundle,
) (domain.SymmetricKey, error) {
	var sk domain.SymmetricKey
	if err := VerifySignedPreKey(peer.IdentityKey, peer.SignedPreKey, peer.SignedPreKeySignature); err != nil {
		return sk, err
	}
	peerIdentity, err := crypto.Ed25519PublicToX25519(peer.IdentityKey)
	if err != nil {
		return sk, err
	}
	ourIdentityX := crypto.Ed25519PrivateToX25519(ourIdentity)
	defer memzero.Zero(ourIdentityX[:])

	var dhs [4][32]byte
	defer wipe(&dhs)

	if dhs[0], err = crypto.DH(ourSignedPreKey, peerIdentity); err != nil { // DH(SPKB, IKA)
		return sk, fmt.Errorf("x3dh dh1: %w", err)
	}
	if dhs[1], err = crypto.DH(ourIdentityX, peer.AgreementKey); err != nil { // DH(IKB, AKA)
		return sk, fmt.Errorf("x3dh dh2: %w", err)
	}
	if dhs[2], err = crypto.DH(ourSignedPreKey, peer.AgreementKey); err != nil { // DH(SPKB, AKA)
		return sk, fmt.Errorf("x3dh dh3: %w", err)
	}
	if ourOPK != nil {
		if dhs[3], err = crypto.DH(*ourOPK, peer.AgreementKey); err != nil { // DH(OPKB, AKA)
			return sk, fmt.Errorf("x3dh dh4: %w", err)
		}
	}
	return combine(&dhs), nil
}

// VerifySignedPreKey checks the signed pre-key signature under the identity key.
func VerifySignedPreKey(identity domain.Ed25519Public, spk domain.X25519Public, sig domain.Ed25519Signature) error {
	if !crypto.VerifyEd25519(identity, spk.Slice(), sig) {
		return domain.ErrSignatureInvalid
	}
	return nil
}

// SelectOneTimePreKey returns the first one-time pre-key offered by the
// bundle, or nil when the bundle has none.
func SelectOneTimePreKey(b domain.PreKeyBundle) *domain.OneTimePreKeyPublic {
	if len(b.OneTimePreKeys) == 0 {
		return nil
	}
	opk := b.OneTimePreKeys[0]
	return &opk
}

func combine(dhs *[4][32]byte) domain.SymmetricKey {
	return domain.SymmetricKey(crypto.Hash256(dhs[0][:], dhs[1][:], dhs[2][:], dhs[3][:]))
}

func wipe(dhs *[4][32]byte) {
	for i := range dhs {
		memzero.Zero(dhs[i][:])
	}
}
