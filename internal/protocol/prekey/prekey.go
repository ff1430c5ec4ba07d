// Package prekey generates, projects and rotates a device's key bundle.
//
// The identity key pair is created once and never rotated. The signed
// pre-key and the one-time pre-key pool are replaced by Rotate, and the
// identity key re-signs the new signed pre-key. Persistence is the caller's
// job; nothing here has side effects beyond returning key material.
package prekey

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/NitinDabar/e2ee-chat/internal/crypto"
	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

const (
	// DefaultOneTimePreKeys is the size of a freshly generated pool.
	DefaultOneTimePreKeys = 100
	// DefaultPublishLimit is how many one-time pre-keys a public bundle carries.
	DefaultPublishLimit = 10
)

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// Generate creates a complete device bundle with n one-time pre-keys.
func Generate(n int) (domain.DeviceKeyBundle, error) {
	var b domain.DeviceKeyBundle

	identity, err := crypto.GenerateEd25519()
	if err != nil {
		return b, fmt.Errorf("generate identity key: %w", err)
	}
	agreement, err := crypto.GenerateX25519()
	if err != nil {
		return b, fmt.Errorf("generate agreement key: %w", err)
	}
	b.Identity = identity
	b.Agreement = agreement
	b.CreatedAt = now()

	if err := refresh(&b, n); err != nil {
		return domain.DeviceKeyBundle{}, err
	}
	return b, nil
}

// Rotate returns a copy of b with a new signed pre-key and a new pool of n
// one-time pre-keys. Identity and agreement keys and CreatedAt are kept.
func Rotate(b domain.DeviceKeyBundle, n int) (domain.DeviceKeyBundle, error) {
	out := b
	out.OneTimePreKeys = nil
	if err := refresh(&out, n); err != nil {
		return b, err
	}
	out.RotatedAt = now()
	return out, nil
}

// PublicBundle projects b to its public form, carrying at most limit unused
// one-time pre-keys in pool order.
func PublicBundle(b domain.DeviceKeyBundle, limit int) domain.PreKeyBundle {
	pb := domain.PreKeyBundle{
		IdentityKey:           b.Identity.Public,
		AgreementKey:          b.Agreement.Public,
		SignedPreKeyID:        b.SignedPreKey.ID,
		SignedPreKey:          b.SignedPreKey.KeyPair.Public,
		SignedPreKeySignature: b.SignedPreKey.Signature,
	}
	for _, otk := range b.OneTimePreKeys {
		if len(pb.OneTimePreKeys) >= limit {
			break
		}
		if otk.Used {
			continue
		}
		pb.OneTimePreKeys = append(pb.OneTimePreKeys, domain.OneTimePreKeyPublic{
			ID:  otk.ID,
			Pub: otk.KeyPair.Public,
		})
	}
	return pb
}

// MarkUsed returns a copy of b with the one-time pre-key id marked used.
// It returns domain.ErrNotFound for an unknown id.
func MarkUsed(b domain.DeviceKeyBundle, id domain.OneTimePreKeyID) (domain.DeviceKeyBundle, error) {
	out := b
	out.OneTimePreKeys = append([]domain.OneTimePreKey(nil), b.OneTimePreKeys...)
	for i := range out.OneTimePreKeys {
		if out.OneTimePreKeys[i].ID == id {
			out.OneTimePreKeys[i].Used = true
			return out, nil
		}
	}
	return b, fmt.Errorf("one-time pre-key %s: %w", id, domain.ErrNotFound)
}

// Unused returns the one-time pre-keys that have not been consumed.
func Unused(b domain.DeviceKeyBundle) []domain.OneTimePreKey {
	var out []domain.OneTimePreKey
	for _, otk := range b.OneTimePreKeys {
		if !otk.Used {
			out = append(out, otk)
		}
	}
	return out
}

func refresh(b *domain.DeviceKeyBundle, n int) error {
	spk, err := crypto.GenerateX25519()
	if err != nil {
		return fmt.Errorf("generate signed pre-key: %w", err)
	}
	b.SignedPreKey = domain.SignedPreKey{
		ID:        domain.SignedPreKeyID(uuid.NewString()),
		KeyPair:   spk,
		Signature: crypto.SignEd25519(b.Identity.Private, spk.Public.Slice()),
		CreatedAt: now(),
	}

	otks := make([]domain.OneTimePreKey, 0, n)
	for range n {
		kp, err := crypto.GenerateX25519()
		if err != nil {
			return fmt.Errorf("generate one-time pre-key: %w", err)
		}
		otks = append(otks, domain.OneTimePreKey{
			ID:      domain.OneTimePreKeyID(uuid.NewString()),
			KeyPair: kp,
		})
	}
	b.OneTimePreKeys = otks
	return nil
}
