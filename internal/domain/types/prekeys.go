package types

import "time"

// SignedPreKey is the medium-term key-agreement pair signed by the identity key.
type SignedPreKey struct {
	ID        SignedPreKeyID   `json:"id"`
	KeyPair   X25519KeyPair    `json:"key_pair"`
	Signature Ed25519Signature `json:"signature"`
	CreatedAt time.Time        `json:"created_at"`
}

// OneTimePreKey is a single-use key-agreement pair. Used is set once a
// handshake has consumed it; a used key is never published again.
type OneTimePreKey struct {
	ID      OneTimePreKeyID `json:"id"`
	KeyPair X25519KeyPair   `json:"key_pair"`
	Used    bool            `json:"used,omitempty"`
}

// DeviceKeyBundle is the full private key material of one device.
type DeviceKeyBundle struct {
	Identity       Ed25519KeyPair  `json:"identity"`
	Agreement      X25519KeyPair   `json:"agreement"`
	SignedPreKey   SignedPreKey    `json:"signed_pre_key"`
	OneTimePreKeys []OneTimePreKey `json:"one_time_pre_keys"`
	CreatedAt      time.Time       `json:"created_at"`
	RotatedAt      time.Time       `json:"rotated_at,omitempty"`
}

// OneTimePreKeyPublic is only the public half (sent in bundles).
type OneTimePreKeyPublic struct {
	ID  OneTimePreKeyID `json:"id"`
	Pub X25519Public    `json:"pub"`
}

// PreKeyBundle is the public projection of a DeviceKeyBundle. It carries no
// private material and is what the directory serves to initiators.
type PreKeyBundle struct {
	IdentityKey           Ed25519Public         `json:"identity_key"`
	AgreementKey          X25519Public          `json:"agreement_key"`
	SignedPreKeyID        SignedPreKeyID        `json:"signed_pre_key_id"`
	SignedPreKey          X25519Public          `json:"signed_pre_key"`
	SignedPreKeySignature Ed25519Signature      `json:"signed_pre_key_signature"`
	OneTimePreKeys        []OneTimePreKeyPublic `json:"one_time_pre_keys,omitempty"`
}
