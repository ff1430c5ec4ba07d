package types

import (
	"encoding/base64"
	"fmt"
)

// Fixed key and signature widths.
const (
	X25519KeySize       = 32
	Ed25519PublicSize   = 32
	Ed25519PrivateSize  = 64
	Ed25519SignatureLen = 64
	SymmetricKeySize    = 32
)

// X25519Public is a Curve25519 public key.
type X25519Public [X25519KeySize]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// String returns the standard base64 form of the key.
func (p X25519Public) String() string { return encode(p[:]) }

// MarshalText encodes the key as standard base64.
func (p X25519Public) MarshalText() ([]byte, error) { return []byte(encode(p[:])), nil }

// UnmarshalText decodes a base64 key of exactly X25519KeySize bytes.
func (p *X25519Public) UnmarshalText(b []byte) error { return decodeInto(p[:], b, "X25519 public") }

// X25519Private is a Curve25519 private key.
type X25519Private [X25519KeySize]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// MarshalText encodes the key as standard base64.
func (k X25519Private) MarshalText() ([]byte, error) { return []byte(encode(k[:])), nil }

// UnmarshalText decodes a base64 key of exactly X25519KeySize bytes.
func (k *X25519Private) UnmarshalText(b []byte) error {
	return decodeInto(k[:], b, "X25519 private")
}

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [Ed25519PublicSize]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// String returns the standard base64 form of the key.
func (p Ed25519Public) String() string { return encode(p[:]) }

// MarshalText encodes the key as standard base64.
func (p Ed25519Public) MarshalText() ([]byte, error) { return []byte(encode(p[:])), nil }

// UnmarshalText decodes a base64 key of exactly Ed25519PublicSize bytes.
func (p *Ed25519Public) UnmarshalText(b []byte) error {
	return decodeInto(p[:], b, "Ed25519 public")
}

// Ed25519Private is an Ed25519 signing private key (ed25519.PrivateKey layout).
type Ed25519Private [Ed25519PrivateSize]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// MarshalText encodes the key as standard base64.
func (k Ed25519Private) MarshalText() ([]byte, error) { return []byte(encode(k[:])), nil }

// UnmarshalText decodes a base64 key of exactly Ed25519PrivateSize bytes.
func (k *Ed25519Private) UnmarshalText(b []byte) error {
	return decodeInto(k[:], b, "Ed25519 private")
}

// Ed25519Signature is a detached Ed25519 signature.
type Ed25519Signature [Ed25519SignatureLen]byte

// Slice returns the signature as a []byte.
func (s Ed25519Signature) Slice() []byte { return s[:] }

// MarshalText encodes the signature as standard base64.
func (s Ed25519Signature) MarshalText() ([]byte, error) { return []byte(encode(s[:])), nil }

// UnmarshalText decodes a base64 signature of exactly Ed25519SignatureLen bytes.
func (s *Ed25519Signature) UnmarshalText(b []byte) error {
	return decodeInto(s[:], b, "Ed25519 signature")
}

// SymmetricKey is a 32-byte secret: root keys, chain keys and message keys.
type SymmetricKey [SymmetricKeySize]byte

// Slice returns the key as a []byte.
func (k SymmetricKey) Slice() []byte { return k[:] }

// MarshalText encodes the key as standard base64.
func (k SymmetricKey) MarshalText() ([]byte, error) { return []byte(encode(k[:])), nil }

// UnmarshalText decodes a base64 key of exactly SymmetricKeySize bytes.
func (k *SymmetricKey) UnmarshalText(b []byte) error {
	return decodeInto(k[:], b, "symmetric key")
}

// X25519KeyPair holds both halves of a Curve25519 key pair.
type X25519KeyPair struct {
	Private X25519Private `json:"private"`
	Public  X25519Public  `json:"public"`
}

// Ed25519KeyPair holds both halves of an Ed25519 key pair.
type Ed25519KeyPair struct {
	Private Ed25519Private `json:"private"`
	Public  Ed25519Public  `json:"public"`
}

func encode(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// decodeInto decodes base64 text into dst and rejects any length other than len(dst).
func decodeInto(dst, text []byte, what string) error {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(raw, text)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n != len(dst) {
		return fmt.Errorf("%s: want %d bytes, got %d", what, len(dst), n)
	}
	copy(dst, raw[:n])
	return nil
}
