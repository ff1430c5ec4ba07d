package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// NonceBytes is the XChaCha20-Poly1305 nonce size.
const NonceBytes = chacha20poly1305.NonceSizeX

// ErrOpen is returned when authentication fails.
var ErrOpen = errors.New("aead: message authentication failed")

// Seal encrypts plaintext under a 32-byte key with a fresh random nonce,
// binding ad into the tag.
func Seal(key, plaintext, ad []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, NonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return nonce, aead.Seal(nil, nonce, plaintext, ad), nil
}

// Open authenticates and decrypts ciphertext. Any mismatch in key, nonce,
// ciphertext or ad returns ErrOpen and no plaintext.
func Open(key, nonce, ciphertext, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceBytes {
		return nil, ErrOpen
	}
	pt, err := aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, ErrOpen
	}
	return pt, nil
}
