package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/NitinDabar/e2ee-chat/internal/util/memzero"
)

const (
	KeyBytes  = 32
	SaltBytes = 16
)

// Argon2id parameters. Stored alongside sealed blobs so they can change later.
const (
	ArgonTime    uint32 = 1
	ArgonMemory  uint32 = 64 * 1024
	ArgonThreads uint8  = 4
)

var errSaltSize = errors.New("invalid salt size")

// DeriveKEK derives a key-encryption key from a passphrase and salt using Argon2id.
func DeriveKEK(passphrase string, salt []byte, time, memory uint32, threads uint8) []byte {
	return argon2.IDKey([]byte(passphrase), salt, time, memory, threads, KeyBytes)
}

// NewSalt returns SaltBytes of randomness.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// EncryptSecret encrypts plaintext with a KEK derived from the passphrase and
// salt, authenticating ad alongside it.
func EncryptSecret(passphrase string, plaintext, salt, ad []byte) (nonce, ciphertext []byte, err error) {
	if len(salt) != SaltBytes {
		return nil, nil, errSaltSize
	}
	kek := DeriveKEK(passphrase, salt, ArgonTime, ArgonMemory, ArgonThreads)
	defer memzero.Zero(kek)
	return Seal(kek, plaintext, ad)
}

// DecryptSecret decrypts a ciphertext with a KEK derived from the passphrase
// and salt using the given Argon2id parameters.
func DecryptSecret(
	passphrase string,
	salt, nonce, ciphertext, ad []byte,
	time, memory uint32,
	threads uint8,
) ([]byte, error) {
	if len(salt) != SaltBytes {
		return nil, errSaltSize
	}
	if len(nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrOpen
	}
	kek := DeriveKEK(passphrase, salt, time, memory, threads)
	defer memzero.Zero(kek)
	return Open(kek, nonce, ciphertext, ad)
}
