package crypto

import (
	"golang.org/x/crypto/blake2b"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/util/memzero"
)

// Hash256 is unkeyed BLAKE2b-256 over the concatenation of parts.
func Hash256(parts ...[]byte) [32]byte {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// KDF extracts a pseudorandom key from ikm keyed by salt, then expands it
// with the info label:
//
//	prk = BLAKE2b-256(key=salt, ikm)
//	okm = BLAKE2b-256(key=prk, info)
func KDF(salt, ikm []byte, info string) domain.SymmetricKey {
	prk := keyed(salt, ikm)
	defer memzero.Zero(prk[:])

	var out domain.SymmetricKey
	okm := keyed(prk[:], []byte(info))
	copy(out[:], okm[:])
	memzero.Zero(okm[:])
	return out
}

func keyed(key, msg []byte) [32]byte {
	var out [32]byte
	// blake2b accepts keys up to 64 bytes; every caller passes 32.
	h, err := blake2b.New256(key)
	if err != nil {
		panic("crypto: " + err.Error())
	}
	h.Write(msg)
	copy(out[:], h.Sum(nil))
	return out
}
