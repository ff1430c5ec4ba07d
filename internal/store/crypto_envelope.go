package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/NitinDabar/e2ee-chat/internal/crypto"
)

const (
	// The current supported version of the sealed blob format.
	sealedFormatVersion = 1
)

var (
	// ErrWrongPassphrase is returned when the passphrase is incorrect or the
	// ciphertext has been modified / corrupted.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted snapshot")
)

// blob is the stored JSON structure holding the ciphertext and KDF parameters.
type blob struct {
	V       int    `json:"v"`
	Salt    []byte `json:"salt"`
	Time    uint32 `json:"argon_t"`
	Memory  uint32 `json:"argon_m"`
	Threads uint8  `json:"argon_p"`
	Nonce   []byte `json:"nonce"`
	Cipher  []byte `json:"cipher"`
}

// argonParams are the Argon2id cost parameters for new blobs.
type argonParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

func defaultArgonParams() argonParams {
	return argonParams{Time: crypto.ArgonTime, Memory: crypto.ArgonMemory, Threads: crypto.ArgonThreads}
}

// sealBlob encrypts raw under kek and wraps it with the salt and parameters
// the kek was derived with. The storage key is bound as associated data so
// a blob cannot be replayed under another key.
func sealBlob(kek, salt []byte, p argonParams, key string, raw []byte) ([]byte, error) {
	nonce, ct, err := crypto.Seal(kek, raw, []byte(key))
	if err != nil {
		return nil, err
	}
	return json.Marshal(blob{
		V:       sealedFormatVersion,
		Salt:    salt,
		Time:    p.Time,
		Memory:  p.Memory,
		Threads: p.Threads,
		Nonce:   nonce,
		Cipher:  ct,
	})
}

// parseBlob decodes a stored blob and checks its version.
func parseBlob(b []byte) (blob, error) {
	var bl blob
	if err := json.Unmarshal(b, &bl); err != nil {
		return bl, fmt.Errorf("decode sealed blob: %w", err)
	}
	if bl.V > sealedFormatVersion {
		return bl, fmt.Errorf("unsupported sealed blob version %d", bl.V)
	}
	if len(bl.Salt) != crypto.SaltBytes {
		return bl, errors.New("sealed blob: bad salt")
	}
	return bl, nil
}

// openBlob decrypts bl with kek.
func openBlob(kek []byte, bl blob, key string) ([]byte, error) {
	pt, err := crypto.Open(kek, bl.Nonce, bl.Cipher, []byte(key))
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}
