// Package codec seals and opens message bodies under a per-message key.
package codec

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/NitinDabar/e2ee-chat/internal/crypto"
	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

var errEmptyAD = errors.New("associated data is required")

// AssociatedData derives the AD both participants compute independently:
// the two identifiers sorted, joined with "|", truncated to the first half
// of its characters (rounded up). The cut counts runes, so a multi-byte
// identifier is never split inside a character.
func AssociatedData(a, b string) []byte {
	ids := []string{a, b}
	sort.Strings(ids)
	joined := strings.Join(ids, "|")

	keep := (utf8.RuneCountInString(joined) + 1) / 2
	end := len(joined)
	for i := range joined {
		if keep == 0 {
			end = i
			break
		}
		keep--
	}
	return []byte(joined[:end])
}

// Encrypt seals plaintext under mk with a fresh random nonce and ad bound
// into the tag.
func Encrypt(mk domain.SymmetricKey, plaintext, ad []byte) (ciphertext, nonce []byte, err error) {
	if len(ad) == 0 {
		return nil, nil, errEmptyAD
	}
	nonce, ciphertext, err = crypto.Seal(mk[:], plaintext, ad)
	if err != nil {
		return nil, nil, fmt.Errorf("seal: %w", err)
	}
	return ciphertext, nonce, nil
}

// Decrypt opens ciphertext. Any mismatch in key, nonce, ciphertext or ad
// fails with domain.ErrDecryptFailure and returns no plaintext.
func Decrypt(mk domain.SymmetricKey, ciphertext, nonce, ad []byte) ([]byte, error) {
	if len(ad) == 0 {
		return nil, errEmptyAD
	}
	pt, err := crypto.Open(mk[:], nonce, ciphertext, ad)
	if err != nil {
		return nil, domain.ErrDecryptFailure
	}
	return pt, nil
}
