// Package safetynumber computes the out-of-band verification value for a
// pair of devices.
//
// The four public keys are rendered as base64, sorted, joined with "|" and
// hashed with BLAKE2b-256. Raw is the base64 of the digest. Formatted takes
// each of the first 30 digest bytes mod 10 and groups the digits in fives,
// giving six groups. Sorting makes the value independent of which side
// computes it.
package safetynumber

import (
	"crypto/subtle"
	"sort"
	"strings"

	"github.com/NitinDabar/e2ee-chat/internal/crypto"
	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

const (
	digits    = 30
	groupSize = 5
)

// Generate returns the safety number for the two identities and signed pre-keys.
func Generate(
	myIdentity domain.Ed25519Public,
	mySignedPreKey domain.X25519Public,
	theirIdentity domain.Ed25519Public,
	theirSignedPreKey domain.X25519Public,
) domain.SafetyNumber {
	keys := []string{
		myIdentity.String(),
		mySignedPreKey.String(),
		theirIdentity.String(),
		theirSignedPreKey.String(),
	}
	sort.Strings(keys)
	sum := crypto.Hash256([]byte(strings.Join(keys, "|")))

	var b strings.Builder
	for i := range digits {
		if i > 0 && i%groupSize == 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('0' + sum[i]%10)
	}
	return domain.SafetyNumber{Raw: crypto.B64(sum[:]), Formatted: b.String()}
}

// Verify reports whether raw matches the expected value, in constant time.
func Verify(expected domain.SafetyNumber, raw string) bool {
	return subtle.ConstantTimeCompare([]byte(expected.Raw), []byte(raw)) == 1
}
