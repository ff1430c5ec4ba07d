package ratchet

import (
	"github.com/NitinDabar/e2ee-chat/internal/crypto"
	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

// Domain-separation labels for the keyed-hash KDF.
const (
	labelRootKey    = "RootKey"
	labelChainKey   = "ChainKey"
	labelMessageKey = "MessageKey"
)

var (
	messageKeyInput = []byte{0x01}
	chainKeyInput   = []byte{0x02}
)

// kdfRK advances the root key with a DH output and seeds a chain key.
func kdfRK(root domain.SymmetricKey, dh []byte) (newRoot, ck domain.SymmetricKey) {
	return crypto.KDF(root[:], dh, labelRootKey), crypto.KDF(root[:], dh, labelChainKey)
}

// kdfCK derives a message key and the next chain key from ck.
func kdfCK(ck domain.SymmetricKey) (mk, next domain.SymmetricKey) {
	return crypto.KDF(ck[:], messageKeyInput, labelMessageKey), crypto.KDF(ck[:], chainKeyInput, labelChainKey)
}
