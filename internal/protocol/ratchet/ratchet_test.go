package ratchet_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NitinDabar/e2ee-chat/internal/crypto"
	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/protocol/ratchet"
)

// pair returns an initiator and responder that have completed the first
// half turn: the initiator holds a send chain, the responder a receive chain.
func pair(t *testing.T) (alice, bob *ratchet.State) {
	t.Helper()
	var sk domain.SymmetricKey
	copy(sk[:], bytes.Repeat([]byte{0x42}, 32))

	spk, err := crypto.GenerateX25519()
	require.NoError(t, err)

	alice = ratchet.New(sk)
	require.NoError(t, alice.InitializeSendingChain(spk.Public))

	bob = ratchet.NewResponder(sk, spk)
	a1, ok := alice.MyRatchetPublicKey()
	require.True(t, ok)
	require.NoError(t, bob.HandleReceivedPublicKey(a1))
	return alice, bob
}

func TestStatusTransitions(t *testing.T) {
	var sk domain.SymmetricKey
	s := ratchet.New(sk)
	require.Equal(t, ratchet.Uninitialized, s.Status())

	_, _, err := s.StepSendingChain()
	require.ErrorIs(t, err, domain.ErrChainNotInitialized)
	_, _, err = s.StepReceivingChain()
	require.ErrorIs(t, err, domain.ErrChainNotInitialized)

	alice, bob := pair(t)
	require.Equal(t, ratchet.SendingOnly, alice.Status())
	require.Equal(t, ratchet.Bidirectional, bob.Status())
}

func TestChainsAgree(t *testing.T) {
	alice, bob := pair(t)

	for i := range 5 {
		sendKey, n, err := alice.StepSendingChain()
		require.NoError(t, err)
		require.Equal(t, uint32(i), n)

		recvKey, err := bob.MessageKeyFor(n)
		require.NoError(t, err)
		require.Equal(t, sendKey, recvKey)
	}
	require.Equal(t, alice.RootKey(), bob.RootKey())
}

func TestFullTurnAgrees(t *testing.T) {
	alice, bob := pair(t)

	a1, _ := alice.MyRatchetPublicKey()
	require.NoError(t, bob.InitializeSendingChain(a1))
	b1, _ := bob.MyRatchetPublicKey()

	require.NoError(t, alice.HandleReceivedPublicKey(b1))
	require.Equal(t, bob.RootKey(), alice.RootKey())

	bk, n, err := bob.StepSendingChain()
	require.NoError(t, err)
	ak, err := alice.MessageKeyFor(n)
	require.NoError(t, err)
	require.Equal(t, bk, ak)

	require.NoError(t, alice.InitializeSendingChain(b1))
	a2, _ := alice.MyRatchetPublicKey()
	require.NotEqual(t, a1, a2)

	require.NoError(t, bob.HandleReceivedPublicKey(a2))
	ak, n, err = alice.StepSendingChain()
	require.NoError(t, err)
	bk, err = bob.MessageKeyFor(n)
	require.NoError(t, err)
	require.Equal(t, ak, bk)
}

func TestSendMonotonicity(t *testing.T) {
	alice, _ := pair(t)
	const steps = 25
	seen := make(map[domain.SymmetricKey]bool)
	for range steps {
		mk, _, err := alice.StepSendingChain()
		require.NoError(t, err)
		require.False(t, seen[mk], "message keys must not repeat")
		seen[mk] = true
	}
	require.Equal(t, uint32(steps), alice.SendMessageNumber())
}

// TestChainOneWay checks that nothing reachable forward from a chain key
// reproduces an earlier one.
func TestChainOneWay(t *testing.T) {
	alice, _ := pair(t)

	before, ok := alice.SendChainKey()
	require.True(t, ok)
	mk, _, err := alice.StepSendingChain()
	require.NoError(t, err)
	after, _ := alice.SendChainKey()

	require.NotEqual(t, before, after)
	require.NotEqual(t, before, mk)

	probe := alice.Clone()
	for range 50 {
		k, _, err := probe.StepSendingChain()
		require.NoError(t, err)
		ck, _ := probe.SendChainKey()
		require.NotEqual(t, before, k)
		require.NotEqual(t, before, ck)
	}

	// The successor is KDF(previous) under the chain label, never the reverse.
	require.Equal(t, crypto.KDF(before[:], []byte{0x02}, "ChainKey"), after)
	require.NotEqual(t, crypto.KDF(after[:], []byte{0x02}, "ChainKey"), before)
}

func TestForwardSkip(t *testing.T) {
	alice, bob := pair(t)

	_, n0, err := alice.StepSendingChain()
	require.NoError(t, err)
	k1, n1, err := alice.StepSendingChain()
	require.NoError(t, err)

	got, err := bob.MessageKeyFor(n1)
	require.NoError(t, err)
	require.Equal(t, k1, got)
	require.Equal(t, uint32(2), bob.ReceiveMessageNumber())

	before := bob.Snapshot()
	_, err = bob.MessageKeyFor(n0)
	require.ErrorIs(t, err, domain.ErrDecryptFailure)
	require.Equal(t, before, bob.Snapshot(), "a stale number must not mutate state")
}

func TestSkipLimit(t *testing.T) {
	_, bob := pair(t)
	_, err := bob.MessageKeyFor(ratchet.MaxSkip + 1)
	require.ErrorIs(t, err, domain.ErrSkipLimitExceeded)
	require.Equal(t, uint32(0), bob.ReceiveMessageNumber())

	_, err = bob.MessageKeyFor(ratchet.MaxSkip)
	require.NoError(t, err)
}

func TestHandleReceivedRecordsPreviousChain(t *testing.T) {
	alice, bob := pair(t)
	for range 3 {
		_, n, err := alice.StepSendingChain()
		require.NoError(t, err)
		_, err = bob.MessageKeyFor(n)
		require.NoError(t, err)
	}
	a1, _ := alice.MyRatchetPublicKey()
	require.NoError(t, bob.InitializeSendingChain(a1))
	b1, _ := bob.MyRatchetPublicKey()

	// Alice has not received anything yet.
	require.NoError(t, alice.HandleReceivedPublicKey(b1))
	require.Equal(t, uint32(0), alice.PreviousChainLength())

	// Bob's second turn records the three messages he received on chain one.
	require.NoError(t, alice.InitializeSendingChain(b1))
	a2, _ := alice.MyRatchetPublicKey()
	require.NoError(t, bob.HandleReceivedPublicKey(a2))
	require.Equal(t, uint32(3), bob.PreviousChainLength())
	require.Equal(t, uint32(0), bob.ReceiveMessageNumber())

	their, ok := bob.TheirRatchetPublicKey()
	require.True(t, ok)
	require.Equal(t, a2, their)
}

func TestCloneIsIndependent(t *testing.T) {
	alice, _ := pair(t)
	c := alice.Clone()
	_, _, err := c.StepSendingChain()
	require.NoError(t, err)
	require.Equal(t, uint32(0), alice.SendMessageNumber())
	require.Equal(t, uint32(1), c.SendMessageNumber())

	c.Wipe()
	_, ok := alice.SendChainKey()
	require.True(t, ok)
}

func TestSnapshotRestore(t *testing.T) {
	alice, bob := pair(t)
	_, _, err := alice.StepSendingChain()
	require.NoError(t, err)

	raw, err := json.Marshal(alice.Snapshot())
	require.NoError(t, err)
	var snap domain.RatchetSnapshot
	require.NoError(t, json.Unmarshal(raw, &snap))

	restored, err := ratchet.Restore(snap)
	require.NoError(t, err)
	require.Equal(t, alice.Snapshot(), restored.Snapshot())

	// The restored state still completes a DH turn.
	a1, _ := restored.MyRatchetPublicKey()
	require.NoError(t, bob.InitializeSendingChain(a1))
	b1, _ := bob.MyRatchetPublicKey()
	require.NoError(t, restored.HandleReceivedPublicKey(b1))
	require.Equal(t, bob.RootKey(), restored.RootKey())
}

func TestRestoreRejectsInconsistentSnapshot(t *testing.T) {
	alice, _ := pair(t)

	snap := alice.Snapshot()
	snap.MyRatchetPrivateKey = nil
	_, err := ratchet.Restore(snap)
	require.ErrorIs(t, err, domain.ErrSerialization)

	snap = alice.Snapshot()
	other, err := crypto.GenerateX25519()
	require.NoError(t, err)
	snap.MyRatchetPublicKey = &other.Public
	_, err = ratchet.Restore(snap)
	require.ErrorIs(t, err, domain.ErrSerialization)

	snap = alice.Snapshot()
	snap.TheirRatchetPublicKey = nil
	_, err = ratchet.Restore(snap)
	require.ErrorIs(t, err, domain.ErrSerialization)
}
