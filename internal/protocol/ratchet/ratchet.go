package ratchet

import (
	"fmt"

	"github.com/NitinDabar/e2ee-chat/internal/crypto"
	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/util/memzero"
)

// MaxSkip bounds how many message keys one envelope may skip over.
const MaxSkip = 1000

// Status is the lifecycle stage of a State.
type Status int

const (
	Uninitialized Status = iota
	SendingOnly
	Bidirectional
)

func (s Status) String() string {
	switch s {
	case SendingOnly:
		return "sending-only"
	case Bidirectional:
		return "bidirectional"
	default:
		return "uninitialized"
	}
}

// State is the Double Ratchet state for one conversation partner.
type State struct {
	rootKey  domain.SymmetricKey
	theirPub *domain.X25519Public
	my       *domain.X25519KeyPair
	sendCK   *domain.SymmetricKey
	recvCK   *domain.SymmetricKey
	ns       uint32
	nr       uint32
	pn       uint32
}

// New returns an uninitialized state seeded with the X3DH shared secret.
// The initiator follows up with InitializeSendingChain(peer signed pre-key).
func New(sharedSecret domain.SymmetricKey) *State {
	return &State{rootKey: sharedSecret}
}

// NewResponder returns a state for the responder side: the ratchet key pair
// is the device's signed pre-key pair, which the initiator's first DH step
// targeted.
func NewResponder(sharedSecret domain.SymmetricKey, signedPreKey domain.X25519KeyPair) *State {
	kp := signedPreKey
	return &State{rootKey: sharedSecret, my: &kp}
}

// InitializeSendingChain generates a new local ratchet key pair, mixes
// DH(new, theirPub) into the root key and seeds a fresh send chain.
func (s *State) InitializeSendingChain(theirPub domain.X25519Public) error {
	kp, err := crypto.GenerateX25519()
	if err != nil {
		return fmt.Errorf("generate ratchet key: %w", err)
	}
	dh, err := crypto.DH(kp.Private, theirPub)
	if err != nil {
		return err
	}
	defer memzero.Zero(dh[:])

	root, ck := kdfRK(s.rootKey, dh[:])
	s.wipeMine()
	memzero.Zero(s.rootKey[:])
	s.rootKey = root
	s.my = &kp
	s.setSendCK(&ck)
	s.ns = 0
	pub := theirPub
	s.theirPub = &pub
	return nil
}

// HandleReceivedPublicKey runs the receiving half of a DH ratchet turn for a
// peer key not seen before. It records the finished receive chain length,
// mixes DH(current local ratchet key, theirNewPub) into the root key and
// seeds a new receive chain. The caller must then call
// InitializeSendingChain(theirNewPub) to complete the turn.
func (s *State) HandleReceivedPublicKey(theirNewPub domain.X25519Public) error {
	if s.my == nil {
		return fmt.Errorf("no local ratchet key: %w", domain.ErrChainNotInitialized)
	}
	dh, err := crypto.DH(s.my.Private, theirNewPub)
	if err != nil {
		return err
	}
	defer memzero.Zero(dh[:])

	root, ck := kdfRK(s.rootKey, dh[:])
	memzero.Zero(s.rootKey[:])
	s.rootKey = root
	s.setRecvCK(&ck)
	s.pn = s.nr
	s.nr = 0
	pub := theirNewPub
	s.theirPub = &pub
	return nil
}

// StepSendingChain derives the next message key and its number, and
// replaces the send chain key with its successor.
func (s *State) StepSendingChain() (domain.SymmetricKey, uint32, error) {
	if s.sendCK == nil {
		return domain.SymmetricKey{}, 0, fmt.Errorf("send chain: %w", domain.ErrChainNotInitialized)
	}
	mk, next := kdfCK(*s.sendCK)
	s.setSendCK(&next)
	n := s.ns
	s.ns++
	return mk, n, nil
}

// StepReceivingChain is StepSendingChain for the receive chain.
func (s *State) StepReceivingChain() (domain.SymmetricKey, uint32, error) {
	if s.recvCK == nil {
		return domain.SymmetricKey{}, 0, fmt.Errorf("receive chain: %w", domain.ErrChainNotInitialized)
	}
	mk, next := kdfCK(*s.recvCK)
	s.setRecvCK(&next)
	n := s.nr
	s.nr++
	return mk, n, nil
}

// MessageKeyFor returns the receive-chain message key for message number n,
// stepping over and discarding keys for any skipped numbers. A number behind
// the chain fails with domain.ErrDecryptFailure and leaves s unchanged.
func (s *State) MessageKeyFor(n uint32) (domain.SymmetricKey, error) {
	var mk domain.SymmetricKey
	if s.recvCK == nil {
		return mk, fmt.Errorf("receive chain: %w", domain.ErrChainNotInitialized)
	}
	if n < s.nr {
		return mk, fmt.Errorf("message %d already consumed (chain at %d): %w", n, s.nr, domain.ErrDecryptFailure)
	}
	if n-s.nr > MaxSkip {
		return mk, fmt.Errorf("message %d, chain at %d: %w", n, s.nr, domain.ErrSkipLimitExceeded)
	}
	for s.nr < n {
		skipped, _, err := s.StepReceivingChain()
		if err != nil {
			return mk, err
		}
		memzero.Zero(skipped[:])
	}
	mk, _, err := s.StepReceivingChain()
	return mk, err
}

// Status reports the lifecycle stage.
func (s *State) Status() Status {
	switch {
	case s.recvCK != nil:
		return Bidirectional
	case s.sendCK != nil:
		return SendingOnly
	default:
		return Uninitialized
	}
}

// TheirRatchetPublicKey returns the last peer ratchet key mixed into the root.
func (s *State) TheirRatchetPublicKey() (domain.X25519Public, bool) {
	if s.theirPub == nil {
		return domain.X25519Public{}, false
	}
	return *s.theirPub, true
}

// MyRatchetPublicKey returns the current local ratchet public key.
func (s *State) MyRatchetPublicKey() (domain.X25519Public, bool) {
	if s.my == nil {
		return domain.X25519Public{}, false
	}
	return s.my.Public, true
}

// SendChainKey exposes the current send chain key.
func (s *State) SendChainKey() (domain.SymmetricKey, bool) {
	if s.sendCK == nil {
		return domain.SymmetricKey{}, false
	}
	return *s.sendCK, true
}

// RootKey returns the current root key.
func (s *State) RootKey() domain.SymmetricKey { return s.rootKey }

func (s *State) SendMessageNumber() uint32    { return s.ns }
func (s *State) ReceiveMessageNumber() uint32 { return s.nr }
func (s *State) PreviousChainLength() uint32  { return s.pn }

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := *s
	c.theirPub = clonePtr(s.theirPub)
	c.my = clonePtr(s.my)
	c.sendCK = clonePtr(s.sendCK)
	c.recvCK = clonePtr(s.recvCK)
	return &c
}

// Wipe zeroes all secret material held by s.
func (s *State) Wipe() {
	memzero.Zero(s.rootKey[:])
	s.wipeMine()
	s.setSendCK(nil)
	s.setRecvCK(nil)
}

func (s *State) setSendCK(ck *domain.SymmetricKey) {
	memzero.Key(s.sendCK)
	s.sendCK = ck
}

func (s *State) setRecvCK(ck *domain.SymmetricKey) {
	memzero.Key(s.recvCK)
	s.recvCK = ck
}

func (s *State) wipeMine() {
	if s.my != nil {
		memzero.Key(&s.my.Private)
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
