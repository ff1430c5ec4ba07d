package ratchet

import (
	"fmt"

	"github.com/NitinDabar/e2ee-chat/internal/crypto"
	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

// Snapshot returns the persisted form of s, including the private half of
// the current ratchet key pair.
func (s *State) Snapshot() domain.RatchetSnapshot {
	snap := domain.RatchetSnapshot{
		RootKey:               s.rootKey,
		TheirRatchetPublicKey: clonePtr(s.theirPub),
		SendChainKey:          clonePtr(s.sendCK),
		ReceiveChainKey:       clonePtr(s.recvCK),
		SendMessageNumber:     s.ns,
		ReceiveMessageNumber:  s.nr,
		PreviousChainLength:   s.pn,
	}
	if s.my != nil {
		snap.MyRatchetPublicKey = clonePtr(&s.my.Public)
		snap.MyRatchetPrivateKey = clonePtr(&s.my.Private)
	}
	return snap
}

// Restore rebuilds a State from a snapshot. An internally inconsistent
// snapshot fails with domain.ErrSerialization.
func Restore(snap domain.RatchetSnapshot) (*State, error) {
	s := &State{
		rootKey:  snap.RootKey,
		theirPub: clonePtr(snap.TheirRatchetPublicKey),
		sendCK:   clonePtr(snap.SendChainKey),
		recvCK:   clonePtr(snap.ReceiveChainKey),
		ns:       snap.SendMessageNumber,
		nr:       snap.ReceiveMessageNumber,
		pn:       snap.PreviousChainLength,
	}
	switch {
	case (snap.MyRatchetPublicKey == nil) != (snap.MyRatchetPrivateKey == nil):
		return nil, fmt.Errorf("ratchet key pair half missing: %w", domain.ErrSerialization)
	case snap.MyRatchetPrivateKey != nil:
		pub, err := crypto.X25519Public(*snap.MyRatchetPrivateKey)
		if err != nil || pub != *snap.MyRatchetPublicKey {
			return nil, fmt.Errorf("ratchet key pair mismatch: %w", domain.ErrSerialization)
		}
		s.my = &domain.X25519KeyPair{Private: *snap.MyRatchetPrivateKey, Public: pub}
	}
	if s.sendCK != nil && (s.my == nil || s.theirPub == nil) {
		return nil, fmt.Errorf("send chain without ratchet keys: %w", domain.ErrSerialization)
	}
	if s.recvCK != nil && s.theirPub == nil {
		return nil, fmt.Errorf("receive chain without peer key: %w", domain.ErrSerialization)
	}
	return s, nil
}
