package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/protocol/codec"
	"github.com/NitinDabar/e2ee-chat/internal/protocol/prekey"
	"github.com/NitinDabar/e2ee-chat/internal/protocol/ratchet"
	"github.com/NitinDabar/e2ee-chat/internal/protocol/safetynumber"
	"github.com/NitinDabar/e2ee-chat/internal/protocol/x3dh"
)

// Manager is the session manager for one device.
//
// Typical use:
//  1. Load restores persisted sessions at startup.
//  2. InitializeSession (sender side) or AcceptSession (receiver side) runs
//     X3DH against the peer's public bundle.
//  3. EncryptFor and DecryptFrom step the peer's ratchet once per message.
type Manager struct {
	self  domain.PeerID
	keys  domain.DeviceKeySource
	store domain.SnapshotStore
	log   zerolog.Logger
	now   func() time.Time

	repo *Repository

	// persistMu guards records, the committed view written to the store.
	// Lock order: entry, then persistMu.
	persistMu sync.Mutex
	records   map[domain.PeerID]domain.Conversation
}

// New returns a Manager with no sessions. Call Load to restore state.
func New(
	self domain.PeerID,
	keys domain.DeviceKeySource,
	store domain.SnapshotStore,
	log zerolog.Logger,
) *Manager {
	return &Manager{
		self:    self,
		keys:    keys,
		store:   store,
		log:     log.With().Str("component", "session").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
		repo:    NewRepository(),
		records: make(map[domain.PeerID]domain.Conversation),
	}
}

// InitializeSession runs X3DH as initiator against the peer's bundle and
// starts a sending chain toward the peer's signed pre-key. Any existing
// session with peer is replaced. The bundle's first one-time pre-key, if
// any, is mixed in.
func (m *Manager) InitializeSession(
	ctx context.Context,
	peer domain.PeerID,
	bundle domain.PreKeyBundle,
) (domain.SafetyNumber, error) {
	device, err := m.keys.LoadDevice(ctx)
	if err != nil {
		return domain.SafetyNumber{}, err
	}

	var opkPub *domain.X25519Public
	opk := x3dh.SelectOneTimePreKey(bundle)
	if opk != nil {
		opkPub = &opk.Pub
	}
	sk, err := x3dh.InitiatorSharedSecret(device.Identity.Private, device.Agreement.Private, bundle, opkPub)
	if err != nil {
		return domain.SafetyNumber{}, fmt.Errorf("handshake with %s: %w", peer, err)
	}

	st := ratchet.New(sk)
	if err := st.InitializeSendingChain(bundle.SignedPreKey); err != nil {
		return domain.SafetyNumber{}, err
	}
	sn := safetynumber.Generate(
		device.Identity.Public, device.SignedPreKey.KeyPair.Public,
		bundle.IdentityKey, bundle.SignedPreKey,
	)

	e := m.repo.lock(peer, true)
	defer e.mu.Unlock()
	if err := m.commit(ctx, peer, e, st, nil, sn, m.now()); err != nil {
		return domain.SafetyNumber{}, err
	}

	ev := m.log.Info().Str("peer", peer.String())
	if opk != nil {
		ev = ev.Str("one_time_pre_key", opk.ID.String())
	} else {
		ev = ev.Bool("one_time_pre_key", false)
	}
	ev.Msg("session initialized")
	return sn, nil
}

// AcceptSession runs X3DH as responder for the first envelope of a peer that
// initialized a session with us, and returns its plaintext.
//
// The envelope does not say which one-time pre-key the initiator used, so
// each unused one is tried in order, then the degraded no-key mode, until
// the envelope authenticates. The matching one-time pre-key is marked used
// before the session is committed.
//
// An existing session with peer is replaced, except when both sides started
// a session at once: if ours is still unanswered and our id sorts first, it
// is kept and the accepted state becomes its rival chain. The peer applies
// the same rule and adopts our session, so both ends converge.
func (m *Manager) AcceptSession(
	ctx context.Context,
	peer domain.PeerID,
	bundle domain.PreKeyBundle,
	first domain.Envelope,
) ([]byte, error) {
	device, err := m.keys.LoadDevice(ctx)
	if err != nil {
		return nil, err
	}
	if err := x3dh.VerifySignedPreKey(bundle.IdentityKey, bundle.SignedPreKey, bundle.SignedPreKeySignature); err != nil {
		return nil, fmt.Errorf("handshake from %s: %w", peer, err)
	}
	if first.DHPublicKey == nil {
		return nil, fmt.Errorf("first envelope from %s has no ratchet key: %w", peer, domain.ErrDecryptFailure)
	}

	candidates := prekey.Unused(device)
	for i := 0; i <= len(candidates); i++ {
		var (
			opkPriv *domain.X25519Private
			opkID   domain.OneTimePreKeyID
		)
		if i < len(candidates) {
			opkPriv = &candidates[i].KeyPair.Private
			opkID = candidates[i].ID
		}

		sk, err := x3dh.ResponderSharedSecret(device.Identity.Private, device.SignedPreKey.KeyPair.Private, opkPriv, bundle)
		if err != nil {
			return nil, fmt.Errorf("handshake from %s: %w", peer, err)
		}
		st := ratchet.NewResponder(sk, device.SignedPreKey.KeyPair)
		pt, err := m.open(st, peer, first)
		if err != nil {
			st.Wipe()
			if errors.Is(err, domain.ErrDecryptFailure) {
				continue
			}
			return nil, err
		}

		if opkID != "" {
			if err := m.keys.ConsumeOneTimePreKey(ctx, opkID); err != nil {
				return nil, fmt.Errorf("consume one-time pre-key: %w", err)
			}
		}
		sn := safetynumber.Generate(
			device.Identity.Public, device.SignedPreKey.KeyPair.Public,
			bundle.IdentityKey, bundle.SignedPreKey,
		)

		e := m.repo.lock(peer, true)
		keepOurs := m.winsSimultaneousStart(peer, e)
		if keepOurs {
			err = m.commit(ctx, peer, e, e.state, st, e.safety, e.established)
		} else {
			err = m.commit(ctx, peer, e, st, nil, sn, m.now())
		}
		e.mu.Unlock()
		if err != nil {
			return nil, err
		}

		m.log.Info().
			Str("peer", peer.String()).
			Str("one_time_pre_key", opkID.String()).
			Bool("kept_own_session", keepOurs).
			Msg("session accepted")
		return pt, nil
	}
	return nil, fmt.Errorf("no pre-key opens first envelope from %s: %w", peer, domain.ErrDecryptFailure)
}

// EncryptFor steps the peer's send chain once and seals plaintext. senderID
// and recipientID feed the associated data.
func (m *Manager) EncryptFor(
	ctx context.Context,
	peer domain.PeerID,
	plaintext []byte,
	senderID, recipientID string,
) (domain.Envelope, error) {
	e := m.repo.lock(peer, false)
	if e == nil {
		return domain.Envelope{}, domain.ErrSessionNotFound
	}
	defer e.mu.Unlock()
	if e.state == nil {
		return domain.Envelope{}, domain.ErrSessionNotFound
	}

	next := e.state.Clone()
	mk, n, err := next.StepSendingChain()
	if err != nil {
		return domain.Envelope{}, err
	}
	ct, nonce, err := codec.Encrypt(mk, plaintext, codec.AssociatedData(senderID, recipientID))
	if err != nil {
		return domain.Envelope{}, err
	}
	myPub, _ := next.MyRatchetPublicKey()
	env := domain.Envelope{
		Ciphertext:          ct,
		Nonce:               nonce,
		DHPublicKey:         &myPub,
		MessageNumber:       n,
		PreviousChainLength: next.PreviousChainLength(),
	}

	if err := m.commit(ctx, peer, e, next, e.rival, e.safety, e.established); err != nil {
		return domain.Envelope{}, err
	}
	m.log.Debug().Str("peer", peer.String()).Uint32("n", n).Msg("encrypted")
	return env, nil
}

// DecryptFrom opens an envelope from peer. A new ratchet key in the envelope
// triggers a DH ratchet turn first. On any failure the session is unchanged.
//
// A message that opens on the session itself retires the rival chain: the
// relay delivers in order, so the peer has switched to our session.
func (m *Manager) DecryptFrom(ctx context.Context, peer domain.PeerID, env domain.Envelope) ([]byte, error) {
	e := m.repo.lock(peer, false)
	if e == nil {
		return nil, domain.ErrSessionNotFound
	}
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, domain.ErrSessionNotFound
	}

	next := e.state.Clone()
	pt, err := m.open(next, peer, env)
	if err != nil {
		next.Wipe()
		if e.rival != nil && errors.Is(err, domain.ErrDecryptFailure) {
			return m.decryptRival(ctx, peer, e, env)
		}
		m.log.Warn().Err(err).Str("peer", peer.String()).Uint32("n", env.MessageNumber).Msg("decrypt failed")
		return nil, err
	}
	if err := m.commit(ctx, peer, e, next, nil, e.safety, e.established); err != nil {
		return nil, err
	}
	m.log.Debug().Str("peer", peer.String()).Uint32("n", env.MessageNumber).Msg("decrypted")
	return pt, nil
}

func (m *Manager) decryptRival(ctx context.Context, peer domain.PeerID, e *entry, env domain.Envelope) ([]byte, error) {
	next := e.rival.Clone()
	pt, err := m.open(next, peer, env)
	if err != nil {
		next.Wipe()
		m.log.Warn().Err(err).Str("peer", peer.String()).Uint32("n", env.MessageNumber).Msg("decrypt failed")
		return nil, err
	}
	if err := m.commit(ctx, peer, e, e.state, next, e.safety, e.established); err != nil {
		return nil, err
	}
	m.log.Debug().Str("peer", peer.String()).Uint32("n", env.MessageNumber).Msg("decrypted on rival chain")
	return pt, nil
}

// winsSimultaneousStart reports whether the session in e is our own
// unanswered handshake and should survive the peer's handshake. The lower
// peer id wins. e must be locked.
func (m *Manager) winsSimultaneousStart(peer domain.PeerID, e *entry) bool {
	return e.state != nil && e.state.Status() == ratchet.SendingOnly && m.self < peer
}

// open advances st for env and decrypts it. st is mutated even on failure;
// callers pass a clone.
func (m *Manager) open(st *ratchet.State, peer domain.PeerID, env domain.Envelope) ([]byte, error) {
	if env.DHPublicKey != nil {
		their, ok := st.TheirRatchetPublicKey()
		if !ok || their != *env.DHPublicKey {
			if err := st.HandleReceivedPublicKey(*env.DHPublicKey); err != nil {
				return nil, ratchetErr(err)
			}
			if err := st.InitializeSendingChain(*env.DHPublicKey); err != nil {
				return nil, ratchetErr(err)
			}
		}
	}
	mk, err := st.MessageKeyFor(env.MessageNumber)
	if err != nil {
		return nil, err
	}
	return codec.Decrypt(mk, env.Ciphertext, env.Nonce, codec.AssociatedData(peer.String(), m.self.String()))
}

// ratchetErr maps DH failures on attacker-controlled keys to decrypt failures.
func ratchetErr(err error) error {
	if domain.IsProtocolError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrDecryptFailure, err)
}

// HasSession reports whether a session with peer exists.
func (m *Manager) HasSession(peer domain.PeerID) bool {
	e := m.repo.lock(peer, false)
	if e == nil {
		return false
	}
	defer e.mu.Unlock()
	return e.state != nil
}

// KnowsRatchetKey reports whether key is the peer's current ratchet key in
// the session with peer or its rival chain. An envelope with an unknown key
// that fails to decrypt may be a new handshake from the peer.
func (m *Manager) KnowsRatchetKey(peer domain.PeerID, key domain.X25519Public) bool {
	e := m.repo.lock(peer, false)
	if e == nil {
		return false
	}
	defer e.mu.Unlock()
	for _, st := range []*ratchet.State{e.state, e.rival} {
		if st == nil {
			continue
		}
		if their, ok := st.TheirRatchetPublicKey(); ok && their == key {
			return true
		}
	}
	return false
}

// Status reports the ratchet stage of the session with peer.
func (m *Manager) Status(peer domain.PeerID) (ratchet.Status, bool) {
	e := m.repo.lock(peer, false)
	if e == nil {
		return ratchet.Uninitialized, false
	}
	defer e.mu.Unlock()
	if e.state == nil {
		return ratchet.Uninitialized, false
	}
	return e.state.Status(), true
}

// Peers lists peers with an established session.
func (m *Manager) Peers() []domain.PeerID { return m.repo.peers() }

// SafetyNumber returns the safety number recorded for peer.
func (m *Manager) SafetyNumber(peer domain.PeerID) (domain.SafetyNumber, bool) {
	e := m.repo.lock(peer, false)
	if e == nil {
		return domain.SafetyNumber{}, false
	}
	defer e.mu.Unlock()
	if e.state == nil {
		return domain.SafetyNumber{}, false
	}
	return e.safety, true
}

// VerifySafetyNumber compares raw with the recorded safety number.
func (m *Manager) VerifySafetyNumber(peer domain.PeerID, raw string) (bool, error) {
	sn, ok := m.SafetyNumber(peer)
	if !ok {
		return false, domain.ErrSessionNotFound
	}
	return safetynumber.Verify(sn, raw), nil
}

// DeleteSession forgets the session with peer. Deleting an unknown peer is
// not an error.
func (m *Manager) DeleteSession(ctx context.Context, peer domain.PeerID) error {
	e := m.repo.lock(peer, false)
	if e == nil {
		return nil
	}
	defer e.mu.Unlock()
	if e.state == nil {
		return nil
	}
	if err := m.remove(ctx, peer); err != nil {
		return err
	}
	e.wipe()
	e.safety = domain.SafetyNumber{}
	m.log.Info().Str("peer", peer.String()).Msg("session deleted")
	return nil
}

// Compile-time assertion that Manager implements domain.SessionService.
var _ domain.SessionService = (*Manager)(nil)
