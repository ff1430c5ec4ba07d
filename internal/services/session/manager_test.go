package session_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/protocol/ratchet"
	"github.com/NitinDabar/e2ee-chat/internal/services/identity"
	prekeysvc "github.com/NitinDabar/e2ee-chat/internal/services/prekey"
	"github.com/NitinDabar/e2ee-chat/internal/services/session"
	"github.com/NitinDabar/e2ee-chat/internal/store"
)

// flakyStore fails writes while fail is set.
type flakyStore struct {
	*store.MemoryStore
	fail atomic.Bool
}

func (s *flakyStore) StoreSnapshot(ctx context.Context, key string, data []byte) error {
	if s.fail.Load() {
		return errors.New("disk full")
	}
	return s.MemoryStore.StoreSnapshot(ctx, key, data)
}

type device struct {
	id      domain.PeerID
	store   *flakyStore
	prekeys *prekeysvc.Service
	mgr     *session.Manager
}

func newDevice(t *testing.T, id domain.PeerID) *device {
	t.Helper()
	st := &flakyStore{MemoryStore: store.NewMemoryStore()}
	ids := identity.New(st, id, zerolog.Nop())
	_, _, err := ids.GenerateDevice(context.Background())
	require.NoError(t, err)
	pks := prekeysvc.New(ids, nil, id, 0, zerolog.Nop())
	return &device{id: id, store: st, prekeys: pks, mgr: session.New(id, pks, st, zerolog.Nop())}
}

// reload returns a fresh manager for d restored from its store.
func (d *device) reload(t *testing.T) *session.Manager {
	t.Helper()
	m := session.New(d.id, d.prekeys, d.store, zerolog.Nop())
	require.NoError(t, m.Load(context.Background()))
	return m
}

func (d *device) bundle(t *testing.T) domain.PreKeyBundle {
	t.Helper()
	b, err := d.prekeys.PublicBundle(context.Background(), 10)
	require.NoError(t, err)
	return b
}

func send(t *testing.T, m *session.Manager, from, to domain.PeerID, msg string) domain.Envelope {
	t.Helper()
	env, err := m.EncryptFor(context.Background(), to, []byte(msg), from.String(), to.String())
	require.NoError(t, err)
	return env
}

func recv(t *testing.T, m *session.Manager, from domain.PeerID, env domain.Envelope) string {
	t.Helper()
	pt, err := m.DecryptFrom(context.Background(), from, env)
	require.NoError(t, err)
	return string(pt)
}

// handshake establishes alice -> bob and returns alice's first envelope.
func handshake(t *testing.T, alice, bob *device) domain.Envelope {
	t.Helper()
	ctx := context.Background()
	_, err := alice.mgr.InitializeSession(ctx, bob.id, bob.bundle(t))
	require.NoError(t, err)
	env := send(t, alice.mgr, alice.id, bob.id, "hello")
	pt, err := bob.mgr.AcceptSession(ctx, alice.id, alice.bundle(t), env)
	require.NoError(t, err)
	require.Equal(t, "hello", string(pt))
	return env
}

func TestBasicExchange(t *testing.T) {
	ctx := context.Background()
	alice, bob := newDevice(t, "alice"), newDevice(t, "bob")

	bobBundle := bob.bundle(t)
	snA, err := alice.mgr.InitializeSession(ctx, bob.id, bobBundle)
	require.NoError(t, err)
	status, ok := alice.mgr.Status(bob.id)
	require.True(t, ok)
	require.Equal(t, ratchet.SendingOnly, status)

	env := send(t, alice.mgr, alice.id, bob.id, "hello")
	require.NotNil(t, env.DHPublicKey)
	require.Equal(t, uint32(0), env.MessageNumber)

	pt, err := bob.mgr.AcceptSession(ctx, alice.id, alice.bundle(t), env)
	require.NoError(t, err)
	require.Equal(t, "hello", string(pt))

	snB, ok := bob.mgr.SafetyNumber(alice.id)
	require.True(t, ok)
	require.Equal(t, snA, snB)

	// The one-time pre-key alice used is gone from bob's bundle.
	dev, err := bob.prekeys.LoadDevice(ctx)
	require.NoError(t, err)
	require.True(t, dev.OneTimePreKeys[0].Used)
	require.Equal(t, bobBundle.OneTimePreKeys[0].ID, dev.OneTimePreKeys[0].ID)
	require.NotEqual(t, bobBundle.OneTimePreKeys[0].ID, bob.bundle(t).OneTimePreKeys[0].ID)
}

func TestAcceptWithoutOneTimePreKey(t *testing.T) {
	ctx := context.Background()
	alice, bob := newDevice(t, "alice"), newDevice(t, "bob")

	b := bob.bundle(t)
	b.OneTimePreKeys = nil
	_, err := alice.mgr.InitializeSession(ctx, bob.id, b)
	require.NoError(t, err)

	env := send(t, alice.mgr, alice.id, bob.id, "degraded")
	pt, err := bob.mgr.AcceptSession(ctx, alice.id, alice.bundle(t), env)
	require.NoError(t, err)
	require.Equal(t, "degraded", string(pt))

	dev, err := bob.prekeys.LoadDevice(ctx)
	require.NoError(t, err)
	for _, otk := range dev.OneTimePreKeys {
		require.False(t, otk.Used)
	}
}

func TestSignatureRejection(t *testing.T) {
	ctx := context.Background()
	alice, bob := newDevice(t, "alice"), newDevice(t, "bob")

	b := bob.bundle(t)
	b.SignedPreKeySignature[0] ^= 0x01
	_, err := alice.mgr.InitializeSession(ctx, bob.id, b)
	require.ErrorIs(t, err, domain.ErrSignatureInvalid)
	require.True(t, domain.IsProtocolError(err))
	require.False(t, alice.mgr.HasSession(bob.id))

	// The responder checks the initiator's bundle too.
	ab := alice.bundle(t)
	ab.SignedPreKeySignature[10] ^= 0x80
	_, err = bob.mgr.AcceptSession(ctx, alice.id, ab, domain.Envelope{})
	require.ErrorIs(t, err, domain.ErrSignatureInvalid)
	require.False(t, bob.mgr.HasSession(alice.id))
}

func TestSessionNotFound(t *testing.T) {
	alice := newDevice(t, "alice")
	_, err := alice.mgr.EncryptFor(context.Background(), "nobody", []byte("x"), "alice", "nobody")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = alice.mgr.DecryptFrom(context.Background(), "nobody", domain.Envelope{})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = alice.mgr.VerifySafetyNumber("nobody", "x")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRatchetTurn(t *testing.T) {
	alice, bob := newDevice(t, "alice"), newDevice(t, "bob")
	first := handshake(t, alice, bob)

	reply := send(t, bob.mgr, bob.id, alice.id, "hi alice")
	require.NotEqual(t, *first.DHPublicKey, *reply.DHPublicKey)
	require.Equal(t, "hi alice", recv(t, alice.mgr, bob.id, reply))

	status, _ := alice.mgr.Status(bob.id)
	require.Equal(t, ratchet.Bidirectional, status)

	next := send(t, alice.mgr, alice.id, bob.id, "after turn")
	require.NotEqual(t, *first.DHPublicKey, *next.DHPublicKey)
	require.Equal(t, uint32(0), next.MessageNumber)
	require.Equal(t, "after turn", recv(t, bob.mgr, alice.id, next))

	// Several turns in a row keep both sides in step.
	for i := range 5 {
		require.Equal(t, "b", recv(t, alice.mgr, bob.id, send(t, bob.mgr, bob.id, alice.id, "b")), i)
		require.Equal(t, "a", recv(t, bob.mgr, alice.id, send(t, alice.mgr, alice.id, bob.id, "a")), i)
	}
}

func TestForwardSkip(t *testing.T) {
	alice, bob := newDevice(t, "alice"), newDevice(t, "bob")
	handshake(t, alice, bob)

	m1 := send(t, alice.mgr, alice.id, bob.id, "one")
	m2 := send(t, alice.mgr, alice.id, bob.id, "two")
	require.Equal(t, m1.MessageNumber+1, m2.MessageNumber)

	require.Equal(t, "two", recv(t, bob.mgr, alice.id, m2))

	_, err := bob.mgr.DecryptFrom(context.Background(), alice.id, m1)
	require.ErrorIs(t, err, domain.ErrDecryptFailure)

	// The late message did not disturb the chain.
	require.Equal(t, "three", recv(t, bob.mgr, alice.id, send(t, alice.mgr, alice.id, bob.id, "three")))

	// Same on a fresh chain after a ratchet turn: 1 arrives before 0.
	b0 := send(t, bob.mgr, bob.id, alice.id, "zero")
	b1 := send(t, bob.mgr, bob.id, alice.id, "one")
	require.Equal(t, uint32(0), b0.MessageNumber)
	require.Equal(t, "one", recv(t, alice.mgr, bob.id, b1))
	_, err = alice.mgr.DecryptFrom(context.Background(), bob.id, b0)
	require.ErrorIs(t, err, domain.ErrDecryptFailure)
}

func TestTamperLeavesStateUntouched(t *testing.T) {
	alice, bob := newDevice(t, "alice"), newDevice(t, "bob")
	handshake(t, alice, bob)

	env := send(t, bob.mgr, bob.id, alice.id, "turn")
	bad := env
	bad.Ciphertext = append([]byte(nil), env.Ciphertext...)
	bad.Ciphertext[0] ^= 0x01

	_, err := alice.mgr.DecryptFrom(context.Background(), bob.id, bad)
	require.ErrorIs(t, err, domain.ErrDecryptFailure)
	status, _ := alice.mgr.Status(bob.id)
	require.Equal(t, ratchet.SendingOnly, status, "failed ratchet turn must not commit")

	require.Equal(t, "turn", recv(t, alice.mgr, bob.id, env))
}

func TestPersistAndReload(t *testing.T) {
	alice, bob := newDevice(t, "alice"), newDevice(t, "bob")
	handshake(t, alice, bob)
	require.Equal(t, "r1", recv(t, alice.mgr, bob.id, send(t, bob.mgr, bob.id, alice.id, "r1")))

	alice.mgr = alice.reload(t)
	bob.mgr = bob.reload(t)
	require.True(t, alice.mgr.HasSession(bob.id))
	require.ElementsMatch(t, []domain.PeerID{bob.id}, alice.mgr.Peers())

	// Both directions still ratchet after the reload.
	require.Equal(t, "a2", recv(t, bob.mgr, alice.id, send(t, alice.mgr, alice.id, bob.id, "a2")))
	require.Equal(t, "b2", recv(t, alice.mgr, bob.id, send(t, bob.mgr, bob.id, alice.id, "b2")))

	snA, _ := alice.mgr.SafetyNumber(bob.id)
	ok, err := bob.mgr.VerifySafetyNumber(alice.id, snA.Raw)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLoadRejectsCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	alice := newDevice(t, "alice")
	require.NoError(t, alice.store.StoreSnapshot(ctx, "alice/sessions", []byte(`{"v":1,"owner":"alice","conv`)))
	err := session.New("alice", alice.prekeys, alice.store, zerolog.Nop()).Load(ctx)
	require.ErrorIs(t, err, domain.ErrSerialization)

	require.NoError(t, alice.store.StoreSnapshot(ctx, "alice/sessions", []byte(`{"v":1,"owner":"mallory","conversations":{}}`)))
	err = session.New("alice", alice.prekeys, alice.store, zerolog.Nop()).Load(ctx)
	require.ErrorIs(t, err, domain.ErrSerialization)
}

func TestLoadDropsBrokenConversation(t *testing.T) {
	alice, bob, carol := newDevice(t, "alice"), newDevice(t, "bob"), newDevice(t, "carol")
	handshake(t, alice, bob)
	handshake(t, alice, carol)

	snap := alice.mgr.Snapshot()
	conv := snap.Conversations["carol"]
	conv.State.MyRatchetPrivateKey = nil
	snap.Conversations["carol"] = conv

	st := store.NewMemoryStore()
	require.NoError(t, st.StoreSnapshot(context.Background(), "alice/sessions", mustJSON(t, snap)))
	m := session.New("alice", alice.prekeys, st, zerolog.Nop())
	require.NoError(t, m.Load(context.Background()))
	require.True(t, m.HasSession("bob"))
	require.False(t, m.HasSession("carol"))
}

func TestStoreFailureRollsBack(t *testing.T) {
	alice, bob := newDevice(t, "alice"), newDevice(t, "bob")
	handshake(t, alice, bob)

	alice.store.fail.Store(true)
	_, err := alice.mgr.EncryptFor(context.Background(), bob.id, []byte("lost"), "alice", "bob")
	require.Error(t, err)
	require.False(t, domain.IsProtocolError(err))
	alice.store.fail.Store(false)

	// The failed send did not consume a chain step.
	env := send(t, alice.mgr, alice.id, bob.id, "kept")
	require.Equal(t, uint32(1), env.MessageNumber)
	require.Equal(t, "kept", recv(t, bob.mgr, alice.id, env))
}

func TestConcurrentSendsSerialise(t *testing.T) {
	alice, bob := newDevice(t, "alice"), newDevice(t, "bob")
	handshake(t, alice, bob)

	const n = 40
	envs := make([]domain.Envelope, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			envs[i], errs[i] = alice.mgr.EncryptFor(context.Background(), bob.id, []byte("m"), "alice", "bob")
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	sort.Slice(envs, func(i, j int) bool { return envs[i].MessageNumber < envs[j].MessageNumber })
	for i, env := range envs {
		require.Equal(t, uint32(i+1), env.MessageNumber)
		require.Equal(t, "m", recv(t, bob.mgr, alice.id, env))
	}
}

func TestDistinctPeersDoNotShareState(t *testing.T) {
	alice, bob, carol := newDevice(t, "alice"), newDevice(t, "bob"), newDevice(t, "carol")
	handshake(t, alice, bob)
	handshake(t, alice, carol)

	var wg sync.WaitGroup
	for _, peer := range []*device{bob, carol} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				env, err := alice.mgr.EncryptFor(context.Background(), peer.id, []byte("x"), "alice", peer.id.String())
				if err != nil {
					t.Error(err)
					return
				}
				if _, err := peer.mgr.DecryptFrom(context.Background(), alice.id, env); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	// A message for bob does not open under carol's session.
	env := send(t, alice.mgr, alice.id, bob.id, "for bob")
	_, err := carol.mgr.DecryptFrom(context.Background(), alice.id, env)
	require.ErrorIs(t, err, domain.ErrDecryptFailure)
	require.ElementsMatch(t, []domain.PeerID{bob.id, carol.id}, alice.mgr.Peers())
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	alice, bob := newDevice(t, "alice"), newDevice(t, "bob")
	handshake(t, alice, bob)

	require.NoError(t, alice.mgr.DeleteSession(ctx, bob.id))
	require.False(t, alice.mgr.HasSession(bob.id))
	require.NoError(t, alice.mgr.DeleteSession(ctx, bob.id))

	require.False(t, alice.reload(t).HasSession(bob.id))

	// A fresh handshake replaces the old session on both ends.
	handshake(t, alice, bob)
}

func TestSimultaneousStartKeepsLowerIDSession(t *testing.T) {
	ctx := context.Background()
	alice, bob := newDevice(t, "alice"), newDevice(t, "bob")

	_, err := alice.mgr.InitializeSession(ctx, bob.id, bob.bundle(t))
	require.NoError(t, err)
	_, err = bob.mgr.InitializeSession(ctx, alice.id, alice.bundle(t))
	require.NoError(t, err)
	a0 := send(t, alice.mgr, alice.id, bob.id, "from alice")
	b0 := send(t, bob.mgr, bob.id, alice.id, "from bob 0")
	b1 := send(t, bob.mgr, bob.id, alice.id, "from bob 1")

	require.False(t, alice.mgr.KnowsRatchetKey(bob.id, *b0.DHPublicKey))
	_, err = alice.mgr.DecryptFrom(ctx, bob.id, b0)
	require.ErrorIs(t, err, domain.ErrDecryptFailure)

	// alice sorts first, so her session survives and bob's becomes its rival.
	pt, err := alice.mgr.AcceptSession(ctx, bob.id, bob.bundle(t), b0)
	require.NoError(t, err)
	require.Equal(t, "from bob 0", string(pt))
	status, _ := alice.mgr.Status(bob.id)
	require.Equal(t, ratchet.SendingOnly, status)
	require.True(t, alice.mgr.KnowsRatchetKey(bob.id, *b0.DHPublicKey))

	// The rival chain survives a restart.
	alice.mgr = alice.reload(t)
	require.NotNil(t, alice.mgr.Snapshot().Conversations[bob.id].Rival)
	require.Equal(t, "from bob 1", recv(t, alice.mgr, bob.id, b1))

	// bob sorts last, so he adopts alice's session.
	pt, err = bob.mgr.AcceptSession(ctx, alice.id, alice.bundle(t), a0)
	require.NoError(t, err)
	require.Equal(t, "from alice", string(pt))
	status, _ = bob.mgr.Status(alice.id)
	require.Equal(t, ratchet.Bidirectional, status)

	b2 := send(t, bob.mgr, bob.id, alice.id, "on your session")
	require.Equal(t, "on your session", recv(t, alice.mgr, bob.id, b2))
	require.Nil(t, alice.mgr.Snapshot().Conversations[bob.id].Rival)
	require.Equal(t, "reply", recv(t, bob.mgr, alice.id, send(t, alice.mgr, alice.id, bob.id, "reply")))
}

func TestAcceptReplacesEstablishedSession(t *testing.T) {
	ctx := context.Background()
	alice, bob := newDevice(t, "alice"), newDevice(t, "bob")
	handshake(t, alice, bob)
	require.Equal(t, "yo", recv(t, alice.mgr, bob.id, send(t, bob.mgr, bob.id, alice.id, "yo")))

	// bob, who sorts last, starts over; alice's answered session gives way.
	_, err := bob.mgr.InitializeSession(ctx, alice.id, alice.bundle(t))
	require.NoError(t, err)
	env := send(t, bob.mgr, bob.id, alice.id, "again")
	pt, err := alice.mgr.AcceptSession(ctx, bob.id, bob.bundle(t), env)
	require.NoError(t, err)
	require.Equal(t, "again", string(pt))
	require.Nil(t, alice.mgr.Snapshot().Conversations[bob.id].Rival)

	require.Equal(t, "ok", recv(t, bob.mgr, alice.id, send(t, alice.mgr, alice.id, bob.id, "ok")))
}
