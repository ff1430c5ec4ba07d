package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/NitinDabar/e2ee-chat/internal/crypto"
	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/util/memzero"
)

// Sealed wraps a SnapshotStore and encrypts every value at rest with a key
// derived from a passphrase (Argon2id, XChaCha20-Poly1305).
//
// Key derivation is expensive, so derived keys are cached per salt for the
// life of the Sealed value. New blobs all share one salt generated on the
// first write.
type Sealed struct {
	inner      domain.SnapshotStore
	passphrase string
	params     argonParams

	mu    sync.Mutex
	salt  []byte
	cache map[string][]byte // salt and params -> kek
}

// SealedOption tunes a Sealed store.
type SealedOption func(*Sealed)

// WithArgonParams overrides the Argon2id cost for newly written blobs.
func WithArgonParams(time, memory uint32, threads uint8) SealedOption {
	return func(s *Sealed) { s.params = argonParams{Time: time, Memory: memory, Threads: threads} }
}

// NewSealed returns a Sealed store over inner.
func NewSealed(inner domain.SnapshotStore, passphrase string, opts ...SealedOption) *Sealed {
	s := &Sealed{
		inner:      inner,
		passphrase: passphrase,
		params:     defaultArgonParams(),
		cache:      make(map[string][]byte),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// LoadSnapshot reads and decrypts the value under key.
func (s *Sealed) LoadSnapshot(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := s.inner.LoadSnapshot(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	bl, err := parseBlob(raw)
	if err != nil {
		return nil, false, err
	}
	kek := s.kek(bl.Salt, argonParams{Time: bl.Time, Memory: bl.Memory, Threads: bl.Threads})
	pt, err := openBlob(kek, bl, key)
	if err != nil {
		return nil, false, err
	}
	return pt, true, nil
}

// StoreSnapshot encrypts data and writes it under key.
func (s *Sealed) StoreSnapshot(ctx context.Context, key string, data []byte) error {
	salt, err := s.writeSalt()
	if err != nil {
		return err
	}
	kek := s.kek(salt, s.params)
	b, err := sealBlob(kek, salt, s.params, key, data)
	if err != nil {
		return err
	}
	return s.inner.StoreSnapshot(ctx, key, b)
}

// DeleteSnapshot removes key from the inner store.
func (s *Sealed) DeleteSnapshot(ctx context.Context, key string) error {
	return s.inner.DeleteSnapshot(ctx, key)
}

// Close wipes cached keys.
func (s *Sealed) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, kek := range s.cache {
		memzero.Zero(kek)
		delete(s.cache, k)
	}
}

func (s *Sealed) writeSalt() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.salt == nil {
		salt, err := crypto.NewSalt()
		if err != nil {
			return nil, err
		}
		s.salt = salt
	}
	return s.salt, nil
}

func (s *Sealed) kek(salt []byte, p argonParams) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("%x/%d/%d/%d", salt, p.Time, p.Memory, p.Threads)
	if k, ok := s.cache[id]; ok {
		return k
	}
	k := crypto.DeriveKEK(s.passphrase, salt, p.Time, p.Memory, p.Threads)
	s.cache[id] = k
	return k
}

// Compile-time assertion that Sealed implements domain.SnapshotStore.
var _ domain.SnapshotStore = (*Sealed)(nil)
