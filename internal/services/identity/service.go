package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/NitinDabar/e2ee-chat/internal/crypto"
	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/protocol/prekey"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
)

// Service manages device key creation and access using a backing store.
//
// The device bundle contains:
//   - Ed25519 identity key pair, never rotated.
//   - X25519 agreement key pair for X3DH.
//   - Signed pre-key and a pool of one-time pre-keys, rotated by the prekey service.
type Service struct {
	store domain.SnapshotStore
	self  domain.PeerID
	log   zerolog.Logger

	// mu serialises read-modify-write cycles on the device record.
	mu sync.Mutex
}

// New returns an identity service for device self backed by the given store.
func New(s domain.SnapshotStore, self domain.PeerID, log zerolog.Logger) *Service {
	return &Service{store: s, self: self, log: log.With().Str("component", "identity").Logger()}
}

// GenerateDevice creates a new device bundle, saves it, and returns it plus a
// short fingerprint of the identity public key. It refuses to overwrite an
// existing device.
func (s *Service) GenerateDevice(ctx context.Context) (domain.DeviceKeyBundle, domain.Fingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := s.store.LoadSnapshot(ctx, s.key()); err != nil {
		return domain.DeviceKeyBundle{}, "", err
	} else if ok {
		return domain.DeviceKeyBundle{}, "", domain.ErrDeviceExists
	}

	b, err := prekey.Generate(prekey.DefaultOneTimePreKeys)
	if err != nil {
		return domain.DeviceKeyBundle{}, "", err
	}
	if err := s.save(ctx, b); err != nil {
		return domain.DeviceKeyBundle{}, "", err
	}

	fp := crypto.Fingerprint(b.Identity.Public.Slice())
	s.log.Info().
		Str("device", s.self.String()).
		Str("fingerprint", fp.String()).
		Int("one_time_pre_keys", len(b.OneTimePreKeys)).
		Msg("device keys generated")
	return b, fp, nil
}

// LoadDevice returns the stored device bundle.
func (s *Service) LoadDevice(ctx context.Context) (domain.DeviceKeyBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// UpdateDevice loads the device bundle, applies fn, and saves the result.
// Nothing is written if fn fails.
func (s *Service) UpdateDevice(
	ctx context.Context,
	fn func(domain.DeviceKeyBundle) (domain.DeviceKeyBundle, error),
) (domain.DeviceKeyBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.load(ctx)
	if err != nil {
		return domain.DeviceKeyBundle{}, err
	}
	next, err := fn(b)
	if err != nil {
		return domain.DeviceKeyBundle{}, err
	}
	if err := s.save(ctx, next); err != nil {
		return domain.DeviceKeyBundle{}, err
	}
	return next, nil
}

// FingerprintDevice returns a short fingerprint of the identity public key.
func (s *Service) FingerprintDevice(ctx context.Context) (domain.Fingerprint, error) {
	b, err := s.LoadDevice(ctx)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(b.Identity.Public.Slice()), nil
}

func (s *Service) load(ctx context.Context) (domain.DeviceKeyBundle, error) {
	raw, ok, err := s.store.LoadSnapshot(ctx, s.key())
	if err != nil {
		return domain.DeviceKeyBundle{}, fmt.Errorf("load device: %w", err)
	}
	if !ok {
		return domain.DeviceKeyBundle{}, domain.ErrDeviceNotInitialized
	}
	var b domain.DeviceKeyBundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return domain.DeviceKeyBundle{}, fmt.Errorf("decode device: %w", err)
	}
	return b, nil
}

func (s *Service) save(ctx context.Context, b domain.DeviceKeyBundle) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	if err := s.store.StoreSnapshot(ctx, s.key(), raw); err != nil {
		return fmt.Errorf("save device: %w", err)
	}
	return nil
}

func (s *Service) key() string { return s.self.String() + "/device" }

// ValidatePassphrase enforces the passphrase strength policy.
func ValidatePassphrase(passphrase string) error {
	if !isSecurePassphrase(passphrase) {
		return ErrWeakPassphrase
	}
	return nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
