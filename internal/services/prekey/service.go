package prekey

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/protocol/prekey"
)

// DeviceStore loads and atomically updates this device's key bundle.
type DeviceStore interface {
	LoadDevice(ctx context.Context) (domain.DeviceKeyBundle, error)
	UpdateDevice(
		ctx context.Context,
		fn func(domain.DeviceKeyBundle) (domain.DeviceKeyBundle, error),
	) (domain.DeviceKeyBundle, error)
}

// Service manages pre-key material and builds the public bundle.
type Service struct {
	devices   DeviceStore
	directory domain.BundleDirectory
	self      domain.PeerID
	limit     int
	log       zerolog.Logger
}

// New returns a prekey service. limit bounds the one-time pre-keys carried by
// published bundles; zero means prekey.DefaultPublishLimit.
func New(
	devices DeviceStore,
	directory domain.BundleDirectory,
	self domain.PeerID,
	limit int,
	log zerolog.Logger,
) *Service {
	if limit <= 0 {
		limit = prekey.DefaultPublishLimit
	}
	return &Service{
		devices:   devices,
		directory: directory,
		self:      self,
		limit:     limit,
		log:       log.With().Str("component", "prekey").Logger(),
	}
}

// LoadDevice returns the full device bundle, private halves included.
func (s *Service) LoadDevice(ctx context.Context) (domain.DeviceKeyBundle, error) {
	return s.devices.LoadDevice(ctx)
}

// ConsumeOneTimePreKey marks a one-time pre-key used so it is never
// published or accepted again.
func (s *Service) ConsumeOneTimePreKey(ctx context.Context, id domain.OneTimePreKeyID) error {
	b, err := s.devices.UpdateDevice(ctx, func(b domain.DeviceKeyBundle) (domain.DeviceKeyBundle, error) {
		return prekey.MarkUsed(b, id)
	})
	if err != nil {
		return err
	}
	remaining := len(prekey.Unused(b))
	ev := s.log.Debug()
	if remaining < s.limit {
		ev = s.log.Warn()
	}
	ev.Str("one_time_pre_key", id.String()).Int("remaining", remaining).Msg("one-time pre-key consumed")
	return nil
}

// PublicBundle returns the public projection with at most limit one-time
// pre-keys; a non-positive limit uses the service default.
func (s *Service) PublicBundle(ctx context.Context, limit int) (domain.PreKeyBundle, error) {
	if limit <= 0 {
		limit = s.limit
	}
	b, err := s.devices.LoadDevice(ctx)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	return prekey.PublicBundle(b, limit), nil
}

// RotatePreKeys replaces the signed pre-key and the one-time pre-key pool
// and returns the new public bundle. The identity key is unchanged.
//
// Sessions already established are unaffected. A first message still in
// flight toward the old signed pre-key can no longer be accepted.
func (s *Service) RotatePreKeys(ctx context.Context) (domain.PreKeyBundle, error) {
	b, err := s.devices.UpdateDevice(ctx, func(b domain.DeviceKeyBundle) (domain.DeviceKeyBundle, error) {
		return prekey.Rotate(b, prekey.DefaultOneTimePreKeys)
	})
	if err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("rotate pre-keys: %w", err)
	}
	s.log.Info().Str("signed_pre_key", b.SignedPreKey.ID.String()).Msg("pre-keys rotated")
	return prekey.PublicBundle(b, s.limit), nil
}

// PublishBundle uploads the current public bundle to the directory.
func (s *Service) PublishBundle(ctx context.Context) (domain.PreKeyBundle, error) {
	pb, err := s.PublicBundle(ctx, s.limit)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if err := s.directory.PublishBundle(ctx, s.self, pb); err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("publish bundle: %w", err)
	}
	s.log.Info().
		Str("device", s.self.String()).
		Int("one_time_pre_keys", len(pb.OneTimePreKeys)).
		Msg("bundle published")
	return pb, nil
}

// Compile-time assertion that Service implements domain.PreKeyService.
var _ domain.PreKeyService = (*Service)(nil)
