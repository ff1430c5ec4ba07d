package identity_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/protocol/prekey"
	"github.com/NitinDabar/e2ee-chat/internal/services/identity"
	"github.com/NitinDabar/e2ee-chat/internal/store"
)

func TestGenerateAndLoad(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := identity.New(st, "alice", zerolog.Nop())

	_, err := svc.LoadDevice(ctx)
	require.ErrorIs(t, err, domain.ErrDeviceNotInitialized)

	b, fp, err := svc.GenerateDevice(ctx)
	require.NoError(t, err)
	require.Len(t, b.OneTimePreKeys, prekey.DefaultOneTimePreKeys)

	got, err := identity.New(st, "alice", zerolog.Nop()).LoadDevice(ctx)
	require.NoError(t, err)
	require.Equal(t, b.Identity, got.Identity)
	require.Equal(t, b.SignedPreKey.KeyPair, got.SignedPreKey.KeyPair)

	again, err := svc.FingerprintDevice(ctx)
	require.NoError(t, err)
	require.Equal(t, fp, again)

	_, _, err = svc.GenerateDevice(ctx)
	require.ErrorIs(t, err, domain.ErrDeviceExists)

	// Another device id in the same store is independent.
	_, err = identity.New(st, "bob", zerolog.Nop()).LoadDevice(ctx)
	require.ErrorIs(t, err, domain.ErrDeviceNotInitialized)
}

func TestUpdateDeviceIsAtomic(t *testing.T) {
	ctx := context.Background()
	svc := identity.New(store.NewMemoryStore(), "alice", zerolog.Nop())
	b, _, err := svc.GenerateDevice(ctx)
	require.NoError(t, err)

	_, err = svc.UpdateDevice(ctx, func(d domain.DeviceKeyBundle) (domain.DeviceKeyBundle, error) {
		d.OneTimePreKeys = nil
		return d, domain.ErrNotFound
	})
	require.ErrorIs(t, err, domain.ErrNotFound)

	got, err := svc.LoadDevice(ctx)
	require.NoError(t, err)
	require.Len(t, got.OneTimePreKeys, len(b.OneTimePreKeys))
}

func TestValidatePassphrase(t *testing.T) {
	cases := map[string]bool{
		"short1!A":            false,
		"alllowercase1234!":   false,
		"NoDigitsHere!!!!":    false,
		"NoSymbols12345":      false,
		"Correct-Horse-42":    true,
		"Tr0ub4dor&3-battery": true,
	}
	for pass, ok := range cases {
		err := identity.ValidatePassphrase(pass)
		if ok {
			require.NoError(t, err, pass)
		} else {
			require.ErrorIs(t, err, identity.ErrWeakPassphrase, pass)
		}
	}
}
