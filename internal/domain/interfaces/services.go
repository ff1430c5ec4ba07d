package interfaces

import (
	"context"

	domaintypes "github.com/NitinDabar/e2ee-chat/internal/domain/types"
)

// IdentityService creates, retrieves, and inspects this device's key bundle.
type IdentityService interface {
	GenerateDevice(ctx context.Context) (domaintypes.DeviceKeyBundle, domaintypes.Fingerprint, error)
	LoadDevice(ctx context.Context) (domaintypes.DeviceKeyBundle, error)
	FingerprintDevice(ctx context.Context) (domaintypes.Fingerprint, error)
}

// DeviceKeySource gives the session layer access to this device's private
// keys and one-time pre-key consumption.
type DeviceKeySource interface {
	LoadDevice(ctx context.Context) (domaintypes.DeviceKeyBundle, error)
	ConsumeOneTimePreKey(ctx context.Context, id domaintypes.OneTimePreKeyID) error
}

// PreKeyService rotates, projects and publishes pre-keys.
type PreKeyService interface {
	DeviceKeySource
	PublicBundle(ctx context.Context, limit int) (domaintypes.PreKeyBundle, error)
	RotatePreKeys(ctx context.Context) (domaintypes.PreKeyBundle, error)
	PublishBundle(ctx context.Context) (domaintypes.PreKeyBundle, error)
}

// SessionService owns per-peer ratchet state.
type SessionService interface {
	InitializeSession(
		ctx context.Context,
		peer domaintypes.PeerID,
		bundle domaintypes.PreKeyBundle,
	) (domaintypes.SafetyNumber, error)
	AcceptSession(
		ctx context.Context,
		peer domaintypes.PeerID,
		bundle domaintypes.PreKeyBundle,
		first domaintypes.Envelope,
	) ([]byte, error)
	EncryptFor(
		ctx context.Context,
		peer domaintypes.PeerID,
		plaintext []byte,
		senderID, recipientID string,
	) (domaintypes.Envelope, error)
	DecryptFrom(ctx context.Context, peer domaintypes.PeerID, envelope domaintypes.Envelope) ([]byte, error)
	HasSession(peer domaintypes.PeerID) bool
	KnowsRatchetKey(peer domaintypes.PeerID, key domaintypes.X25519Public) bool
	SafetyNumber(peer domaintypes.PeerID) (domaintypes.SafetyNumber, bool)
}

// HistoryRecorder keeps decrypted messages for later reading. Append reports
// false when an entry with the same id is already recorded.
type HistoryRecorder interface {
	Append(ctx context.Context, entry domaintypes.HistoryEntry) (bool, error)
}

// MessageService encrypts, sends, fetches and decrypts messages.
type MessageService interface {
	SendMessage(ctx context.Context, to domaintypes.PeerID, plaintext []byte) error
	ReceiveMessages(ctx context.Context) ([]domaintypes.DecryptedMessage, error)
}
