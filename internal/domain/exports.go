package domain

import (
	interfaces "github.com/NitinDabar/e2ee-chat/internal/domain/interfaces"
	types "github.com/NitinDabar/e2ee-chat/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	PeerID              = types.PeerID
	Fingerprint         = types.Fingerprint
	SignedPreKeyID      = types.SignedPreKeyID
	OneTimePreKeyID     = types.OneTimePreKeyID
	X25519Public        = types.X25519Public
	X25519Private       = types.X25519Private
	Ed25519Public       = types.Ed25519Public
	Ed25519Private      = types.Ed25519Private
	Ed25519Signature    = types.Ed25519Signature
	SymmetricKey        = types.SymmetricKey
	X25519KeyPair       = types.X25519KeyPair
	Ed25519KeyPair      = types.Ed25519KeyPair
	SignedPreKey        = types.SignedPreKey
	OneTimePreKey       = types.OneTimePreKey
	OneTimePreKeyPublic = types.OneTimePreKeyPublic
	DeviceKeyBundle     = types.DeviceKeyBundle
	PreKeyBundle        = types.PreKeyBundle
	Envelope            = types.Envelope
	Delivery            = types.Delivery
	DecryptedMessage    = types.DecryptedMessage
	RatchetSnapshot     = types.RatchetSnapshot
	SafetyNumber        = types.SafetyNumber
	Conversation        = types.Conversation
	SessionSnapshot     = types.SessionSnapshot
	Direction           = types.Direction
	HistoryEntry        = types.HistoryEntry
	ConversationSummary = types.ConversationSummary
)

const (
	DirectionIn  = types.DirectionIn
	DirectionOut = types.DirectionOut
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	BundleDirectory   = interfaces.BundleDirectory
	EnvelopeTransport = interfaces.EnvelopeTransport
	SnapshotStore     = interfaces.SnapshotStore
	IdentityService   = interfaces.IdentityService
	DeviceKeySource   = interfaces.DeviceKeySource
	PreKeyService     = interfaces.PreKeyService
	SessionService    = interfaces.SessionService
	MessageService    = interfaces.MessageService
	HistoryRecorder   = interfaces.HistoryRecorder
)
