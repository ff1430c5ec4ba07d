package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/services/identity"
)

// App is what the CLI commands drive: one device's use cases over a Wire.
type App struct {
	*Wire
}

// New wraps a built Wire.
func New(w *Wire) *App { return &App{Wire: w} }

// Init creates this device's keys. The passphrase must pass the strength
// policy unless the store is in memory.
func (a *App) Init(ctx context.Context) (domain.Fingerprint, error) {
	if a.Config.StoreBackend != BackendMemory {
		if err := identity.ValidatePassphrase(a.Config.Passphrase); err != nil {
			return "", err
		}
	}
	_, fp, err := a.Identity.GenerateDevice(ctx)
	return fp, err
}

// Register publishes the current public bundle to the relay.
func (a *App) Register(ctx context.Context) (domain.PreKeyBundle, error) {
	return a.Prekeys.PublishBundle(ctx)
}

// Rotate replaces the pre-keys and, when publish is set, registers the new
// bundle.
func (a *App) Rotate(ctx context.Context, publish bool) (domain.PreKeyBundle, error) {
	b, err := a.Prekeys.RotatePreKeys(ctx)
	if err != nil || !publish {
		return b, err
	}
	return a.Prekeys.PublishBundle(ctx)
}

// StartSession fetches peer's bundle and runs the handshake, replacing any
// existing session.
func (a *App) StartSession(ctx context.Context, peer domain.PeerID) (domain.SafetyNumber, error) {
	if peer == "" {
		return domain.SafetyNumber{}, errors.New("peer id is required")
	}
	b, err := a.Relay.FetchPeerBundle(ctx, peer)
	if err != nil {
		return domain.SafetyNumber{}, fmt.Errorf("fetch bundle for %s: %w", peer, err)
	}
	return a.Sessions.InitializeSession(ctx, peer, b)
}

// Send encrypts and sends one message, starting a session if needed.
func (a *App) Send(ctx context.Context, peer domain.PeerID, text string) error {
	return a.Messages.SendMessage(ctx, peer, []byte(text))
}

// Receive pulls and decrypts pending messages.
func (a *App) Receive(ctx context.Context) ([]domain.DecryptedMessage, error) {
	return a.Messages.ReceiveMessages(ctx)
}

// History returns the locally kept conversation with peer, oldest first.
func (a *App) History(ctx context.Context, peer domain.PeerID) ([]domain.HistoryEntry, error) {
	if peer == "" {
		return nil, errors.New("peer id is required")
	}
	return a.Wire.History.Messages(ctx, peer)
}

// Conversations lists peers with local history, most recent first.
func (a *App) Conversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	return a.Wire.History.Conversations(ctx)
}

// ClearHistory forgets the local history with peer. The session is kept.
func (a *App) ClearHistory(ctx context.Context, peer domain.PeerID) error {
	return a.Wire.History.Clear(ctx, peer)
}

// SafetyNumber returns the safety number recorded for peer.
func (a *App) SafetyNumber(peer domain.PeerID) (domain.SafetyNumber, error) {
	sn, ok := a.Sessions.SafetyNumber(peer)
	if !ok {
		return domain.SafetyNumber{}, domain.ErrSessionNotFound
	}
	return sn, nil
}

// Verify compares a safety number read out by the peer with ours.
func (a *App) Verify(peer domain.PeerID, raw string) (bool, error) {
	return a.Sessions.VerifySafetyNumber(peer, raw)
}
