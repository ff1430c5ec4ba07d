package message

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

// Service sends and receives messages over the relay.
//
// High-level flow:
//   - Send: if no session exists, fetch the peer's bundle and initialize one,
//     then encrypt with the ratchet and push via the transport.
//   - Receive: pull deliveries after the stored cursor. A delivery from a peer
//     without a session bootstraps one from that peer's bundle; the rest are
//     decrypted in order. A delivery that fails under a ratchet key the
//     session has never seen is retried as a handshake, which covers a peer
//     that reset its session and two peers that started one at once. The
//     cursor is saved after every delivery.
//
// Sent and decrypted messages are appended to the history recorder when one
// is configured. A history failure is logged and does not fail the call.
type Service struct {
	self      domain.PeerID
	sessions  domain.SessionService
	directory domain.BundleDirectory
	transport domain.EnvelopeTransport
	store     domain.SnapshotStore
	history   domain.HistoryRecorder
	log       zerolog.Logger

	// recvMu serialises ReceiveMessages so the cursor only moves forward.
	recvMu sync.Mutex
}

// New constructs a message service for device self. history may be nil.
func New(
	self domain.PeerID,
	sessions domain.SessionService,
	directory domain.BundleDirectory,
	transport domain.EnvelopeTransport,
	store domain.SnapshotStore,
	history domain.HistoryRecorder,
	log zerolog.Logger,
) *Service {
	return &Service{
		self:      self,
		sessions:  sessions,
		directory: directory,
		transport: transport,
		store:     store,
		history:   history,
		log:       log.With().Str("component", "message").Logger(),
	}
}

// SendMessage encrypts plaintext for peer to and pushes it to the transport.
//
// The first message to a peer triggers the handshake. The ratchet step is
// persisted before the push, so a failed push loses that message but never
// reuses its key.
func (s *Service) SendMessage(ctx context.Context, to domain.PeerID, plaintext []byte) error {
	if !s.sessions.HasSession(to) {
		if err := s.handshake(ctx, to); err != nil {
			return err
		}
	}

	env, err := s.sessions.EncryptFor(ctx, to, plaintext, s.self.String(), to.String())
	if err != nil {
		return fmt.Errorf("encrypt for %s: %w", to, err)
	}
	if err := s.transport.PushEnvelope(ctx, s.self, to, env); err != nil {
		return fmt.Errorf("push to %s: %w", to, err)
	}
	s.log.Debug().Str("peer", to.String()).Uint32("n", env.MessageNumber).Msg("message sent")
	s.record(ctx, domain.HistoryEntry{
		ID:        ulid.Make().String(),
		Peer:      to,
		Direction: domain.DirectionOut,
		Plaintext: plaintext,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func (s *Service) handshake(ctx context.Context, peer domain.PeerID) error {
	bundle, err := s.directory.FetchPeerBundle(ctx, peer)
	if err != nil {
		return fmt.Errorf("fetch bundle for %s: %w", peer, err)
	}
	sn, err := s.sessions.InitializeSession(ctx, peer, bundle)
	if err != nil {
		return err
	}
	s.log.Info().Str("peer", peer.String()).Str("safety_number", sn.Formatted).Msg("new session")
	return nil
}

// ReceiveMessages pulls and decrypts everything queued since the last call.
//
// A delivery that fails for protocol reasons (bad signature, failed
// authentication, unknown sender) is returned with Err set and skipped; it
// will not be retried. A transient failure (transport or storage) stops
// processing and is returned together with the messages handled so far; the
// failing delivery is pulled again next time.
func (s *Service) ReceiveMessages(ctx context.Context) ([]domain.DecryptedMessage, error) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	cursor, err := s.loadCursor(ctx)
	if err != nil {
		return nil, err
	}
	deliveries, err := s.transport.PullEnvelopes(ctx, s.self, cursor)
	if err != nil {
		return nil, fmt.Errorf("pull envelopes: %w", err)
	}

	out := make([]domain.DecryptedMessage, 0, len(deliveries))
	for _, d := range deliveries {
		pt, err := s.open(ctx, d)
		if err != nil && !permanent(err) {
			return out, err
		}
		if err != nil {
			s.log.Warn().Err(err).Str("peer", d.From.String()).Str("cursor", d.Cursor).Msg("dropping undecryptable envelope")
		} else {
			s.record(ctx, domain.HistoryEntry{
				ID:        d.Cursor,
				Peer:      d.From,
				Direction: domain.DirectionIn,
				Plaintext: pt,
				Timestamp: d.ReceivedAt,
			})
		}
		out = append(out, domain.DecryptedMessage{
			ID:         d.Cursor,
			From:       d.From,
			Plaintext:  pt,
			ReceivedAt: d.ReceivedAt,
			Err:        err,
		})
		if err := s.saveCursor(ctx, d.Cursor); err != nil {
			return out, err
		}
	}
	if len(deliveries) > 0 {
		s.log.Debug().Int("count", len(deliveries)).Msg("messages received")
	}
	return out, nil
}

// open decrypts d on the existing session, or treats it as a handshake when
// there is none. A failure on a ratchet key the session has never seen may
// be the peer starting over (or starting at the same time as us), so the
// envelope is retried as a handshake.
func (s *Service) open(ctx context.Context, d domain.Delivery) ([]byte, error) {
	if s.sessions.HasSession(d.From) {
		pt, err := s.sessions.DecryptFrom(ctx, d.From, d.Envelope)
		if err == nil || !errors.Is(err, domain.ErrDecryptFailure) ||
			d.Envelope.DHPublicKey == nil ||
			s.sessions.KnowsRatchetKey(d.From, *d.Envelope.DHPublicKey) {
			return pt, err
		}
		s.log.Info().Str("peer", d.From.String()).Msg("retrying envelope as a new handshake")
		pt, herr := s.accept(ctx, d)
		if herr != nil && permanent(herr) {
			return nil, err
		}
		return pt, herr
	}
	return s.accept(ctx, d)
}

func (s *Service) accept(ctx context.Context, d domain.Delivery) ([]byte, error) {
	bundle, err := s.directory.FetchPeerBundle(ctx, d.From)
	if err != nil {
		return nil, fmt.Errorf("fetch bundle for %s: %w", d.From, err)
	}
	return s.sessions.AcceptSession(ctx, d.From, bundle, d.Envelope)
}

func (s *Service) record(ctx context.Context, e domain.HistoryEntry) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Append(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("peer", e.Peer.String()).Str("id", e.ID).Msg("history not saved")
	}
}

// permanent reports whether a delivery failure will never go away on retry.
func permanent(err error) bool {
	return domain.IsProtocolError(err) || errors.Is(err, domain.ErrNotFound)
}

func (s *Service) cursorKey() string { return s.self.String() + "/cursor" }

func (s *Service) loadCursor(ctx context.Context) (string, error) {
	raw, ok, err := s.store.LoadSnapshot(ctx, s.cursorKey())
	if err != nil {
		return "", fmt.Errorf("load cursor: %w", err)
	}
	if !ok {
		return "", nil
	}
	return string(raw), nil
}

func (s *Service) saveCursor(ctx context.Context, cursor string) error {
	if err := s.store.StoreSnapshot(ctx, s.cursorKey(), []byte(cursor)); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
