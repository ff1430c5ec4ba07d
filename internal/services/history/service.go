package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

// MaxMessages is how many entries one conversation keeps; the oldest go first.
const MaxMessages = 1000

// Service reads and writes local message history for device self.
type Service struct {
	self  domain.PeerID
	store domain.SnapshotStore
	log   zerolog.Logger
	now   func() time.Time

	// mu serialises read-modify-write cycles on history and the list.
	mu sync.Mutex
}

// New returns a history service backed by store.
func New(self domain.PeerID, store domain.SnapshotStore, log zerolog.Logger) *Service {
	return &Service{
		self:  self,
		store: store,
		log:   log.With().Str("component", "history").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Append records entry in its peer's conversation and refreshes the peer's
// row in the conversation list from the newest entry. A zero timestamp means
// now. It returns false, and changes nothing, if an entry with the same id is
// already recorded.
func (s *Service) Append(ctx context.Context, entry domain.HistoryEntry) (bool, error) {
	if entry.ID == "" || entry.Peer == "" {
		return false, errors.New("history entry needs an id and a peer")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.messages(ctx, entry.Peer)
	if err != nil {
		return false, err
	}
	if slices.ContainsFunc(entries, func(e domain.HistoryEntry) bool { return e.ID == entry.ID }) {
		return false, nil
	}

	entries = append(entries, entry)
	slices.SortStableFunc(entries, func(a, b domain.HistoryEntry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	if len(entries) > MaxMessages {
		entries = entries[len(entries)-MaxMessages:]
	}
	if err := s.save(ctx, s.messagesKey(entry.Peer), entries); err != nil {
		return false, err
	}

	list, err := s.conversations(ctx)
	if err != nil {
		return false, err
	}
	list = slices.DeleteFunc(list, func(c domain.ConversationSummary) bool { return c.Peer == entry.Peer })
	last := entries[len(entries)-1]
	list = append(list, domain.ConversationSummary{
		Peer:        entry.Peer,
		LastMessage: last.Plaintext,
		UpdatedAt:   last.Timestamp,
	})
	sortConversations(list)
	if err := s.save(ctx, s.conversationsKey(), list); err != nil {
		return false, err
	}
	return true, nil
}

// Messages returns the recorded conversation with peer, oldest first.
func (s *Service) Messages(ctx context.Context, peer domain.PeerID) ([]domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages(ctx, peer)
}

// Conversations lists every peer with history, most recently updated first.
func (s *Service) Conversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations(ctx)
}

// Clear forgets the history with peer and drops it from the list.
func (s *Service) Clear(ctx context.Context, peer domain.PeerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteSnapshot(ctx, s.messagesKey(peer)); err != nil {
		return fmt.Errorf("clear history for %s: %w", peer, err)
	}
	list, err := s.conversations(ctx)
	if err != nil {
		return err
	}
	n := len(list)
	list = slices.DeleteFunc(list, func(c domain.ConversationSummary) bool { return c.Peer == peer })
	if len(list) == n {
		return nil
	}
	s.log.Debug().Str("peer", peer.String()).Msg("history cleared")
	return s.save(ctx, s.conversationsKey(), list)
}

func (s *Service) messagesKey(peer domain.PeerID) string {
	return s.self.String() + "/history/" + peer.String()
}

func (s *Service) conversationsKey() string { return s.self.String() + "/conversations" }

func (s *Service) messages(ctx context.Context, peer domain.PeerID) ([]domain.HistoryEntry, error) {
	var out []domain.HistoryEntry
	if err := s.load(ctx, s.messagesKey(peer), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) conversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	var out []domain.ConversationSummary
	if err := s.load(ctx, s.conversationsKey(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, key string, v any) error {
	raw, ok, err := s.store.LoadSnapshot(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrSerialization, key, err)
	}
	return nil
}

func (s *Service) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.store.StoreSnapshot(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func sortConversations(list []domain.ConversationSummary) {
	slices.SortStableFunc(list, func(a, b domain.ConversationSummary) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
}

var _ domain.HistoryRecorder = (*Service)(nil)
