package session

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/protocol/ratchet"
)

const snapshotVersion = 1

func (m *Manager) snapshotKey() string { return m.self.String() + "/sessions" }

// commit persists st (and rival, which may be nil) as the peer's state and,
// once the write succeeds, installs them in e (which the caller holds
// locked). On failure nothing changes.
func (m *Manager) commit(
	ctx context.Context,
	peer domain.PeerID,
	e *entry,
	st, rival *ratchet.State,
	sn domain.SafetyNumber,
	established time.Time,
) error {
	conv := domain.Conversation{
		Peer:          peer,
		State:         st.Snapshot(),
		SafetyNumber:  sn,
		EstablishedAt: established,
	}
	if rival != nil {
		snap := rival.Snapshot()
		conv.Rival = &snap
	}
	if err := m.write(ctx, peer, &conv); err != nil {
		return err
	}
	if e.state != nil && e.state != st {
		e.state.Wipe()
	}
	if e.rival != nil && e.rival != rival {
		e.rival.Wipe()
	}
	e.state = st
	e.rival = rival
	e.safety = sn
	e.established = established
	return nil
}

func (m *Manager) remove(ctx context.Context, peer domain.PeerID) error {
	return m.write(ctx, peer, nil)
}

// write updates the committed record for peer (nil deletes it) and flushes
// the whole snapshot. The record is rolled back if the flush fails.
func (m *Manager) write(ctx context.Context, peer domain.PeerID, conv *domain.Conversation) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	prev, had := m.records[peer]
	if conv == nil {
		delete(m.records, peer)
	} else {
		m.records[peer] = *conv
	}
	if err := m.flushLocked(ctx); err != nil {
		if had {
			m.records[peer] = prev
		} else {
			delete(m.records, peer)
		}
		return err
	}
	return nil
}

// Persist writes every session to the store.
func (m *Manager) Persist(ctx context.Context) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	return m.flushLocked(ctx)
}

func (m *Manager) flushLocked(ctx context.Context) error {
	raw, err := json.Marshal(domain.SessionSnapshot{
		Version:       snapshotVersion,
		Owner:         m.self,
		Conversations: m.records,
	})
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	if err := m.store.StoreSnapshot(ctx, m.snapshotKey(), raw); err != nil {
		return fmt.Errorf("persist sessions: %w", err)
	}
	return nil
}

// Load replaces all in-memory sessions with the stored snapshot. A missing
// snapshot leaves the manager empty. An unreadable snapshot fails with
// domain.ErrSerialization. A single conversation that fails to restore is
// dropped and logged; that peer needs a new handshake.
//
// Load must not run concurrently with other Manager calls.
func (m *Manager) Load(ctx context.Context) error {
	raw, ok, err := m.store.LoadSnapshot(ctx, m.snapshotKey())
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	snap := domain.SessionSnapshot{Conversations: map[domain.PeerID]domain.Conversation{}}
	if ok {
		if err := json.Unmarshal(raw, &snap); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrSerialization, err)
		}
		if snap.Version != snapshotVersion {
			return fmt.Errorf("%w: version %d", domain.ErrSerialization, snap.Version)
		}
		if snap.Owner != m.self {
			return fmt.Errorf("%w: snapshot belongs to %q", domain.ErrSerialization, snap.Owner)
		}
	}

	entries := make(map[domain.PeerID]*entry, len(snap.Conversations))
	records := make(map[domain.PeerID]domain.Conversation, len(snap.Conversations))
	for peer, conv := range snap.Conversations {
		st, err := ratchet.Restore(conv.State)
		if err != nil {
			m.log.Error().Err(err).Str("peer", peer.String()).Msg("dropping unreadable session")
			continue
		}
		e := &entry{state: st, safety: conv.SafetyNumber, established: conv.EstablishedAt}
		if conv.Rival != nil {
			if e.rival, err = ratchet.Restore(*conv.Rival); err != nil {
				m.log.Warn().Err(err).Str("peer", peer.String()).Msg("dropping unreadable rival chain")
				e.rival = nil
				conv.Rival = nil
			}
		}
		entries[peer] = e
		records[peer] = conv
	}

	m.repo.reset(entries)
	m.persistMu.Lock()
	m.records = records
	m.persistMu.Unlock()

	m.log.Debug().Int("sessions", len(entries)).Msg("sessions loaded")
	return nil
}

// Snapshot returns a copy of the committed records, for inspection.
func (m *Manager) Snapshot() domain.SessionSnapshot {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	return domain.SessionSnapshot{
		Version:       snapshotVersion,
		Owner:         m.self,
		Conversations: maps.Clone(m.records),
	}
}
