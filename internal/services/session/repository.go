package session

import (
	"sync"
	"time"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/protocol/ratchet"
)

// entry is one peer's live session. mu guards every field; state is nil
// until a handshake commits and again after deletion. rival is set only
// after a simultaneous handshake that ours won.
type entry struct {
	mu          sync.Mutex
	state       *ratchet.State
	rival       *ratchet.State
	safety      domain.SafetyNumber
	established time.Time
}

func (e *entry) wipe() {
	if e.state != nil {
		e.state.Wipe()
		e.state = nil
	}
	if e.rival != nil {
		e.rival.Wipe()
		e.rival = nil
	}
}

// Repository maps peer ids to entries. Entries are never removed from the
// map while a caller may hold one; deletion clears the entry's state.
type Repository struct {
	mu      sync.RWMutex
	entries map[domain.PeerID]*entry
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{entries: make(map[domain.PeerID]*entry)}
}

// lock returns the peer's entry locked, creating it when create is set.
// It returns nil if the peer is unknown and create is false.
func (r *Repository) lock(peer domain.PeerID, create bool) *entry {
	r.mu.RLock()
	e, ok := r.entries[peer]
	r.mu.RUnlock()
	if !ok {
		if !create {
			return nil
		}
		r.mu.Lock()
		if e, ok = r.entries[peer]; !ok {
			e = &entry{}
			r.entries[peer] = e
		}
		r.mu.Unlock()
	}
	e.mu.Lock()
	return e
}

// peers lists peers with a live session.
func (r *Repository) peers() []domain.PeerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PeerID, 0, len(r.entries))
	for p, e := range r.entries {
		e.mu.Lock()
		if e.state != nil {
			out = append(out, p)
		}
		e.mu.Unlock()
	}
	return out
}

// reset replaces every entry, wiping the old states. Callers must not hold
// any entry lock.
func (r *Repository) reset(entries map[domain.PeerID]*entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.mu.Lock()
		e.wipe()
		e.mu.Unlock()
	}
	r.entries = entries
}
