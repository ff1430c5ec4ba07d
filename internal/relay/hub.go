package relay

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/protocol/x3dh"
)

const (
	// DefaultPullLimit caps the deliveries returned by one pull.
	DefaultPullLimit = 100
	// MaxQueue caps a recipient's queue; the oldest deliveries are dropped.
	MaxQueue = 10000
)

// Hub is the relay's in-memory state. Cursors are ULIDs, so they sort in
// arrival order.
//
// Pulling with a cursor acknowledges every delivery up to and including it;
// those are dropped from the queue.
type Hub struct {
	mu      sync.Mutex
	bundles map[domain.PeerID]domain.PreKeyBundle
	queues  map[domain.PeerID][]domain.Delivery
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
	metrics *Metrics
}

// NewHub returns an empty hub. metrics may be nil.
func NewHub(metrics *Metrics) *Hub {
	return &Hub{
		bundles: make(map[domain.PeerID]domain.PreKeyBundle),
		queues:  make(map[domain.PeerID][]domain.Delivery),
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     func() time.Time { return time.Now().UTC() },
		metrics: metrics,
	}
}

// PublishBundle stores owner's bundle, replacing any previous one. A bundle
// whose signed pre-key does not verify is refused.
func (h *Hub) PublishBundle(_ context.Context, owner domain.PeerID, bundle domain.PreKeyBundle) error {
	if owner == "" {
		return fmt.Errorf("publish bundle: empty owner")
	}
	if err := x3dh.VerifySignedPreKey(bundle.IdentityKey, bundle.SignedPreKey, bundle.SignedPreKeySignature); err != nil {
		return fmt.Errorf("publish bundle for %s: %w", owner, err)
	}
	bundle.OneTimePreKeys = append([]domain.OneTimePreKeyPublic(nil), bundle.OneTimePreKeys...)

	h.mu.Lock()
	h.bundles[owner] = bundle
	h.mu.Unlock()

	h.metrics.bundlePublished()
	return nil
}

// FetchPeerBundle returns peer's bundle with at most one one-time pre-key,
// which is removed so no other initiator receives it.
func (h *Hub) FetchPeerBundle(_ context.Context, peer domain.PeerID) (domain.PreKeyBundle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	stored, ok := h.bundles[peer]
	if !ok {
		return domain.PreKeyBundle{}, fmt.Errorf("bundle for %s: %w", peer, domain.ErrNotFound)
	}
	out := stored
	out.OneTimePreKeys = nil
	if len(stored.OneTimePreKeys) > 0 {
		out.OneTimePreKeys = []domain.OneTimePreKeyPublic{stored.OneTimePreKeys[0]}
		stored.OneTimePreKeys = stored.OneTimePreKeys[1:]
		h.bundles[peer] = stored
	}
	h.metrics.bundleFetched(len(out.OneTimePreKeys) > 0)
	return out, nil
}

// PushEnvelope queues env for to.
func (h *Hub) PushEnvelope(_ context.Context, from, to domain.PeerID, env domain.Envelope) error {
	_, err := h.Push(from, to, env)
	return err
}

// Push queues env for to and returns its cursor.
func (h *Hub) Push(from, to domain.PeerID, env domain.Envelope) (string, error) {
	if from == "" || to == "" {
		return "", fmt.Errorf("push: sender and recipient are required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	id, err := ulid.New(ulid.Timestamp(now), h.entropy)
	if err != nil {
		return "", fmt.Errorf("push: cursor: %w", err)
	}
	q := append(h.queues[to], domain.Delivery{
		Cursor:     id.String(),
		From:       from,
		Envelope:   env,
		ReceivedAt: now,
	})
	dropped := 0
	if len(q) > MaxQueue {
		dropped = len(q) - MaxQueue
		q = q[dropped:]
	}
	h.queues[to] = q

	h.metrics.envelopePushed()
	h.metrics.queueChanged(1 - dropped)
	return id.String(), nil
}

// PullEnvelopes returns up to DefaultPullLimit deliveries after sinceCursor.
func (h *Hub) PullEnvelopes(_ context.Context, owner domain.PeerID, sinceCursor string) ([]domain.Delivery, error) {
	return h.Pull(owner, sinceCursor, DefaultPullLimit), nil
}

// Pull acknowledges everything up to since and returns up to limit of the
// deliveries after it.
func (h *Hub) Pull(owner domain.PeerID, since string, limit int) []domain.Delivery {
	if limit <= 0 || limit > DefaultPullLimit {
		limit = DefaultPullLimit
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	q := h.queues[owner]
	i := 0
	for i < len(q) && since != "" && q[i].Cursor <= since {
		i++
	}
	q = q[i:]
	if len(q) == 0 {
		delete(h.queues, owner)
	} else {
		h.queues[owner] = q
	}

	n := min(limit, len(q))
	out := make([]domain.Delivery, n)
	copy(out, q[:n])
	h.metrics.queueChanged(-i)
	h.metrics.envelopesWerePulled(n)
	return out
}

// Pending reports how many deliveries are queued for owner.
func (h *Hub) Pending(owner domain.PeerID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queues[owner])
}

var (
	_ domain.BundleDirectory   = (*Hub)(nil)
	_ domain.EnvelopeTransport = (*Hub)(nil)
)
