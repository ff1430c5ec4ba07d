package interfaces

import (
	"context"

	domaintypes "github.com/NitinDabar/e2ee-chat/internal/domain/types"
)

// BundleDirectory publishes and serves public pre-key bundles.
type BundleDirectory interface {
	PublishBundle(ctx context.Context, owner domaintypes.PeerID, bundle domaintypes.PreKeyBundle) error
	// FetchPeerBundle returns ErrNotFound when the peer has never published.
	FetchPeerBundle(ctx context.Context, peer domaintypes.PeerID) (domaintypes.PreKeyBundle, error)
}

// EnvelopeTransport moves opaque envelopes between devices, all with context.
type EnvelopeTransport interface {
	PushEnvelope(
		ctx context.Context,
		from domaintypes.PeerID,
		to domaintypes.PeerID,
		envelope domaintypes.Envelope,
	) error
	// PullEnvelopes returns deliveries for owner queued after sinceCursor, in
	// order. An empty cursor means from the start of the queue.
	PullEnvelopes(
		ctx context.Context,
		owner domaintypes.PeerID,
		sinceCursor string,
	) ([]domaintypes.Delivery, error)
}
