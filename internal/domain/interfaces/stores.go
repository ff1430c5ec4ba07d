package interfaces

import "context"

// SnapshotStore is the key-value store holding this device's own opaque
// serialized state (session snapshot, device key bundle, receive cursor).
type SnapshotStore interface {
	// LoadSnapshot returns ok=false when nothing is stored under key.
	LoadSnapshot(ctx context.Context, key string) (data []byte, ok bool, err error)
	StoreSnapshot(ctx context.Context, key string, data []byte) error
	DeleteSnapshot(ctx context.Context, key string) error
}
