package store

import (
	"bytes"
	"context"

	"gitlab.com/elixxir/ekv"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

// EKVStore keeps snapshots in an ekv encrypted filestore. ekv encrypts each
// value with the password, so it needs no Sealed wrapper.
type EKVStore struct {
	kv ekv.KeyValue
}

// NewEKVStore opens or creates an encrypted filestore in dir.
func NewEKVStore(dir, password string) (*EKVStore, error) {
	fs, err := ekv.NewFilestore(dir, password)
	if err != nil {
		return nil, err
	}
	return &EKVStore{kv: fs}, nil
}

// NewEKVMemStore wraps an in-memory ekv store, for tests.
func NewEKVMemStore() *EKVStore {
	return &EKVStore{kv: ekv.MakeMemstore()}
}

// ekvBlob stores snapshot bytes through ekv's Marshaler pair as-is.
type ekvBlob []byte

func (b ekvBlob) Marshal() []byte { return b }

func (b *ekvBlob) Unmarshal(data []byte) error {
	*b = append((*b)[:0], data...)
	return nil
}

func (s *EKVStore) LoadSnapshot(_ context.Context, key string) ([]byte, bool, error) {
	var b ekvBlob
	if err := s.kv.Get(key, &b); err != nil {
		if ekv.Exists(err) {
			return nil, false, err
		}
		return nil, false, nil
	}
	return b, true, nil
}

func (s *EKVStore) StoreSnapshot(_ context.Context, key string, data []byte) error {
	return s.kv.Set(key, ekvBlob(bytes.Clone(data)))
}

func (s *EKVStore) DeleteSnapshot(_ context.Context, key string) error {
	err := s.kv.Delete(key)
	if err != nil && !ekv.Exists(err) {
		return nil
	}
	return err
}

var _ domain.SnapshotStore = (*EKVStore)(nil)
