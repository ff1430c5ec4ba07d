// Package store provides persistence for the device's own serialized state.
//
// Every backend implements domain.SnapshotStore: an opaque byte value per
// string key. The session manager, device keys and receive cursor are each
// stored under "<self>/<name>" keys.
//
// The package includes:
//   - FileStore: one file per key, atomic temp-file + rename writes
//   - SQLiteStore: a snapshots table (github.com/mattn/go-sqlite3)
//   - RedisStore: string values under a prefix (github.com/redis/go-redis/v9)
//   - EKVStore: an encrypted filestore (gitlab.com/elixxir/ekv)
//   - MemoryStore: an in-process map
//   - Sealed: a decorator encrypting values at rest under a passphrase
//
// All stores are safe for concurrent use.
package store
