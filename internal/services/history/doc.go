// Package history keeps the decrypted messages of each conversation on the
// device, plus a conversation list ordered by most recent activity.
//
// Entries live in the device's snapshot store, so they are sealed at rest
// like the sessions. Each conversation keeps at most MaxMessages entries,
// ordered by timestamp; appending an id already present is a no-op.
package history
