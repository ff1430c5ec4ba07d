package types

import "time"

// Direction tells whether a history entry was sent or received.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// HistoryEntry is one decrypted message kept in local history. ID is the
// relay cursor for received messages and a ULID for sent ones.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Peer      PeerID    `json:"peer"`
	Direction Direction `json:"direction"`
	Plaintext []byte    `json:"plaintext"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	Peer        PeerID    `json:"peer"`
	LastMessage []byte    `json:"last_message"`
	UpdatedAt   time.Time `json:"updated_at"`
}
