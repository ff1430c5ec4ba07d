package types

import "time"

// RatchetSnapshot is the persisted form of one Double Ratchet state.
//
// MyRatchetPrivateKey is persisted so the next DH turn still works after a
// reload; snapshots are sealed at rest by the store.
type RatchetSnapshot struct {
	RootKey               SymmetricKey   `json:"root_key"`
	TheirRatchetPublicKey *X25519Public  `json:"their_ratchet_pub,omitempty"`
	MyRatchetPublicKey    *X25519Public  `json:"my_ratchet_pub,omitempty"`
	MyRatchetPrivateKey   *X25519Private `json:"my_ratchet_priv,omitempty"`
	SendChainKey          *SymmetricKey  `json:"send_ck,omitempty"`
	ReceiveChainKey       *SymmetricKey  `json:"recv_ck,omitempty"`
	SendMessageNumber     uint32         `json:"ns"`
	ReceiveMessageNumber  uint32         `json:"nr"`
	PreviousChainLength   uint32         `json:"pn"`
}

// SafetyNumber is the out-of-band verification value for one conversation.
type SafetyNumber struct {
	Raw       string `json:"raw"`
	Formatted string `json:"formatted"`
}

// Conversation persists the ratchet state and safety number for a peer.
//
// Rival is the responder state for the peer's own first message when both
// sides started a session at once and ours was kept. It only decrypts the
// peer's messages sent before it switched to our session.
type Conversation struct {
	Peer          PeerID           `json:"peer"`
	State         RatchetSnapshot  `json:"state"`
	Rival         *RatchetSnapshot `json:"rival,omitempty"`
	SafetyNumber  SafetyNumber     `json:"safety_number"`
	EstablishedAt time.Time        `json:"established_at"`
}

// SessionSnapshot is everything the session manager persists for one device.
type SessionSnapshot struct {
	Version       int                     `json:"v"`
	Owner         PeerID                  `json:"owner"`
	Conversations map[PeerID]Conversation `json:"conversations"`
}
