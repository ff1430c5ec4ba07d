package types

import "time"

// Envelope is the wire form of one encrypted message. It carries exactly the
// ciphertext, the nonce, the sender's current ratchet public key (if any) and
// the two chain counters.
type Envelope struct {
	Ciphertext          []byte        `json:"ciphertext"`
	Nonce               []byte        `json:"nonce"`
	DHPublicKey         *X25519Public `json:"dh_pub,omitempty"`
	MessageNumber       uint32        `json:"n"`
	PreviousChainLength uint32        `json:"pn"`
}

// Delivery is an envelope as handed back by the transport, with routing
// metadata added by the relay.
type Delivery struct {
	Cursor     string    `json:"cursor"`
	From       PeerID    `json:"from"`
	Envelope   Envelope  `json:"envelope"`
	ReceivedAt time.Time `json:"received_at"`
}

// DecryptedMessage is what MessageService.ReceiveMessages returns. Err is set
// when the envelope could not be opened; Plaintext is nil in that case. ID is
// the relay cursor of the delivery.
type DecryptedMessage struct {
	ID         string    `json:"id"`
	From       PeerID    `json:"from"`
	Plaintext  []byte    `json:"plaintext,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	Err        error     `json:"-"`
}
