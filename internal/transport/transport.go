// Package transport carries opaque canvas messages between replicas.
//
// Delivery is best-effort: no acknowledgement, no retry and no ordering
// across peers. Implementations must never invoke a handler synchronously
// from Send; handlers run on the transport's own delivery path.
package transport

import "encoding/json"

// Handler receives one inbound payload together with the sender's peer ID.
type Handler func(from string, payload []byte)

// Transport is the signaling channel injected into a canvas controller.
type Transport interface {
	// PeerID identifies this replica on the channel.
	PeerID() string
	// Send publishes payload under msgType. With no recipients the message
	// is broadcast to every other peer in the session.
	Send(msgType string, payload []byte, recipients ...string) error
	// Subscribe registers handler for msgType and returns a func that
	// removes it. The returned func is safe to call more than once.
	Subscribe(msgType string, handler Handler) (unsubscribe func())
}

// Envelope frames a message on the relay connection.
type Envelope struct {
	Type    string          `json:"type" validate:"required,max=64"`
	From    string          `json:"from,omitempty"`
	To      []string        `json:"to,omitempty" validate:"max=64"`
	Payload json.RawMessage `json:"payload"`
}

// Addressed reports whether peer should receive e.
func (e Envelope) Addressed(peer string) bool {
	if peer == e.From {
		return false
	}
	if len(e.To) == 0 {
		return true
	}
	for _, to := range e.To {
		if to == peer {
			return true
		}
	}
	return false
}
