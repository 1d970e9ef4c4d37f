package transport

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"advisory-canvas/internal/errors"
)

// delivery is one queued message for one recipient.
type delivery struct {
	to  string
	env Envelope
}

// Network is an in-process signaling bus. Sends are queued, never delivered
// inline; the owner decides when and in which order queued messages reach
// each peer. This makes arrival order an explicit test input.
type Network struct {
	mu      sync.Mutex
	peers   map[string]*MemoryTransport
	offline map[string]bool
	queue   []delivery

	delivered int
	dropped   int
}

// NewNetwork creates an empty bus.
func NewNetwork() *Network {
	return &Network{
		peers:   make(map[string]*MemoryTransport),
		offline: make(map[string]bool),
	}
}

// Join attaches a new peer. An empty id is replaced by a random one.
func (n *Network) Join(id string) *MemoryTransport {
	if id == "" {
		id = uuid.NewString()
	}
	t := &MemoryTransport{network: n, id: id, handlers: newHandlerSet()}
	n.mu.Lock()
	n.peers[id] = t
	n.mu.Unlock()
	return t
}

// Peers returns the IDs of every joined peer.
func (n *Network) Peers() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]string, 0, len(n.peers))
	for id := range n.peers {
		ids = append(ids, id)
	}
	return ids
}

// SetOffline simulates a peer losing its connection. An offline peer cannot
// send, and queued messages addressed to it are dropped on delivery.
func (n *Network) SetOffline(peer string, offline bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if offline {
		n.offline[peer] = true
	} else {
		delete(n.offline, peer)
	}
}

// Pending returns the queued envelopes for peer in arrival order.
func (n *Network) Pending(peer string) []Envelope {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Envelope
	for _, d := range n.queue {
		if d.to == peer {
			out = append(out, d.env)
		}
	}
	return out
}

// Len returns the number of queued deliveries.
func (n *Network) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// Deliver hands queued messages to their recipients in FIFO order until
// the queue is empty, including messages sent by handlers along the way.
// It returns the number of messages handed over.
func (n *Network) Deliver() int {
	return n.deliver(func(delivery) bool { return true })
}

// DeliverTo is Deliver restricted to messages addressed to peer. Messages
// for other peers stay queued.
func (n *Network) DeliverTo(peer string) int {
	return n.deliver(func(d delivery) bool { return d.to == peer })
}

// Drop discards every queued message and returns how many were lost.
func (n *Network) Drop() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	lost := len(n.queue)
	n.queue = nil
	n.dropped += lost
	return lost
}

// Stats returns delivered and dropped counts.
func (n *Network) Stats() (delivered, dropped int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.delivered, n.dropped
}

func (n *Network) deliver(match func(delivery) bool) int {
	count := 0
	for {
		d, target, ok := n.next(match)
		if !ok {
			return count
		}
		if target == nil {
			continue
		}
		target.handlers.dispatch(d.env.Type, d.env.From, d.env.Payload)
		count++
	}
}

// next pops the first matching delivery. target is nil when the recipient
// is gone or offline.
func (n *Network) next(match func(delivery) bool) (delivery, *MemoryTransport, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, d := range n.queue {
		if !match(d) {
			continue
		}
		n.queue = append(n.queue[:i:i], n.queue[i+1:]...)
		target, ok := n.peers[d.to]
		if !ok || n.offline[d.to] {
			n.dropped++
			return d, nil, true
		}
		n.delivered++
		return d, target, true
	}
	return delivery{}, nil, false
}

func (n *Network) enqueue(env Envelope) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.peers[env.From]; !ok {
		return errors.NewTransportError("send", env.From, errors.ErrTransportClosed)
	}
	if n.offline[env.From] {
		return errors.NewTransportError("send", env.From, errors.ErrNotConnected)
	}
	ids := make([]string, 0, len(n.peers))
	for id := range n.peers {
		if env.Addressed(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		n.queue = append(n.queue, delivery{to: id, env: env})
	}
	return nil
}

func (n *Network) leave(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.peers, id)
	delete(n.offline, id)
}

// MemoryTransport is one peer's endpoint on a Network.
type MemoryTransport struct {
	network  *Network
	id       string
	handlers *handlerSet
}

// PeerID returns the peer's ID.
func (t *MemoryTransport) PeerID() string {
	return t.id
}

// Send queues payload for delivery. It never calls handlers.
func (t *MemoryTransport) Send(msgType string, payload []byte, recipients ...string) error {
	env := Envelope{
		Type:    msgType,
		From:    t.id,
		To:      append([]string(nil), recipients...),
		Payload: append([]byte(nil), payload...),
	}
	return t.network.enqueue(env)
}

// Subscribe registers handler for msgType.
func (t *MemoryTransport) Subscribe(msgType string, handler Handler) func() {
	return t.handlers.add(msgType, handler)
}

// Subscriptions returns the number of live handlers.
func (t *MemoryTransport) Subscriptions() int {
	return t.handlers.count()
}

// Close detaches the peer from the network.
func (t *MemoryTransport) Close() error {
	t.network.leave(t.id)
	return nil
}

var _ Transport = (*MemoryTransport)(nil)
