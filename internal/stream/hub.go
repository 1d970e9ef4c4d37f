// Package stream fans relay envelopes out to the peers of a session room.
package stream

import (
	"context"
	"sort"
	"sync"
	"time"

	"advisory-canvas/internal/errors"
	"advisory-canvas/internal/transport"
)

// HubConfig holds configuration for the Stream Hub.
type HubConfig struct {
	// BufferSize is the size of the internal message channel buffer.
	BufferSize int
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
	// SlowConsumerDropThreshold is the number of drops after which a
	// subscriber is reported as slow.
	SlowConsumerDropThreshold int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:                1024,
		SubscriberBufferSize:      256,
		SlowConsumerDropThreshold: 10,
	}
}

// Message is one envelope published into a room.
type Message struct {
	Room       string
	Envelope   transport.Envelope
	Size       int
	ReceivedAt time.Time
}

// Hub distributes messages to room subscribers. Delivery is best-effort:
// a full subscriber buffer drops the message for that subscriber only.
type Hub struct {
	config      HubConfig
	mu          sync.RWMutex
	rooms       map[string]map[string]*Subscriber
	msgChan     chan Message
	done        chan struct{}
	started     bool
	consumers   []Consumer
	consumersMu sync.RWMutex

	// Metrics
	received  uint64
	delivered uint64
	dropped   uint64
	metricsMu sync.RWMutex
}

// Subscriber is one peer connected to a room.
type Subscriber struct {
	PeerID    string
	Room      string
	Channel   chan transport.Envelope
	CreatedAt time.Time

	mu           sync.Mutex
	droppedCount int
}

// Dropped returns how many messages this subscriber has missed.
func (s *Subscriber) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.droppedCount
}

// NewHub creates a new stream hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a new stream hub with custom configuration.
func NewHubWithConfig(config HubConfig) *Hub {
	return &Hub{
		config:  config,
		rooms:   make(map[string]map[string]*Subscriber),
		msgChan: make(chan Message, config.BufferSize),
		done:    make(chan struct{}),
	}
}

// Start begins the hub's distribution loop.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return
	}
	h.started = true
	go h.broadcastLoop(ctx)
}

// broadcastLoop is the main loop that distributes messages to subscribers.
func (h *Hub) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case msg := <-h.msgChan:
			h.metricsMu.Lock()
			h.received++
			h.metricsMu.Unlock()

			h.broadcast(msg)
			h.notifyConsumers(msg)
		}
	}
}

// Stop stops the hub and closes all subscriber channels.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return
	}

	close(h.done)
	h.started = false

	for room, subs := range h.rooms {
		for _, sub := range subs {
			close(sub.Channel)
		}
		delete(h.rooms, room)
	}
}

// Subscribe joins peerID to room. A peer ID can be in a room only once.
func (h *Hub) Subscribe(room, peerID string) (*Subscriber, error) {
	sub := &Subscriber{
		PeerID:    peerID,
		Room:      room,
		Channel:   make(chan transport.Envelope, h.config.SubscriberBufferSize),
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, taken := h.rooms[room][peerID]; taken {
		return nil, errors.NewValidationError("peer", peerID, "peer already connected to session")
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Subscriber)
	}
	h.rooms[room][peerID] = sub
	return sub, nil
}

// Unsubscribe removes sub from its room and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.rooms[sub.Room]
	if subs[sub.PeerID] != sub {
		return
	}
	close(sub.Channel)
	delete(subs, sub.PeerID)
	if len(subs) == 0 {
		delete(h.rooms, sub.Room)
	}
}

// Disconnect removes peerID from room and closes its channel. It reports
// whether the peer was connected.
func (h *Hub) Disconnect(room, peerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.rooms[room][peerID]
	if !ok {
		return false
	}
	close(sub.Channel)
	delete(h.rooms[room], peerID)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
	return true
}

// Publish queues msg for distribution.
// This is non-blocking - if the internal buffer is full, the message is dropped.
func (h *Hub) Publish(msg Message) bool {
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}
	select {
	case h.msgChan <- msg:
		return true
	default:
		h.metricsMu.Lock()
		h.dropped++
		h.metricsMu.Unlock()
		return false
	}
}

// broadcast sends msg to every addressed subscriber of its room.
// Uses non-blocking sends to prevent slow consumers from blocking others.
func (h *Hub) broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for peer, sub := range h.rooms[msg.Room] {
		if !msg.Envelope.Addressed(peer) {
			continue
		}
		select {
		case sub.Channel <- msg.Envelope:
			h.metricsMu.Lock()
			h.delivered++
			h.metricsMu.Unlock()
		default:
			sub.mu.Lock()
			sub.droppedCount++
			sub.mu.Unlock()
			h.metricsMu.Lock()
			h.dropped++
			h.metricsMu.Unlock()
		}
	}
}

// Peers returns the peer IDs in room, sorted.
func (h *Hub) Peers(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	peers := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		peers = append(peers, id)
	}
	sort.Strings(peers)
	return peers
}

// GetSubscriberCount returns the number of subscribers in room.
func (h *Hub) GetSubscriberCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// GetTotalSubscriberCount returns the total number of subscribers across all rooms.
func (h *Hub) GetTotalSubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, subs := range h.rooms {
		count += len(subs)
	}
	return count
}

// Rooms returns every room with at least one subscriber.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make([]string, 0, len(h.rooms))
	for room := range h.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// SlowSubscribers returns subscribers whose drop count reached the
// configured threshold.
func (h *Hub) SlowSubscribers() []*Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var slow []*Subscriber
	for _, subs := range h.rooms {
		for _, sub := range subs {
			if h.config.SlowConsumerDropThreshold > 0 && sub.Dropped() >= h.config.SlowConsumerDropThreshold {
				slow = append(slow, sub)
			}
		}
	}
	return slow
}

// GetMetrics returns hub metrics.
func (h *Hub) GetMetrics() HubMetrics {
	h.metricsMu.RLock()
	m := HubMetrics{
		Received:  h.received,
		Delivered: h.delivered,
		Dropped:   h.dropped,
	}
	h.metricsMu.RUnlock()

	m.Subscribers = h.GetTotalSubscriberCount()
	m.Rooms = len(h.Rooms())
	return m
}

// HubMetrics contains hub performance metrics.
type HubMetrics struct {
	Received    uint64
	Delivered   uint64
	Dropped     uint64
	Subscribers int
	Rooms       int
}

// IsStarted returns whether the hub is running.
func (h *Hub) IsStarted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// Consumer observes every message that passes through the hub, e.g. the
// traffic journal.
type Consumer interface {
	// OnMessage is called for each distributed message.
	OnMessage(msg Message)
	// Rooms returns the rooms this consumer is interested in.
	// Return nil or empty slice to receive all rooms.
	Rooms() []string
}

// RegisterConsumer adds a consumer to receive messages.
func (h *Hub) RegisterConsumer(consumer Consumer) {
	h.consumersMu.Lock()
	h.consumers = append(h.consumers, consumer)
	h.consumersMu.Unlock()
}

// UnregisterConsumer removes a consumer.
func (h *Hub) UnregisterConsumer(consumer Consumer) {
	h.consumersMu.Lock()
	defer h.consumersMu.Unlock()

	for i, c := range h.consumers {
		if c == consumer {
			h.consumers = append(h.consumers[:i], h.consumers[i+1:]...)
			break
		}
	}
}

// notifyConsumers hands msg to every interested consumer.
// Each consumer is notified in a separate goroutine to prevent blocking.
func (h *Hub) notifyConsumers(msg Message) {
	h.consumersMu.RLock()
	consumers := make([]Consumer, len(h.consumers))
	copy(consumers, h.consumers)
	h.consumersMu.RUnlock()

	for _, consumer := range consumers {
		rooms := consumer.Rooms()
		if len(rooms) == 0 || containsRoom(rooms, msg.Room) {
			go consumer.OnMessage(msg)
		}
	}
}

// containsRoom checks if a room is in the list.
func containsRoom(rooms []string, room string) bool {
	for _, r := range rooms {
		if r == room {
			return true
		}
	}
	return false
}

// ConsumerFunc is a function adapter for Consumer interface.
type ConsumerFunc struct {
	rooms       []string
	onMessageFn func(Message)
}

// NewConsumerFunc creates a new ConsumerFunc.
func NewConsumerFunc(rooms []string, onMessage func(Message)) *ConsumerFunc {
	return &ConsumerFunc{
		rooms:       rooms,
		onMessageFn: onMessage,
	}
}

// OnMessage implements Consumer.
func (c *ConsumerFunc) OnMessage(msg Message) {
	if c.onMessageFn != nil {
		c.onMessageFn(msg)
	}
}

// Rooms implements Consumer.
func (c *ConsumerFunc) Rooms() []string {
	return c.rooms
}
