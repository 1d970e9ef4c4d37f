package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"advisory-canvas/internal/transport"
)

func envelope(from string, to ...string) transport.Envelope {
	return transport.Envelope{Type: "drawing:add", From: from, To: to, Payload: []byte(`{}`)}
}

// receive drains ch until want messages arrived or the timeout fires.
func receive(ch <-chan transport.Envelope, want int, timeout time.Duration) int {
	got := 0
	deadline := time.After(timeout)
	for got < want {
		select {
		case _, ok := <-ch:
			if !ok {
				return got
			}
			got++
		case <-deadline:
			return got
		}
	}
	return got
}

// Property: every peer in a room except the sender receives each broadcast.
func TestProperty_BroadcastReachesEveryOtherPeer(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("all peers but the sender receive all messages", prop.ForAll(
		func(peerCount, msgCount int) bool {
			hub := NewHubWithConfig(HubConfig{BufferSize: 1000, SubscriberBufferSize: 100})
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			hub.Start(ctx)
			defer hub.Stop()

			subs := make([]*Subscriber, peerCount)
			for i := range subs {
				sub, err := hub.Subscribe("room", fmt.Sprintf("p%d", i))
				if err != nil {
					return false
				}
				subs[i] = sub
			}

			for i := 0; i < msgCount; i++ {
				hub.Publish(Message{Room: "room", Envelope: envelope("p0")})
			}

			if receive(subs[0].Channel, 1, 50*time.Millisecond) != 0 {
				return false
			}
			var wg sync.WaitGroup
			var ok int64
			for _, sub := range subs[1:] {
				wg.Add(1)
				go func(ch <-chan transport.Envelope) {
					defer wg.Done()
					if receive(ch, msgCount, 2*time.Second) == msgCount {
						atomic.AddInt64(&ok, 1)
					}
				}(sub.Channel)
			}
			wg.Wait()
			return int(ok) == peerCount-1
		},
		gen.IntRange(2, 6),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}

// Property: addressed envelopes reach only their recipients.
func TestProperty_RecipientFiltering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20

	properties := gopter.NewProperties(parameters)

	properties.Property("only addressed peers receive", prop.ForAll(
		func(peerCount, target int) bool {
			target = 1 + target%(peerCount-1)
			hub := NewHubWithConfig(HubConfig{BufferSize: 100, SubscriberBufferSize: 10})
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			hub.Start(ctx)
			defer hub.Stop()

			subs := make([]*Subscriber, peerCount)
			for i := range subs {
				subs[i], _ = hub.Subscribe("room", fmt.Sprintf("p%d", i))
			}
			hub.Publish(Message{Room: "room", Envelope: envelope("p0", fmt.Sprintf("p%d", target))})

			if receive(subs[target].Channel, 1, time.Second) != 1 {
				return false
			}
			for i, sub := range subs {
				if i != target && receive(sub.Channel, 1, 20*time.Millisecond) != 0 {
					return false
				}
			}
			return true
		},
		gen.IntRange(2, 5),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

// Property: a subscriber that never reads does not stop others receiving.
func TestProperty_SlowConsumersDoNotBlockOthers(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20

	properties := gopter.NewProperties(parameters)

	properties.Property("slow consumers do not block fast consumers", prop.ForAll(
		func(msgCount int) bool {
			hub := NewHubWithConfig(HubConfig{BufferSize: 100, SubscriberBufferSize: 5, SlowConsumerDropThreshold: 1})
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			hub.Start(ctx)
			defer hub.Stop()

			fast, _ := hub.Subscribe("room", "fast")
			slow, _ := hub.Subscribe("room", "slow")
			_, _ = hub.Subscribe("room", "sender")

			var received int64
			done := make(chan struct{})
			go func() {
				defer close(done)
				atomic.StoreInt64(&received, int64(receive(fast.Channel, msgCount, 2*time.Second)))
			}()

			for i := 0; i < msgCount; i++ {
				hub.Publish(Message{Room: "room", Envelope: envelope("sender")})
				time.Sleep(time.Millisecond)
			}
			<-done

			if atomic.LoadInt64(&received) == 0 {
				return false
			}
			// slow never reads, so everything past its buffer is dropped
			want := msgCount - 5
			for i := 0; i < 100 && slow.Dropped() != want; i++ {
				time.Sleep(5 * time.Millisecond)
			}
			return slow.Dropped() == want && len(hub.SlowSubscribers()) == 1
		},
		gen.IntRange(10, 30),
	))

	properties.TestingRun(t)
}

func TestRoomsAreIsolated(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)
	defer hub.Stop()

	a, _ := hub.Subscribe("desk-1", "a")
	b, _ := hub.Subscribe("desk-2", "b")
	hub.Publish(Message{Room: "desk-1", Envelope: envelope("x")})

	if receive(a.Channel, 1, time.Second) != 1 {
		t.Error("same-room peer missed message")
	}
	if receive(b.Channel, 1, 50*time.Millisecond) != 0 {
		t.Error("message crossed rooms")
	}
	if got := hub.Rooms(); len(got) != 2 {
		t.Errorf("Rooms = %v", got)
	}
}

func TestSubscribeRejectsDuplicatePeer(t *testing.T) {
	hub := NewHub()
	first, err := hub.Subscribe("room", "a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := hub.Subscribe("room", "a"); err == nil {
		t.Error("duplicate peer accepted")
	}

	hub.Unsubscribe(first)
	hub.Unsubscribe(first)
	if hub.GetSubscriberCount("room") != 0 {
		t.Error("unsubscribe left peer in room")
	}
	if _, err := hub.Subscribe("room", "a"); err != nil {
		t.Errorf("rejoin failed: %v", err)
	}
	if got := hub.Peers("room"); len(got) != 1 || got[0] != "a" {
		t.Errorf("Peers = %v", got)
	}
}

func TestConsumersSeeEveryMessage(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)
	defer hub.Stop()

	seen := make(chan Message, 4)
	hub.RegisterConsumer(NewConsumerFunc([]string{"desk-1"}, func(m Message) { seen <- m }))

	hub.Publish(Message{Room: "desk-2", Envelope: envelope("x")})
	hub.Publish(Message{Room: "desk-1", Envelope: envelope("x"), Size: 42})

	select {
	case m := <-seen:
		if m.Room != "desk-1" || m.Size != 42 {
			t.Errorf("unexpected message %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("consumer not notified")
	}
	select {
	case m := <-seen:
		t.Errorf("consumer saw filtered room %s", m.Room)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDisconnectClosesChannel(t *testing.T) {
	hub := NewHub()
	sub, err := hub.Subscribe("desk", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !hub.Disconnect("desk", "alice") {
		t.Fatal("Disconnect reported peer missing")
	}
	if _, open := <-sub.Channel; open {
		t.Error("channel still open after Disconnect")
	}
	if hub.Disconnect("desk", "alice") {
		t.Error("second Disconnect should report false")
	}
	// Unsubscribe after Disconnect must not close the channel twice.
	hub.Unsubscribe(sub)

	if _, err := hub.Subscribe("desk", "alice"); err != nil {
		t.Errorf("peer could not rejoin: %v", err)
	}
}
