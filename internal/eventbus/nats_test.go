package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/friendsincode/sessioncast/internal/events"
	"github.com/rs/zerolog"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs map[string][][]byte
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.msgs == nil {
		p.msgs = make(map[string][][]byte)
	}
	p.msgs[subject] = append(p.msgs[subject], data)
	return nil
}

func (p *recordingPublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs[subject])
}

func (p *recordingPublisher) first(subject string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.msgs[subject][0]
}

func TestNATSBridgeForwardsEvents(t *testing.T) {
	bus := events.NewBus()
	pub := &recordingPublisher{}
	bridge := newBridge(pub, bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()

	// Wait for subscriptions before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for pub.count("sessioncast.events.item_start") == 0 && time.Now().Before(deadline) {
		bus.Publish(events.EventItemStart, events.Payload{"session_id": 7, "play_order": 2})
		time.Sleep(10 * time.Millisecond)
	}
	if pub.count("sessioncast.events.item_start") == 0 {
		t.Fatal("event was not forwarded")
	}

	msg, err := unmarshalNATSMessage(pub.first("sessioncast.events.item_start"))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.EventType != events.EventItemStart || msg.MessageID == "" || msg.NodeID == "" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Payload["play_order"] != float64(2) {
		t.Fatalf("payload not carried: %v", msg.Payload)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}
}
