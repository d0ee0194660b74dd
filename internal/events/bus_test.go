package events

import "testing"

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventItemStart)
	other := bus.Subscribe(EventSessionEnd)

	bus.Publish(EventItemStart, Payload{"play_order": 2})

	select {
	case p := <-sub:
		if p["play_order"] != 2 {
			t.Fatalf("unexpected payload: %v", p)
		}
	default:
		t.Fatal("expected payload for subscriber")
	}

	select {
	case p := <-other:
		t.Fatalf("unrelated subscriber received %v", p)
	default:
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventTriggerMissed)

	for i := 0; i < cap(sub)+4; i++ {
		bus.Publish(EventTriggerMissed, Payload{"i": i})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("expected full buffer, got %d of %d", len(sub), cap(sub))
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventSessionStart)
	bus.Unsubscribe(EventSessionStart, sub)

	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel")
	}
	bus.Publish(EventSessionStart, Payload{})
}
