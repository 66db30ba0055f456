package api

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	rid := "r_176"
	ch := b.Subscribe(rid)
	defer func() { recover() }() // ignore close panic if already closed

	evt := Event{Type: "update.published", Data: map[string]any{"busNumber": "NB-1"}}
	b.Publish(rid, evt)

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		data, ok := got.Data.(map[string]any)
		if !ok || data["busNumber"].(string) != "NB-1" {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(rid, ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("channel should be closed after unsubscribe")
		}
	case <-time.After(50 * time.Millisecond):
		// acceptable if already drained and closed
	}
}

func TestBrokerIsolatesRoutes(t *testing.T) {
	b := NewBroker()
	ch176 := b.Subscribe("r_176")
	ch138 := b.Subscribe("r_138")
	defer b.Unsubscribe("r_176", ch176)
	defer b.Unsubscribe("r_138", ch138)

	b.Publish("r_176", Event{Type: "update.published"})

	select {
	case <-ch176:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("subscriber of published route got nothing")
	}
	select {
	case evt := <-ch138:
		t.Fatalf("subscriber of another route got %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerSlowSubscriberDropsEvents(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("r_176")
	defer b.Unsubscribe("r_176", ch)

	// fill the buffer and keep publishing; Publish must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish("r_176", Event{Type: "update.published"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
