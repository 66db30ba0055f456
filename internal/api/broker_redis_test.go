package api

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisBroker(t *testing.T) *RedisBroker {
	t.Helper()
	srv := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + srv.Addr())
	if err != nil {
		t.Fatalf("init broker: %v", err)
	}
	return b
}

func recvEvent(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		if !ok {
			t.Fatal("channel closed while waiting for event")
		}
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
	b := newTestRedisBroker(t)
	ch := b.Subscribe("r_176")
	defer b.Unsubscribe("r_176", ch)

	b.Publish("r_176", Event{Type: "update.published", Data: map[string]any{"busNumber": "NB-1"}})

	got := recvEvent(t, ch)
	if got.Type != "update.published" {
		t.Fatalf("got type %s, want update.published", got.Type)
	}
	data, ok := got.Data.(map[string]any)
	if !ok || data["busNumber"].(string) != "NB-1" {
		t.Fatalf("bad payload after round trip: %+v", got.Data)
	}
}

func TestRedisBrokerUnsubscribeThenPublish(t *testing.T) {
	b := newTestRedisBroker(t)
	left := b.Subscribe("r_176")
	staying := b.Subscribe("r_176")
	defer b.Unsubscribe("r_176", staying)

	b.Unsubscribe("r_176", left)

	// traffic keeps flowing after a watcher leaves; the departed watcher's
	// channel just drains closed
	b.Publish("r_176", Event{Type: "update.published", Data: map[string]any{"busNumber": "NB-2"}})

	got := recvEvent(t, staying)
	if got.Type != "update.published" {
		t.Fatalf("remaining subscriber got %+v", got)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-left:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("departed subscriber's channel never closed")
		}
	}
}

func TestRedisBrokerIsolatesRoutes(t *testing.T) {
	b := newTestRedisBroker(t)
	ch176 := b.Subscribe("r_176")
	ch138 := b.Subscribe("r_138")
	defer b.Unsubscribe("r_176", ch176)
	defer b.Unsubscribe("r_138", ch138)

	b.Publish("r_176", Event{Type: "update.published"})

	if got := recvEvent(t, ch176); got.Type != "update.published" {
		t.Fatalf("subscriber of published route got %+v", got)
	}
	select {
	case evt := <-ch138:
		t.Fatalf("subscriber of another route got %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}
