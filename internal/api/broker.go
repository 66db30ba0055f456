package api

import (
	"sync"

	"trackmybus/internal/metrics"
	"trackmybus/internal/model"
)

// Event is one feed event delivered to a route's watchers, over SSE or
// WebSocket alike.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker is the in-process subscription registry: routeID -> set of
// subscriber channels. Sends never block; a watcher that cannot keep up
// drops events rather than stalling the publisher.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(routeID string) chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[routeID] == nil {
		b.subs[routeID] = map[chan Event]struct{}{}
	}
	b.subs[routeID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(routeID string, ch chan Event) {
	b.mu.Lock()
	if m := b.subs[routeID]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, routeID)
		}
	}
	b.mu.Unlock()
	close(ch)
}

func (b *Broker) Publish(routeID string, evt Event) {
	metrics.EventsPublished.WithLabelValues(evt.Type).Inc()
	b.mu.Lock()
	m := b.subs[routeID]
	for ch := range m {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}

// EventPublisher adapts an EventBroker to the feed service's Publisher
// contract, mapping domain operations to wire event types.
type EventPublisher struct {
	Broker EventBroker
}

func (p *EventPublisher) PublishUpdate(u model.LocationUpdate) {
	p.Broker.Publish(u.RouteID, Event{Type: "update.published", Data: u})
}

func (p *EventPublisher) PublishRetraction(updateID, routeID string) {
	p.Broker.Publish(routeID, Event{Type: "update.retracted", Data: map[string]any{
		"updateId": updateID,
		"routeId":  routeID,
	}})
}
