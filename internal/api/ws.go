package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"trackmybus/internal/metrics"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	RouteID string          `json:"routeId,omitempty"`
	Event   string          `json:"event,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// WSHandler handles /v1/ws. A client joins any number of routes and receives
// that route's feed events until it leaves or disconnects:
//
//	-> {"type":"joinRoute","routeId":"r_176"}
//	<- {"type":"joined","routeId":"r_176"}
//	<- {"type":"event","event":"update.published","data":{...}}
//	-> {"type":"leaveRoute","routeId":"r_176"}
//	-> {"type":"ping"}  <- {"type":"pong"}
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	metrics.WatcherConnections.Inc()
	defer metrics.WatcherConnections.Dec()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// WriteJSON is not safe for concurrent use; every fan-out goroutine and
	// the read loop funnel writes through one goroutine.
	writeCh := make(chan any, 16)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case v := <-writeCh:
				if err := conn.WriteJSON(v); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	write := func(v any) {
		select {
		case writeCh <- v:
		case <-done:
		}
	}

	subs := map[string]chan Event{} // routeID -> subscription channel

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "ping":
			write(wsMessage{Type: "pong"})
		case "joinRoute":
			if msg.RouteID == "" {
				write(wsMessage{Type: "error", Error: "routeId required"})
				continue
			}
			if _, ok := subs[msg.RouteID]; ok {
				write(wsMessage{Type: "joined", RouteID: msg.RouteID})
				continue
			}
			if _, err := s.Store.GetRoute(r.Context(), msg.RouteID); err != nil {
				write(wsMessage{Type: "error", RouteID: msg.RouteID, Error: "unknown route"})
				continue
			}
			ch := s.Broker.Subscribe(msg.RouteID)
			subs[msg.RouteID] = ch
			write(wsMessage{Type: "joined", RouteID: msg.RouteID})
			go func(routeID string, c chan Event) {
				for evt := range c {
					data, _ := json.Marshal(evt.Data)
					write(wsMessage{Type: "event", RouteID: routeID, Event: evt.Type, Data: data})
				}
			}(msg.RouteID, ch)
		case "leaveRoute":
			if ch, ok := subs[msg.RouteID]; ok {
				s.Broker.Unsubscribe(msg.RouteID, ch)
				delete(subs, msg.RouteID)
				write(wsMessage{Type: "left", RouteID: msg.RouteID})
			}
		default:
			// ignore
		}
	}
	close(done)
	for rid, ch := range subs {
		s.Broker.Unsubscribe(rid, ch)
		delete(subs, rid)
	}
}
