// Package main runs a demo WebSocket watcher for a bus route.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	RouteID string          `json:"routeId,omitempty"`
	Event   string          `json:"event,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Pick the first route
	resp, err := http.Get(base + "/v1/routes")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var routesResp struct {
		Items []struct {
			ID          string `json:"id"`
			RouteNumber string `json:"routeNumber"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&routesResp); err != nil {
		log.Fatal(err)
	}
	if len(routesResp.Items) == 0 {
		log.Fatal("no routes returned")
	}
	routeID := routesResp.Items[0].ID
	log.Printf("Watching route %s (%s)", routesResp.Items[0].RouteNumber, routeID)

	// Connect WS and join the route
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "joinRoute", RouteID: routeID}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s %s: %s", m.Type, m.Event, string(m.Data))
		}
	}()

	// Submit an update to trigger an event
	time.Sleep(500 * time.Millisecond)
	body := []byte(fmt.Sprintf(`{"routeId":%q,"busNumber":"NB-1234","currentStop":"Pettah","direction":"forward","coordinates":{"lat":6.9355,"lng":79.8487}}`, routeID))
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/updates", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "u_demo")
	req.Header.Set("X-User-Name", "Demo Rider")
	_, _ = http.DefaultClient.Do(req)

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
