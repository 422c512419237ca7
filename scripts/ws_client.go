// Package main runs a demo viewer: it stores one path point and prints the
// live frames the server fans out for the room.
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
	Type    string          `json:"Type"`
	Payload json.RawMessage `json:"Payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	roomID := os.Getenv("ROOM_ID")
	if roomID == "" {
		roomID = "demo-room-1"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Connect the viewer first so the hello and the data-updated frame both
	// show up.
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/api/v1/ws", RawQuery: "roomId=" + roomID}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Store one point
	body := []byte(fmt.Sprintf(
		`{"roomId":%q,"appId":"demo-app","username":"demo","sessionId":1,"lat":51.4778,"lng":-0.0015,"alt":45}`,
		roomID))
	resp, err := http.Post(base+"/api/v1/store-path-point", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	log.Printf("store-path-point: %s", resp.Status)

	// Wait briefly to receive a few frames
	select {
	case <-time.After(3 * time.Second):
	case <-done:
	}
}
