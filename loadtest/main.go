package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	baseURL   = flag.String("base", "http://localhost:8080", "server base URL")
	wsURL     = flag.String("ws", "ws://localhost:8080/ws", "websocket endpoint")
	token     = flag.String("token", "", "bearer token, if the server requires one")
	roomCount = flag.Int("rooms", 100, "number of rooms") // ⚠️ Start small, every edit fans out to the whole room.
	members   = flag.Int("members", 3, "members per room")
	msgCount  = flag.Int("msgs", 20, "code edits per member")
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type createRoomResponse struct {
	RoomID string `json:"roomId"`
}

var (
	sent     atomic.Int64
	received atomic.Int64
	failed   atomic.Int64
)

func main() {
	flag.Parse()
	log.Printf("🔥 STARTING STRESS TEST: %d rooms x %d members, %d edits each...", *roomCount, *members, *msgCount)
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < *roomCount; i++ {
		wg.Add(1)
		go func(roomNo int) {
			defer wg.Done()
			runRoom(roomNo)
		}(i)
	}
	wg.Wait()

	// Each edit should reach every other member of its room.
	expected := sent.Load() * int64(*members-1)
	log.Printf("✅ LOAD TEST COMPLETE in %s: sent=%d received=%d/%d failed=%d",
		time.Since(start).Round(time.Millisecond), sent.Load(), received.Load(), expected, failed.Load())
}

func runRoom(roomNo int) {
	roomID, err := createRoom()
	if err != nil {
		log.Printf("❌ Create Room Failed [%d]: %v", roomNo, err)
		failed.Add(1)
		return
	}

	// Everyone joins before anyone edits, so every member sees every edit.
	joined := make(chan struct{})
	var ready sync.WaitGroup
	var wsWg sync.WaitGroup
	for m := 0; m < *members; m++ {
		ready.Add(1)
		wsWg.Add(1)
		go member(&wsWg, &ready, joined, roomID, fmt.Sprintf("u_%d_%d", roomNo, m))
	}
	ready.Wait()
	close(joined)
	wsWg.Wait()
}

func createRoom() (string, error) {
	resp, err := http.Post(*baseURL+"/api/rooms", "application/json", bytes.NewBuffer(nil))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var data createRoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", err
	}
	return data.RoomID, nil
}

func member(wg, ready *sync.WaitGroup, joined <-chan struct{}, roomID, user string) {
	defer wg.Done()
	readyOnce := sync.OnceFunc(ready.Done)
	defer readyOnce()

	url := *wsURL
	if *token != "" {
		url += "?token=" + *token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Printf("❌ WS Connect Fail [%s]: %v", user, err)
		failed.Add(1)
		return
	}
	defer conn.Close()

	if err := send(conn, "join-room", map[string]string{"roomId": roomID, "userId": user}); err != nil {
		log.Printf("❌ Join Fail [%s]: %v", user, err)
		failed.Add(1)
		return
	}

	// Reader counts code edits from the other members until the room goes quiet.
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer readyOnce()
		for {
			conn.SetReadDeadline(time.Now().Add(3 * time.Second))
			var env envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			switch env.Type {
			case "room-joined":
				readyOnce()
			case "code-update":
				received.Add(1)
			}
		}
	}()

	<-joined
	for i := 0; i < *msgCount; i++ {
		err := send(conn, "code-update", map[string]string{
			"roomId":   roomID,
			"content":  fmt.Sprintf("// LoadTest edit %d from %s", i, user),
			"language": "javascript",
		})
		if err != nil {
			log.Printf("❌ Send Fail [%s]: %v", user, err)
			failed.Add(1)
			break
		}
		sent.Add(1)
		// Small sleep to prevent instant localhost bottleneck (simulate real typing)
		time.Sleep(10 * time.Millisecond)
	}

	<-done
}

func send(conn *websocket.Conn, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(envelope{Type: eventType, Data: data})
}
