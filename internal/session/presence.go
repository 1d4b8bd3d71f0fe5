package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"codepair/internal/archive"
)

const archiveTimeout = 5 * time.Second

// join puts c into roomID, leaving any other room first. The joiner gets the
// roster and every snapshot in one room-joined frame; the others get the new
// roster, and each of them is told to start a handshake toward c.
func (h *Hub) join(c *Client, roomID, userID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return fmt.Errorf("%w: missing roomId", ErrMalformed)
	}

	if c.RoomID != "" && c.RoomID != roomID {
		h.leave(c)
	}

	c.UserID = displayName(c, userID)

	room, created := h.rooms.GetOrCreate(roomID, h.now())
	if created {
		log.Printf("[HUB] room %s created", roomID)
	}

	existing := room.Members()
	rejoin := room.has(c)
	if !rejoin {
		room.add(c)
		c.RoomID = roomID
		log.Printf("[HUB] %s (%s) joined %s, %d member(s)", c.ID, c.UserID, roomID, len(room.members))
	}

	h.send(c, encode(EvRoomJoined, roomJoinedOut{
		ConnectionID: c.ID,
		RoomState:    room.State(),
		IceServers:   h.iceServers,
	}))
	// A joiner that could not take room-joined was evicted and has already left.
	if c.closed {
		return nil
	}

	roster := encode(EvRosterUpdate, rosterOut{RoomID: roomID, Roster: room.Roster()})
	h.broadcast(room, roster, c)

	if !rejoin {
		h.initiateHandshake(existing, c)
	}
	return nil
}

func displayName(c *Client, userID string) string {
	if c.AuthUser != "" {
		return c.AuthUser
	}
	if u := strings.TrimSpace(userID); u != "" {
		return u
	}
	return AnonymousUser
}

// leave is a no-op for a connection that is in no room.
func (h *Hub) leave(c *Client) {
	if c.RoomID == "" {
		return
	}
	roomID := c.RoomID
	c.RoomID = ""

	room, ok := h.rooms.Get(roomID)
	if !ok || !room.remove(c) {
		return
	}
	log.Printf("[HUB] %s left %s, %d member(s)", c.ID, roomID, len(room.members))

	if room.empty() {
		h.rooms.Remove(roomID)
		log.Printf("[HUB] room %s dissolved", roomID)
		h.archive(room)
		return
	}

	h.broadcast(room, encode(EvPeerLeft, peerLeftOut{ConnectionID: c.ID}), nil)
	// Members that could not take peer-left were dropped, possibly all of them.
	if !room.empty() {
		h.broadcast(room, encode(EvRosterUpdate, rosterOut{RoomID: roomID, Roster: room.Roster()}), nil)
	}
}

// archive hands the final state of a dissolved room to the archiver without
// blocking the loop.
func (h *Hub) archive(room *Room) {
	if h.archiver == nil {
		return
	}

	wb, err := json.Marshal(room.Whiteboard)
	if err != nil {
		log.Printf("❌ [HUB] archive %s: %v", room.ID, err)
		return
	}
	rec := archive.Record{
		RoomID:       room.ID,
		Language:     room.Code.Language,
		Code:         room.Code.Content,
		Whiteboard:   wb,
		Participants: room.joins,
		StartedAt:    room.CreatedAt,
		EndedAt:      h.now(),
	}

	h.archiving.Add(1)
	go func() {
		defer h.archiving.Done()
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := h.archiver.Save(ctx, rec); err != nil {
			log.Printf("❌ [HUB] archive %s: %v", rec.RoomID, err)
		}
	}()
}
