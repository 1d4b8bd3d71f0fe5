package session

import (
	"encoding/json"
	"fmt"
	"math"
)

// All three shared artifacts are last-write-wins: the update the loop
// processes last replaces the snapshot wholesale. Concurrent writers are not
// merged, and the sender never gets its own update echoed back.

func (h *Hub) updateCode(c *Client, roomID, content, language string) error {
	room, err := h.memberRoom(c, roomID)
	if err != nil {
		return err
	}
	if !validLanguage(language) {
		return fmt.Errorf("%w: bad language %q", ErrMalformed, language)
	}

	room.Code = CodeSnapshot{Content: content, Language: language}
	h.broadcast(room, encode(EvCodeUpdate, room.Code), c)
	return nil
}

// updateWhiteboard takes the complete shape list, never a diff.
func (h *Hub) updateWhiteboard(c *Client, roomID string, shapes []json.RawMessage) error {
	room, err := h.memberRoom(c, roomID)
	if err != nil {
		return err
	}
	if shapes == nil {
		return fmt.Errorf("%w: missing shapes", ErrMalformed)
	}

	room.Whiteboard = shapes
	h.broadcast(room, encode(EvWhiteboardUpdate, whiteboardOut{Shapes: shapes}), c)
	return nil
}

// updateTimer stores the client-computed timer. The server keeps no clock.
func (h *Hub) updateTimer(c *Client, roomID string, timer *TimerState) error {
	room, err := h.memberRoom(c, roomID)
	if err != nil {
		return err
	}
	if timer == nil {
		return fmt.Errorf("%w: missing timerState", ErrMalformed)
	}
	if timer.ElapsedSeconds < 0 || math.IsNaN(timer.ElapsedSeconds) || math.IsInf(timer.ElapsedSeconds, 0) {
		return fmt.Errorf("%w: elapsedSeconds %v", ErrMalformed, timer.ElapsedSeconds)
	}

	room.Timer = *timer
	h.broadcast(room, encode(EvTimerUpdate, timerOut{TimerState: room.Timer}), c)
	return nil
}
