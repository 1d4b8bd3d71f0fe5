package session

import (
	"encoding/json"
	"fmt"
)

// initiateHandshake tells every member that was already in the room to send an
// offer toward the newcomer, so each unordered pair negotiates exactly once.
func (h *Hub) initiateHandshake(existing []*Client, newcomer *Client) {
	msg := encode(EvInitiateSignal, initiateOut{TowardConnection: newcomer.ID})
	for _, m := range existing {
		if m == newcomer {
			continue
		}
		h.send(m, msg)
	}
}

// handOffInitiation is the initiate-signal-ack path: c declines to offer and
// asks peer to initiate toward it instead.
func (h *Hub) handOffInitiation(c *Client, peerID string) error {
	peer, err := h.peerInRoom(c, peerID)
	if err != nil {
		return err
	}
	h.send(peer, encode(EvInitiateSignal, initiateOut{TowardConnection: c.ID}))
	return nil
}

// relaySignal forwards an opaque offer/answer/candidate blob. The payload is
// never inspected.
func (h *Hub) relaySignal(c *Client, toID string, payload json.RawMessage) error {
	if len(payload) == 0 || string(payload) == "null" {
		return fmt.Errorf("%w: empty signal payload", ErrMalformed)
	}
	target, err := h.peerInRoom(c, toID)
	if err != nil {
		return err
	}
	h.send(target, encode(EvSignal, signalOut{FromConnection: c.ID, Payload: payload}))
	return nil
}

// peerInRoom finds a live connection, other than c, in c's room.
func (h *Hub) peerInRoom(c *Client, peerID string) (*Client, error) {
	if peerID == "" {
		return nil, fmt.Errorf("%w: missing toConnection", ErrMalformed)
	}
	if c.RoomID == "" {
		return nil, ErrNotInRoom
	}
	if peerID == c.ID {
		return nil, fmt.Errorf("%w: cannot target self", ErrMalformed)
	}
	target, ok := h.clients[peerID]
	if !ok || target.closed || target.RoomID != c.RoomID {
		return nil, ErrStaleTarget
	}
	return target, nil
}
