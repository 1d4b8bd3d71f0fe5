package session

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxChatBody = 4000 // runes
	maxEmoji    = 32   // bytes; one grapheme can be several code points
)

// Chat and reactions are pure relays. Nothing is stored.

// broadcastMessage reaches every member, the sender included.
func (h *Hub) broadcastMessage(c *Client, roomID, body string) error {
	room, err := h.memberRoom(c, roomID)
	if err != nil {
		return err
	}
	if err := checkBody(body); err != nil {
		return err
	}

	h.broadcast(room, encode(EvChatMessage, chatOut{
		FromUser:       c.UserID,
		FromConnection: c.ID,
		Body:           body,
		Timestamp:      h.now().UnixMilli(),
	}), nil)
	return nil
}

// directMessage reaches only the recipient. The sender gets no echo.
func (h *Hub) directMessage(c *Client, roomID, toID, body string) error {
	if _, err := h.memberRoom(c, roomID); err != nil {
		return err
	}
	if err := checkBody(body); err != nil {
		return err
	}
	target, err := h.peerInRoom(c, toID)
	if err != nil {
		return err
	}

	h.send(target, encode(EvChatDM, chatOut{
		FromUser:       c.UserID,
		FromConnection: c.ID,
		Body:           body,
		Timestamp:      h.now().UnixMilli(),
		Private:        true,
	}))
	return nil
}

func (h *Hub) raiseHand(c *Client, roomID string) error {
	room, err := h.memberRoom(c, roomID)
	if err != nil {
		return err
	}
	h.broadcast(room, encode(EvRaiseHand, reactionOut{
		FromUser:       c.UserID,
		FromConnection: c.ID,
		Timestamp:      h.now().UnixMilli(),
	}), nil)
	return nil
}

func (h *Hub) reactEmoji(c *Client, roomID, emoji string) error {
	room, err := h.memberRoom(c, roomID)
	if err != nil {
		return err
	}
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len(emoji) > maxEmoji {
		return fmt.Errorf("%w: bad emoji", ErrMalformed)
	}
	h.broadcast(room, encode(EvEmojiReaction, reactionOut{
		FromUser:       c.UserID,
		FromConnection: c.ID,
		Emoji:          emoji,
		Timestamp:      h.now().UnixMilli(),
	}), nil)
	return nil
}

func checkBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: empty body", ErrMalformed)
	}
	if utf8.RuneCountInString(body) > maxChatBody {
		return fmt.Errorf("%w: body longer than %d characters", ErrMalformed, maxChatBody)
	}
	return nil
}
