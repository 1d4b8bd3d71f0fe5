package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"codepair/internal/ice"
)

var (
	ErrMalformed    = errors.New("malformed event")
	ErrNotInRoom    = errors.New("connection is not a member of that room")
	ErrStaleTarget  = errors.New("target connection is not in the sender's room")
	ErrUnknownEvent = errors.New("unknown event type")
	ErrClosed       = errors.New("hub is not running")
)

// Client -> server events.
const (
	EvJoinRoom         = "join-room"
	EvLeaveRoom        = "leave-room"
	EvInitiateAck      = "initiate-signal-ack"
	EvSignal           = "signal"
	EvCodeUpdate       = "code-update"
	EvWhiteboardUpdate = "whiteboard-update"
	EvTimerUpdate      = "timer-update"
	EvChatMessage      = "chat-message"
	EvChatDM           = "chat-dm"
	EvRaiseHand        = "raise-hand"
	EvEmojiReaction    = "emoji-reaction"
	EvRunCode          = "run-code"
)

// Server -> client only events. Signal, code, whiteboard, timer, chat and
// reaction events reuse the client names above.
const (
	EvConnected      = "connected"
	EvRoomJoined     = "room-joined"
	EvRosterUpdate   = "roster-update"
	EvPeerLeft       = "peer-left"
	EvInitiateSignal = "initiate-signal"
	EvRunResult      = "run-result"
)

// AnonymousUser labels connections that joined without a user id.
const AnonymousUser = "Anonymous"

// DefaultLanguage is the editor language of a fresh room.
const DefaultLanguage = "javascript"

// maxLanguage bounds the language tag. The tag itself is opaque here: the
// sandbox owns the set of runtimes and resolves aliases such as "py".
const maxLanguage = 32

func validLanguage(lang string) bool {
	return strings.TrimSpace(lang) != "" && len(lang) <= maxLanguage
}

// Envelope is the frame for every websocket message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Member struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
}

type CodeSnapshot struct {
	Content  string `json:"content"`
	Language string `json:"language"`
}

// TimerState is computed by clients; the server only stores and relays it.
type TimerState struct {
	StartTime      *int64  `json:"startTime"` // unix millis, nil when never started
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	IsRunning      bool    `json:"isRunning"`
}

// RoomState is the full view of a room: roster plus every shared snapshot.
type RoomState struct {
	RoomID     string            `json:"roomId"`
	Roster     []Member          `json:"roster"`
	Code       CodeSnapshot      `json:"code"`
	Whiteboard []json.RawMessage `json:"whiteboard"`
	Timer      TimerState        `json:"timer"`
}

type RoomSummary struct {
	RoomID  string `json:"roomId"`
	Members int    `json:"members"`
}

// ---------------------------------------------
// Inbound payloads
// ---------------------------------------------

type joinPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type leavePayload struct {
	RoomID string `json:"roomId"`
}

type initiateAckPayload struct {
	ToConnection string `json:"toConnection"`
}

type signalPayload struct {
	ToConnection string          `json:"toConnection"`
	Payload      json.RawMessage `json:"payload"`
}

type codePayload struct {
	RoomID   string `json:"roomId"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

type whiteboardPayload struct {
	RoomID string            `json:"roomId"`
	Shapes []json.RawMessage `json:"shapes"`
}

type timerPayload struct {
	RoomID     string      `json:"roomId"`
	TimerState *TimerState `json:"timerState"`
}

type chatPayload struct {
	RoomID       string `json:"roomId"`
	ToConnection string `json:"toConnection,omitempty"`
	Body         string `json:"body"`
}

type reactionPayload struct {
	RoomID string `json:"roomId"`
	Emoji  string `json:"emoji,omitempty"`
}

type runPayload struct {
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
	Code     string `json:"code"`
}

// ---------------------------------------------
// Outbound payloads
// ---------------------------------------------

type connectedOut struct {
	ConnectionID string `json:"connectionId"`
}

type roomJoinedOut struct {
	ConnectionID string `json:"connectionId"`
	RoomState
	IceServers []ice.Server `json:"iceServers"`
}

type rosterOut struct {
	RoomID string   `json:"roomId"`
	Roster []Member `json:"roster"`
}

type peerLeftOut struct {
	ConnectionID string `json:"connectionId"`
}

type initiateOut struct {
	TowardConnection string `json:"towardConnection"`
}

type signalOut struct {
	FromConnection string          `json:"fromConnection"`
	Payload        json.RawMessage `json:"payload"`
}

type whiteboardOut struct {
	Shapes []json.RawMessage `json:"shapes"`
}

type timerOut struct {
	TimerState TimerState `json:"timerState"`
}

type chatOut struct {
	FromUser       string `json:"fromUser"`
	FromConnection string `json:"fromConnection"`
	Body           string `json:"body"`
	Timestamp      int64  `json:"timestamp"`
	Private        bool   `json:"private,omitempty"`
}

type reactionOut struct {
	FromUser       string `json:"fromUser"`
	FromConnection string `json:"fromConnection"`
	Emoji          string `json:"emoji,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

type runResultOut struct {
	RequestID string `json:"requestId"`
	Output    string `json:"output,omitempty"`
	ExitCode  int    `json:"exitCode"`
	Error     string `json:"error,omitempty"`
}

// decode reads env.Data into v. A missing data field reads as {}, leaving
// field validation to the handler.
func decode(env Envelope, v interface{}) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// encode builds an outbound frame. Payload types are all plain structs, so a
// marshal failure is a programming error and is reported as such.
func encode(eventType string, payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		panic("session: cannot encode " + eventType + ": " + err.Error())
	}
	msg, err := json.Marshal(Envelope{Type: eventType, Data: data})
	if err != nil {
		panic("session: cannot encode envelope " + eventType + ": " + err.Error())
	}
	return msg
}
