package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func newTestHub(t *testing.T, opts Options) *Hub {
	t.Helper()
	h := NewHub(opts)
	h.now = func() time.Time { return testNow }
	return h
}

// connect registers a fake connection and swallows its "connected" frame.
func connect(t *testing.T, h *Hub, id string) *Client {
	t.Helper()
	c := &Client{Hub: h, ID: id, Send: make(chan []byte, 64)}
	h.register(c)
	env := next(t, c)
	require.Equal(t, EvConnected, env.Type)
	return c
}

func emit(t *testing.T, h *Hub, c *Client, eventType string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	h.dispatch(c, Envelope{Type: eventType, Data: raw})
}

func decodeFrame(t *testing.T, raw []byte) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

// next pops the oldest queued frame. Dispatch is synchronous, so anything
// the hub sent is already queued.
func next(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		require.True(t, ok, "send channel of %s closed", c.ID)
		return decodeFrame(t, msg)
	default:
		t.Fatalf("no message queued for %s", c.ID)
		return Envelope{}
	}
}

func nextOf(t *testing.T, c *Client, eventType string) Envelope {
	t.Helper()
	env := next(t, c)
	require.Equal(t, eventType, env.Type, "unexpected frame for %s: %s", c.ID, env.Data)
	return env
}

func expectNone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected frame for %s: %s", c.ID, msg)
	default:
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.Send:
		default:
			return
		}
	}
}

func data[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func join(t *testing.T, h *Hub, c *Client, roomID, userID string) roomJoinedOut {
	t.Helper()
	emit(t, h, c, EvJoinRoom, joinPayload{RoomID: roomID, UserID: userID})
	return data[roomJoinedOut](t, nextOf(t, c, EvRoomJoined))
}

func TestDropIsIdempotent(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connect(t, h, "A")
	join(t, h, a, "r1", "alice")

	h.drop(a)
	h.drop(a)

	_, ok := <-a.Send
	require.False(t, ok)
	require.Empty(t, h.clients)
	require.Zero(t, h.rooms.Len())
}

func TestUnknownAndMalformedEventsAreDropped(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connect(t, h, "A")
	b := connect(t, h, "B")
	join(t, h, a, "r1", "alice")
	join(t, h, b, "r1", "bob")
	drain(a)

	h.dispatch(a, Envelope{Type: "self-destruct"})
	h.dispatch(a, Envelope{Type: EvCodeUpdate, Data: json.RawMessage(`{"roomId": 42}`)})
	// no roomId
	emit(t, h, a, EvCodeUpdate, codePayload{Content: "x", Language: "python"})
	// not a member
	emit(t, h, a, EvCodeUpdate, codePayload{RoomID: "r2", Content: "x", Language: "python"})
	emit(t, h, a, EvCodeUpdate, codePayload{RoomID: "r1", Content: "x", Language: "  "})
	emit(t, h, a, EvJoinRoom, joinPayload{RoomID: "  "})
	emit(t, h, a, EvWhiteboardUpdate, map[string]string{"roomId": "r1"})
	emit(t, h, a, EvTimerUpdate, map[string]string{"roomId": "r1"})
	emit(t, h, a, EvTimerUpdate, timerPayload{RoomID: "r1", TimerState: &TimerState{ElapsedSeconds: -3}})

	expectNone(t, a)
	expectNone(t, b)

	room, _ := h.rooms.Get("r1")
	require.Equal(t, CodeSnapshot{Language: DefaultLanguage}, room.Code)
	require.Equal(t, "r1", a.RoomID)
}

func TestHandlerPanicDoesNotEscape(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connect(t, h, "A")
	join(t, h, a, "r1", "alice")

	// An unencodable snapshot makes the join response panic.
	h.rooms.rooms["r1"].Whiteboard = []json.RawMessage{json.RawMessage("{broken")}
	b := connect(t, h, "B")
	require.NotPanics(t, func() {
		emit(t, h, b, EvJoinRoom, joinPayload{RoomID: "r1", UserID: "bob"})
	})

	// Other rooms keep working.
	c := connect(t, h, "C")
	got := join(t, h, c, "r2", "carol")
	require.Equal(t, "r2", got.RoomID)
}

func TestSlowClientIsDisconnected(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connect(t, h, "A")
	join(t, h, a, "r1", "alice")

	slow := &Client{Hub: h, ID: "S", Send: make(chan []byte, 2)}
	h.register(slow)
	emit(t, h, slow, EvJoinRoom, joinPayload{RoomID: "r1", UserID: "slow"})
	// queue now holds connected + room-joined; the next broadcast overflows it.
	drain(a)

	emit(t, h, a, EvCodeUpdate, codePayload{RoomID: "r1", Content: "x", Language: "go"})

	require.True(t, slow.closed)
	_, present := h.clients["S"]
	require.False(t, present)

	room, _ := h.rooms.Get("r1")
	require.Equal(t, []Member{{ConnectionID: "A", UserID: "alice"}}, room.Roster())

	nextOf(t, a, EvPeerLeft)
	roster := data[rosterOut](t, nextOf(t, a, EvRosterUpdate))
	require.Len(t, roster.Roster, 1)
}

func TestQueriesRunOnLoop(t *testing.T) {
	h := newTestHub(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	a := &Client{Hub: h, ID: "A", Send: make(chan []byte, 16)}
	h.Register <- a
	h.inbound <- inbound{client: a, env: Envelope{Type: EvJoinRoom, Data: json.RawMessage(`{"roomId":"r1","userId":"alice"}`)}}

	require.Eventually(t, func() bool {
		rooms, err := h.Rooms(ctx)
		return err == nil && len(rooms) == 1 && rooms[0].Members == 1
	}, time.Second, 10*time.Millisecond)

	state, found, err := h.Snapshot(ctx, "r1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []Member{{ConnectionID: "A", UserID: "alice"}}, state.Roster)

	_, found, err = h.Snapshot(ctx, "nope")
	require.NoError(t, err)
	require.False(t, found)

	cancel()
	<-h.done
	_, err = h.Rooms(context.Background())
	require.ErrorIs(t, err, ErrClosed)

	_, ok := <-a.Send // drained frames first
	for ok {
		_, ok = <-a.Send
	}
	require.True(t, a.closed)
}
