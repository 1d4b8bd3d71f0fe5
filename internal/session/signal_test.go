package session

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExistingMembersInitiateTowardNewcomer(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connect(t, h, "A")
	b := connect(t, h, "B")
	c := connect(t, h, "C")

	join(t, h, a, "r1", "alice")
	expectNone(t, a)

	join(t, h, b, "r1", "bob")
	nextOf(t, a, EvRosterUpdate)
	req := data[initiateOut](t, nextOf(t, a, EvInitiateSignal))
	require.Equal(t, "B", req.TowardConnection)
	expectNone(t, b) // the newcomer waits for offers

	join(t, h, c, "r1", "carol")
	for _, m := range []*Client{a, b} {
		nextOf(t, m, EvRosterUpdate)
		req := data[initiateOut](t, nextOf(t, m, EvInitiateSignal))
		require.Equal(t, "C", req.TowardConnection)
	}
	expectNone(t, c)
}

func TestInitiateAckHandsOfferToPeer(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connect(t, h, "A")
	b := connect(t, h, "B")
	join(t, h, a, "r1", "alice")
	join(t, h, b, "r1", "bob")
	drain(a)

	emit(t, h, a, EvInitiateAck, initiateAckPayload{ToConnection: "B"})

	req := data[initiateOut](t, nextOf(t, b, EvInitiateSignal))
	require.Equal(t, "A", req.TowardConnection)
	expectNone(t, a)
}

func TestSignalRelayedVerbatimWithOrigin(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connect(t, h, "A")
	b := connect(t, h, "B")
	join(t, h, a, "r1", "alice")
	join(t, h, b, "r1", "bob")
	drain(a)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0\r\no=- 4611731400430051336 2 IN IP4 127.0.0.1"}`)
	emit(t, h, a, EvSignal, signalPayload{ToConnection: "B", Payload: offer})

	got := data[signalOut](t, nextOf(t, b, EvSignal))
	require.Equal(t, "A", got.FromConnection)
	require.JSONEq(t, string(offer), string(got.Payload))
	expectNone(t, a)
}

func TestSignalsKeepEmissionOrderPerPair(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connect(t, h, "A")
	b := connect(t, h, "B")
	join(t, h, a, "r1", "alice")
	join(t, h, b, "r1", "bob")
	drain(a)

	for i := 0; i < 20; i++ {
		emit(t, h, a, EvSignal, signalPayload{ToConnection: "B", Payload: json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i))})
	}
	for i := 0; i < 20; i++ {
		got := data[signalOut](t, nextOf(t, b, EvSignal))
		require.JSONEq(t, fmt.Sprintf(`{"seq":%d}`, i), string(got.Payload))
	}
}

func TestSignalToOutsiderIsDropped(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connect(t, h, "A")
	b := connect(t, h, "B")
	x := connect(t, h, "X")
	join(t, h, a, "r1", "alice")
	join(t, h, b, "r1", "bob")
	join(t, h, x, "r2", "eve")
	drain(a)
	drain(b)

	payload := json.RawMessage(`{"candidate":"candidate:1 1 udp 2122260223 10.0.0.1 54321 typ host"}`)

	// different room
	err := h.relaySignal(a, "X", payload)
	require.ErrorIs(t, err, ErrStaleTarget)
	// unknown connection
	err = h.relaySignal(a, "ghost", payload)
	require.ErrorIs(t, err, ErrStaleTarget)
	// sender not in any room
	emit(t, h, x, EvLeaveRoom, leavePayload{})
	err = h.relaySignal(x, "A", payload)
	require.ErrorIs(t, err, ErrNotInRoom)
	// empty payload
	err = h.relaySignal(a, "B", nil)
	require.ErrorIs(t, err, ErrMalformed)

	expectNone(t, a)
	expectNone(t, b)
	expectNone(t, x)
}

func TestSignalToDisconnectedPeerIsDropped(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connect(t, h, "A")
	b := connect(t, h, "B")
	join(t, h, a, "r1", "alice")
	join(t, h, b, "r1", "bob")
	h.drop(b)
	drain(a)

	require.NotPanics(t, func() {
		emit(t, h, a, EvSignal, signalPayload{ToConnection: "B", Payload: json.RawMessage(`{"type":"answer"}`)})
	})
	expectNone(t, a)
}
