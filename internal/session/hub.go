package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"codepair/internal/archive"
	"codepair/internal/ice"
	"codepair/internal/runner"
)

// Archiver receives the final state of rooms that dissolved.
type Archiver interface {
	Save(ctx context.Context, rec archive.Record) error
}

type Options struct {
	Runner     runner.Executor
	RunTimeout time.Duration
	Archiver   Archiver // optional
	IceServers []ice.Server
}

// Hub owns every room and connection. Run is the only goroutine that reads or
// writes them, so each inbound event is applied and fanned out atomically.
type Hub struct {
	rooms   *Registry
	clients map[string]*Client

	Register   chan *Client
	Unregister chan *Client
	inbound    chan inbound
	results    chan runOutcome
	queries    chan func()

	runner     runner.Executor
	runTimeout time.Duration
	archiver   Archiver
	archiving  sync.WaitGroup
	iceServers []ice.Server

	now func() time.Time
	// ctx of Run, for work started from inside the loop.
	ctx  context.Context
	done chan struct{}
}

func NewHub(opts Options) *Hub {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 10 * time.Second
	}
	if opts.IceServers == nil {
		opts.IceServers = ice.Default()
	}
	return &Hub{
		rooms:      NewRegistry(),
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		inbound:    make(chan inbound, 64),
		results:    make(chan runOutcome, 16),
		queries:    make(chan func()),
		runner:     opts.Runner,
		runTimeout: opts.RunTimeout,
		archiver:   opts.Archiver,
		iceServers: opts.IceServers,
		now:        time.Now,
		ctx:        context.Background(),
		done:       make(chan struct{}),
	}
}

// Run is the event loop. It returns when ctx is cancelled, after closing
// every connection.
func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	defer close(h.done)

	for {
		select {
		case client := <-h.Register:
			h.register(client)

		case client := <-h.Unregister:
			h.drop(client)

		case in := <-h.inbound:
			h.dispatch(in.client, in.env)

		case out := <-h.results:
			h.deliverResult(out)

		case fn := <-h.queries:
			fn()

		case <-ctx.Done():
			for _, c := range h.clients {
				h.drop(c)
			}
			log.Println("[HUB] stopped")
			return
		}
	}
}

func (h *Hub) register(c *Client) {
	h.clients[c.ID] = c
	h.send(c, encode(EvConnected, connectedOut{ConnectionID: c.ID}))
}

// drop forgets a connection for good: leave, then close its outbound queue.
func (h *Hub) drop(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	h.leave(c)
	delete(h.clients, c.ID)
	close(c.Send)
}

// dispatch applies one event. Any failure, panics included, drops the event
// and nothing else.
func (h *Hub) dispatch(c *Client, env Envelope) {
	if c.closed {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [HUB] panic handling %s from %s: %v", env.Type, c.ID, r)
		}
	}()

	if err := h.handle(c, env); err != nil {
		log.Printf("[HUB] dropped %s from %s: %v", env.Type, c.ID, err)
	}
}

func (h *Hub) handle(c *Client, env Envelope) error {
	switch env.Type {
	case EvJoinRoom:
		var p joinPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return h.join(c, p.RoomID, p.UserID)

	case EvLeaveRoom:
		var p leavePayload
		if err := decode(env, &p); err != nil {
			return err
		}
		if p.RoomID != "" && p.RoomID != c.RoomID {
			return ErrNotInRoom
		}
		h.leave(c)
		return nil

	case EvInitiateAck:
		var p initiateAckPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return h.handOffInitiation(c, p.ToConnection)

	case EvSignal:
		var p signalPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return h.relaySignal(c, p.ToConnection, p.Payload)

	case EvCodeUpdate:
		var p codePayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return h.updateCode(c, p.RoomID, p.Content, p.Language)

	case EvWhiteboardUpdate:
		var p whiteboardPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return h.updateWhiteboard(c, p.RoomID, p.Shapes)

	case EvTimerUpdate:
		var p timerPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return h.updateTimer(c, p.RoomID, p.TimerState)

	case EvChatMessage:
		var p chatPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return h.broadcastMessage(c, p.RoomID, p.Body)

	case EvChatDM:
		var p chatPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return h.directMessage(c, p.RoomID, p.ToConnection, p.Body)

	case EvRaiseHand:
		var p reactionPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return h.raiseHand(c, p.RoomID)

	case EvEmojiReaction:
		var p reactionPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return h.reactEmoji(c, p.RoomID, p.Emoji)

	case EvRunCode:
		var p runPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return h.runCode(c, p.RoomID, p.Language, p.Code)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

// send queues msg for c. A client that cannot keep up is disconnected.
func (h *Hub) send(c *Client, msg []byte) {
	if c.closed {
		return
	}
	select {
	case c.Send <- msg:
	default:
		log.Printf("[HUB] send buffer full for %s, disconnecting", c.ID)
		h.drop(c)
	}
}

// broadcast sends msg to every member of room except the one given (nil for
// nobody).
func (h *Hub) broadcast(room *Room, msg []byte, except *Client) {
	for _, m := range room.Members() {
		if m == except {
			continue
		}
		h.send(m, msg)
	}
}

// memberRoom resolves the room named by an event and checks c belongs to it.
func (h *Hub) memberRoom(c *Client, roomID string) (*Room, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: missing roomId", ErrMalformed)
	}
	if c.RoomID != roomID {
		return nil, ErrNotInRoom
	}
	room, ok := h.rooms.Get(roomID)
	if !ok || !room.has(c) {
		return nil, ErrNotInRoom
	}
	return room, nil
}

// query runs fn on the hub goroutine and waits for it.
func (h *Hub) query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case h.queries <- func() { fn(); close(finished) }:
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// Once taken off the channel fn runs within the current loop iteration.
	<-finished
	return nil
}

// Rooms lists live rooms.
func (h *Hub) Rooms(ctx context.Context) ([]RoomSummary, error) {
	var out []RoomSummary
	err := h.query(ctx, func() { out = h.rooms.Summaries() })
	return out, err
}

// Snapshot returns the current state of one room.
func (h *Hub) Snapshot(ctx context.Context, roomID string) (RoomState, bool, error) {
	var (
		state RoomState
		found bool
	)
	err := h.query(ctx, func() {
		if room, ok := h.rooms.Get(roomID); ok {
			state, found = room.State(), true
		}
	})
	return state, found, err
}

// Wait blocks until Run has returned and every pending archive write is done.
func (h *Hub) Wait() {
	<-h.done
	h.archiving.Wait()
}

func (h *Hub) IceServers() []ice.Server {
	return h.iceServers
}
