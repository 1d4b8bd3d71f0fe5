package session

import (
	"encoding/json"
	"sort"
	"time"
)

// Room is one live interview/compiler session. Only the hub goroutine
// touches it.
type Room struct {
	ID         string
	members    []*Client // join order
	Code       CodeSnapshot
	Whiteboard []json.RawMessage
	Timer      TimerState
	CreatedAt  time.Time
	// joins counts every accepted join, for the archive record.
	joins int
}

func newRoom(id string, now time.Time) *Room {
	return &Room{
		ID:         id,
		Code:       CodeSnapshot{Language: DefaultLanguage},
		Whiteboard: []json.RawMessage{},
		CreatedAt:  now,
	}
}

func (r *Room) add(c *Client) {
	r.members = append(r.members, c)
	r.joins++
}

// remove reports whether c was a member.
func (r *Room) remove(c *Client) bool {
	for i, m := range r.members {
		if m == c {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) has(c *Client) bool {
	for _, m := range r.members {
		if m == c {
			return true
		}
	}
	return false
}

func (r *Room) empty() bool {
	return len(r.members) == 0
}

// Members returns a copy so callers can iterate while the room changes.
func (r *Room) Members() []*Client {
	out := make([]*Client, len(r.members))
	copy(out, r.members)
	return out
}

func (r *Room) Roster() []Member {
	roster := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		roster = append(roster, Member{ConnectionID: m.ID, UserID: m.UserID})
	}
	return roster
}

func (r *Room) State() RoomState {
	shapes := make([]json.RawMessage, len(r.Whiteboard))
	copy(shapes, r.Whiteboard)
	return RoomState{
		RoomID:     r.ID,
		Roster:     r.Roster(),
		Code:       r.Code,
		Whiteboard: shapes,
		Timer:      r.Timer,
	}
}

// Registry maps room ids to live rooms. A room exists from its first join
// until its member set is empty again.
type Registry struct {
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

func (reg *Registry) Get(id string) (*Room, bool) {
	r, ok := reg.rooms[id]
	return r, ok
}

// GetOrCreate reports whether the room was created by this call.
func (reg *Registry) GetOrCreate(id string, now time.Time) (*Room, bool) {
	if r, ok := reg.rooms[id]; ok {
		return r, false
	}
	r := newRoom(id, now)
	reg.rooms[id] = r
	return r, true
}

func (reg *Registry) Remove(id string) {
	delete(reg.rooms, id)
}

func (reg *Registry) Len() int {
	return len(reg.rooms)
}

// Summaries lists rooms sorted by id.
func (reg *Registry) Summaries() []RoomSummary {
	out := make([]RoomSummary, 0, len(reg.rooms))
	for id, r := range reg.rooms {
		out = append(out, RoomSummary{RoomID: id, Members: len(r.members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}
