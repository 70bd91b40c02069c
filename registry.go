/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// session is the per-connection state the server tracks outside any
// room: identity, display name, current room, and the liveness flag
// the heartbeat monitor clears each interval.
type session struct {
	client   *client
	playerID string
	name     string
	roomCode string // empty while not in a room
	alive    bool
}

// connRegistry maps live connections to sessions. It is owned by the
// server loop and never locked; all access is serialized through it.
type connRegistry struct {
	sessions map[*client]*session
	byPlayer map[string]*client
}

func newConnRegistry() *connRegistry {
	return &connRegistry{
		sessions: make(map[*client]*session),
		byPlayer: make(map[string]*client),
	}
}

func (cr *connRegistry) add(c *client) *session {
	s := &session{
		client:   c,
		playerID: c.id,
		alive:    true,
	}
	cr.sessions[c] = s
	cr.byPlayer[c.id] = c
	return s
}

func (cr *connRegistry) get(c *client) *session {
	return cr.sessions[c]
}

func (cr *connRegistry) clientFor(playerID string) *client {
	return cr.byPlayer[playerID]
}

func (cr *connRegistry) remove(c *client) {
	if s, ok := cr.sessions[c]; ok {
		delete(cr.byPlayer, s.playerID)
		delete(cr.sessions, c)
	}
}

func (cr *connRegistry) count() int {
	return len(cr.sessions)
}

// roomRegistry maps canonical room codes to rooms.
type roomRegistry struct {
	rooms map[string]*Room
}

func newRoomRegistry() *roomRegistry {
	return &roomRegistry{rooms: make(map[string]*Room)}
}

func (rr *roomRegistry) add(r *Room) {
	rr.rooms[r.Code] = r
}

func (rr *roomRegistry) get(code string) *Room {
	return rr.rooms[canonicalCode(code)]
}

func (rr *roomRegistry) remove(code string) {
	delete(rr.rooms, canonicalCode(code))
}

func (rr *roomRegistry) count() int {
	return len(rr.rooms)
}
