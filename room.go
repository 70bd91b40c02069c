/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"slices"
	"strings"
	"time"
)

// Room states. A room only ever advances waiting → countdown → playing
// → results → waiting, or is deleted while waiting.
const (
	stateWaiting   = "waiting"
	stateCountdown = "countdown"
	statePlaying   = "playing"
	stateResults   = "results"
)

const startingHealth = 100

// Player is one room membership. Round fields (health, combo, score,
// alive, finished, placement) are reset every time a game starts.
type Player struct {
	ID        string
	Name      string
	IsHost    bool
	IsReady   bool
	Health    int
	Combo     int
	Score     int
	IsAlive   bool
	Finished  bool
	Placement int
}

func (p *Player) resetRound() {
	p.IsReady = false
	p.Health = startingHealth
	p.Combo = 0
	p.Score = 0
	p.IsAlive = true
	p.Finished = false
	p.Placement = 0
}

// Room owns one match: its member set, the state machine, the song
// selection, and the server-side tracking records used to bound
// client-reported values during play.
type Room struct {
	Code       string
	MaxPlayers int
	State      string

	players map[string]*Player
	order   []string // playerIDs in join order

	SongID        string
	Difficulty    string
	GameStartTime time.Time

	HostNavigation *Navigation

	tracking     map[string]*trackRecord
	eliminations int
	ended        bool

	createdAt    time.Time
	lastActivity time.Time
}

func newRoom(code string, maxPlayers int) *Room {
	now := time.Now()
	return &Room{
		Code:         code,
		MaxPlayers:   maxPlayers,
		State:        stateWaiting,
		players:      make(map[string]*Player),
		tracking:     make(map[string]*trackRecord),
		createdAt:    now,
		lastActivity: now,
	}
}

func (r *Room) touch() {
	r.lastActivity = time.Now()
}

func (r *Room) player(id string) *Player {
	return r.players[id]
}

func (r *Room) playerCount() int {
	return len(r.players)
}

// addPlayer appends a member in join order. The first member becomes
// host. Callers are responsible for capacity and state checks.
func (r *Room) addPlayer(id, name string) *Player {
	p := &Player{
		ID:      id,
		Name:    name,
		IsHost:  len(r.players) == 0,
		Health:  startingHealth,
		IsAlive: true,
	}
	r.players[id] = p
	r.order = append(r.order, id)
	r.touch()
	return p
}

// removePlayer drops a member and, if the host left, promotes the
// oldest remaining member. Returns the removed player and the new
// host's ID, if a transfer happened.
func (r *Room) removePlayer(id string) (*Player, string) {
	p, ok := r.players[id]
	if !ok {
		return nil, ""
	}

	delete(r.players, id)
	delete(r.tracking, id)
	r.order = slices.DeleteFunc(r.order, func(o string) bool { return o == id })
	r.touch()

	// eliminations counts dead members still in the room; without this,
	// later bottom-up placements collide with the survivors' ranks.
	if !p.IsAlive && r.eliminations > 0 {
		r.eliminations--
	}

	newHostID := ""
	if p.IsHost && len(r.order) > 0 {
		heir := r.players[r.order[0]]
		heir.IsHost = true
		newHostID = heir.ID
	}

	return p, newHostID
}

func (r *Room) hasName(name string) bool {
	for _, p := range r.players {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func (r *Room) aliveCount() int {
	n := 0
	for _, p := range r.players {
		if p.IsAlive {
			n++
		}
	}
	return n
}

// undetermined counts members whose outcome is still open: alive and
// not yet finished with the song.
func (r *Room) undetermined() int {
	n := 0
	for _, p := range r.players {
		if p.IsAlive && !p.Finished {
			n++
		}
	}
	return n
}

// standings returns players sorted for final placement: survivors
// first, higher scores first, join order breaking ties.
func (r *Room) standings() []*Player {
	ranked := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		ranked = append(ranked, r.players[id])
	}
	slices.SortStableFunc(ranked, func(a, b *Player) int {
		switch {
		case a.IsAlive != b.IsAlive:
			if a.IsAlive {
				return -1
			}
			return 1
		default:
			return b.Score - a.Score
		}
	})
	return ranked
}

func (r *Room) view() RoomView {
	view := RoomView{
		Code:       r.Code,
		State:      r.State,
		MaxPlayers: r.MaxPlayers,
		SongID:     r.SongID,
		Difficulty: r.Difficulty,
		Players:    make([]PlayerView, 0, len(r.order)),
	}
	if !r.GameStartTime.IsZero() {
		view.GameStartTime = r.GameStartTime.UnixMilli()
	}
	for _, id := range r.order {
		view.Players = append(view.Players, r.players[id].view())
	}
	return view
}

func (p *Player) view() PlayerView {
	return PlayerView{
		ID:        p.ID,
		Name:      p.Name,
		IsHost:    p.IsHost,
		IsReady:   p.IsReady,
		Health:    p.Health,
		Combo:     p.Combo,
		Score:     p.Score,
		IsAlive:   p.IsAlive,
		Placement: p.Placement,
	}
}

// codeAlphabet is the 32-character set room codes are drawn from.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// randInt returns a uniform value in [0, n) from crypto/rand, using
// rejection sampling so no residue of the byte range is favored.
func randInt(n int) int {
	limit := 256 - (256 % n)
	var b [1]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		if int(b[0]) < limit {
			return int(b[0]) % n
		}
	}
}

// newRoomCode generates an uppercase code of the configured length.
// Lookups are case-insensitive; codes are stored canonically.
func newRoomCode(length int) string {
	out := make([]byte, length)
	for i := range out {
		out[i] = codeAlphabet[randInt(len(codeAlphabet))]
	}
	return string(out)
}

func canonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
