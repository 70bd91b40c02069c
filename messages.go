/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// Messages coming from clients. A single struct covers every inbound
// type; unused fields are simply absent on the wire.
type ClientMessage struct {
	Type       string         `json:"type"`                 // discriminator, always present
	PlayerName string         `json:"playerName,omitempty"` // create-room / join-room
	RoomCode   string         `json:"roomCode,omitempty"`   // join-room
	SongID     string         `json:"songId,omitempty"`     // select-song
	Difficulty string         `json:"difficulty,omitempty"` // select-song
	Health     *int           `json:"health,omitempty"`     // player-update
	Combo      *int           `json:"combo,omitempty"`      // player-update
	Score      *int           `json:"score,omitempty"`      // player-update / game-finished
	Seq        int64          `json:"seq,omitempty"`        // player-update, optional
	Attack     *AttackPayload `json:"attack,omitempty"`     // send-attack
	Navigation *Navigation    `json:"navigation,omitempty"` // host-navigation
}

// AttackPayload is the client's half of an attack: which arrow to
// inject and how far off the beat it lands.
type AttackPayload struct {
	Direction  string `json:"direction"`
	TimeOffset int    `json:"timeOffset"`
}

// AttackArrow is what the targeted opponent receives.
type AttackArrow struct {
	ID             string `json:"id"`
	Direction      string `json:"direction"`
	TimeOffsetMs   int    `json:"timeOffsetMs"`
	FromPlayerID   string `json:"fromPlayerId"`
	FromPlayerName string `json:"fromPlayerName"`
}

// Navigation is the host's position in the song-select UI, relayed so
// other clients can mirror it.
type Navigation struct {
	PackIndex  int    `json:"packIndex"`
	SongIndex  int    `json:"songIndex"`
	SongID     string `json:"songId,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// PlayerView is the broadcast-safe projection of a room member.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	IsReady   bool   `json:"isReady"`
	Health    int    `json:"health"`
	Combo     int    `json:"combo"`
	Score     int    `json:"score"`
	IsAlive   bool   `json:"isAlive"`
	Placement int    `json:"placement,omitempty"`
}

// RoomView is the full room snapshot sent on join and after mutations.
type RoomView struct {
	Code          string       `json:"code"`
	State         string       `json:"state"`
	MaxPlayers    int          `json:"maxPlayers"`
	SongID        string       `json:"songId,omitempty"`
	Difficulty    string       `json:"difficulty,omitempty"`
	GameStartTime int64        `json:"gameStartTime,omitempty"` // unix millis
	Players       []PlayerView `json:"players"`                 // join order
}

// RoomWelcomeMessage answers create-room and join-room.
type RoomWelcomeMessage struct {
	Type           string      `json:"type"` // "room-created" or "room-joined"
	Room           RoomView    `json:"room"`
	PlayerID       string      `json:"playerId"`
	HostNavigation *Navigation `json:"hostNavigation,omitempty"`
}

type RoomUpdatedMessage struct {
	Type string   `json:"type"` // "room-updated"
	Room RoomView `json:"room"`
}

type PlayerJoinedMessage struct {
	Type   string     `json:"type"` // "player-joined"
	Player PlayerView `json:"player"`
}

type PlayerLeftMessage struct {
	Type      string `json:"type"` // "player-left"
	PlayerID  string `json:"playerId"`
	NewHostID string `json:"newHostId,omitempty"`
}

type GameStartingMessage struct {
	Type      string `json:"type"`      // "game-starting"
	StartTime int64  `json:"startTime"` // unix millis
}

type GameStartedMessage struct {
	Type string `json:"type"` // "game-started"
}

type PlayerStateMessage struct {
	Type     string `json:"type"` // "player-state"
	PlayerID string `json:"playerId"`
	Health   int    `json:"health"`
	Combo    int    `json:"combo"`
	Score    int    `json:"score"`
}

type PlayerEliminatedMessage struct {
	Type      string `json:"type"` // "player-eliminated"
	PlayerID  string `json:"playerId"`
	Placement int    `json:"placement"`
}

type AttackReceivedMessage struct {
	Type   string      `json:"type"` // "attack-received"
	Attack AttackArrow `json:"attack"`
}

// Placement is one row of the final standings.
type Placement struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	Placement int    `json:"placement"`
	Score     int    `json:"score"`
	IsAlive   bool   `json:"isAlive"`
}

type GameEndedMessage struct {
	Type            string      `json:"type"` // "game-ended"
	FinalPlacements []Placement `json:"finalPlacements"`
}

type HostNavigationMessage struct {
	Type       string     `json:"type"` // "host-navigation"
	Navigation Navigation `json:"navigation"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type PingMessage struct {
	Type string `json:"type"` // "ping"
}

type PongMessage struct {
	Type string `json:"type"` // "pong"
}

type RoomExpiredMessage struct {
	Type    string `json:"type"` // "room-expired"
	Message string `json:"message"`
}

type ServerShutdownMessage struct {
	Type        string `json:"type"` // "server-shutdown"
	Message     string `json:"message"`
	ReconnectIn int    `json:"reconnectIn"` // suggested delay in seconds
}
