/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxNameLength = 24

var attackDirections = []string{"left", "down", "up", "right"}

func (s *Server) sendError(c *client, text string) {
	s.sendTo(c, ErrorMessage{Type: "error", Message: text})
}

// roomOf resolves the session's room and its member record. Both are
// nil if the session is not currently in a room.
func (s *Server) roomOf(sess *session) (*Room, *Player) {
	if sess.roomCode == "" {
		return nil, nil
	}
	room := s.rooms.get(sess.roomCode)
	if room == nil {
		sess.roomCode = ""
		return nil, nil
	}
	return room, room.player(sess.playerID)
}

func validName(name string) bool {
	return name != "" && len(name) <= maxNameLength
}

func (s *Server) handleCreateRoom(sess *session, msg ClientMessage) {
	name := strings.TrimSpace(msg.PlayerName)
	if !validName(name) {
		s.sendError(sess.client, "invalid player name")
		return
	}
	if sess.roomCode != "" {
		s.sendError(sess.client, "already in a room")
		return
	}
	if s.rooms.count() >= s.cfg.maxRooms {
		s.sendError(sess.client, "server is at capacity, try again later")
		return
	}

	var code string
	for {
		code = newRoomCode(s.cfg.codeLength)
		if s.rooms.get(code) == nil {
			break
		}
	}

	room := newRoom(code, s.cfg.maxPlayers)
	room.addPlayer(sess.playerID, name)
	s.rooms.add(room)

	sess.name = name
	sess.roomCode = code

	s.sendTo(sess.client, RoomWelcomeMessage{
		Type:     "room-created",
		Room:     room.view(),
		PlayerID: sess.playerID,
	})

	logf(s.cfg, "ROOMS: %q created %s (%d rooms)", name, code, s.rooms.count())
}

func (s *Server) handleJoinRoom(sess *session, msg ClientMessage) {
	name := strings.TrimSpace(msg.PlayerName)
	if !validName(name) {
		s.sendError(sess.client, "invalid player name")
		return
	}
	if sess.roomCode != "" {
		s.sendError(sess.client, "already in a room")
		return
	}

	room := s.rooms.get(msg.RoomCode)
	switch {
	case room == nil:
		s.sendError(sess.client, "room not found")
		return
	case room.State != stateWaiting:
		s.sendError(sess.client, "game already in progress")
		return
	case room.playerCount() >= room.MaxPlayers:
		s.sendError(sess.client, "room is full")
		return
	case room.hasName(name):
		s.sendError(sess.client, "that name is already taken")
		return
	}

	player := room.addPlayer(sess.playerID, name)
	sess.name = name
	sess.roomCode = room.Code

	s.broadcastRoom(room, sess.playerID, PlayerJoinedMessage{
		Type:   "player-joined",
		Player: player.view(),
	})

	s.sendTo(sess.client, RoomWelcomeMessage{
		Type:           "room-joined",
		Room:           room.view(),
		PlayerID:       sess.playerID,
		HostNavigation: room.HostNavigation,
	})

	logf(s.cfg, "ROOMS: %q joined %s (%d/%d)", name, room.Code, room.playerCount(), room.MaxPlayers)
}

// leaveRoom detaches a session from its room, transferring the host
// role and re-evaluating the win condition as needed. Also runs on
// disconnect, so it tolerates sessions that were never in a room.
func (s *Server) leaveRoom(sess *session) {
	room, player := s.roomOf(sess)
	sess.roomCode = ""
	if room == nil || player == nil {
		return
	}

	wasContender := room.State == statePlaying && player.IsAlive

	_, newHostID := room.removePlayer(sess.playerID)

	if room.playerCount() == 0 {
		s.rooms.remove(room.Code)
		logf(s.cfg, "ROOMS: Deleted empty room %s (%d rooms)", room.Code, s.rooms.count())
		return
	}

	s.broadcastRoom(room, "", PlayerLeftMessage{
		Type:      "player-left",
		PlayerID:  sess.playerID,
		NewHostID: newHostID,
	})

	if wasContender {
		s.checkGameEnd(room)
	}
}

func (s *Server) handleToggleReady(sess *session) {
	room, player := s.roomOf(sess)
	if room == nil || player == nil {
		s.sendError(sess.client, "not in a room")
		return
	}
	if room.State != stateWaiting {
		s.sendError(sess.client, "cannot change readiness now")
		return
	}

	player.IsReady = !player.IsReady
	room.touch()

	s.broadcastRoom(room, "", RoomUpdatedMessage{Type: "room-updated", Room: room.view()})
}

func (s *Server) handleSelectSong(sess *session, msg ClientMessage) {
	room, player := s.roomOf(sess)
	if room == nil || player == nil {
		s.sendError(sess.client, "not in a room")
		return
	}
	if !player.IsHost {
		s.sendError(sess.client, "only the host can choose the song")
		return
	}
	if room.State != stateWaiting {
		s.sendError(sess.client, "cannot choose a song now")
		return
	}
	if msg.SongID == "" || msg.Difficulty == "" {
		s.sendError(sess.client, "song and difficulty are required")
		return
	}

	room.SongID = msg.SongID
	room.Difficulty = msg.Difficulty

	// A new selection voids earlier readiness.
	for _, p := range room.players {
		if !p.IsHost {
			p.IsReady = false
		}
	}
	room.touch()

	s.broadcastRoom(room, "", RoomUpdatedMessage{Type: "room-updated", Room: room.view()})
}

func (s *Server) handleStartGame(sess *session) {
	room, player := s.roomOf(sess)
	if room == nil || player == nil {
		s.sendError(sess.client, "not in a room")
		return
	}
	if !player.IsHost {
		s.sendError(sess.client, "only the host can start the game")
		return
	}
	if room.State != stateWaiting {
		s.sendError(sess.client, "game already in progress")
		return
	}
	if room.SongID == "" || room.Difficulty == "" {
		s.sendError(sess.client, "no song selected")
		return
	}
	if room.playerCount() < 2 {
		s.sendError(sess.client, "need at least two players")
		return
	}
	for _, p := range room.players {
		if !p.IsHost && !p.IsReady {
			s.sendError(sess.client, "not all players are ready")
			return
		}
	}

	room.State = stateCountdown
	room.ended = false
	room.eliminations = 0
	for _, p := range room.players {
		p.resetRound()
		room.tracking[p.ID] = newTrackRecord()
	}
	room.GameStartTime = time.Now().Add(s.cfg.startDelay)
	room.touch()

	s.broadcastRoom(room, "", GameStartingMessage{
		Type:      "game-starting",
		StartTime: room.GameStartTime.UnixMilli(),
	})

	s.scheduleTransition(room.Code, stateCountdown, time.Until(room.GameStartTime))

	logf(s.cfg, "GAME: Countdown started in %s (%s / %s)", room.Code, room.SongID, room.Difficulty)
}

// beginPlay runs when the countdown timer fires; the state guard in
// handleTimer has already confirmed the room is still counting down.
func (s *Server) beginPlay(room *Room) {
	// Members can leave during the countdown; a room below two players
	// returns to the lobby instead of playing out a solo game.
	if room.playerCount() < 2 {
		logf(s.cfg, "GAME: Countdown in %s aborted, too few players", room.Code)
		s.resetRoom(room)
		return
	}

	room.State = statePlaying
	room.touch()

	s.broadcastRoom(room, "", GameStartedMessage{Type: "game-started"})

	logf(s.cfg, "GAME: Playing in %s", room.Code)
}

func (s *Server) handlePlayerUpdate(sess *session, msg ClientMessage) {
	room, player := s.roomOf(sess)
	if room == nil || player == nil || room.State != statePlaying || !player.IsAlive {
		return
	}

	rec := room.tracking[player.ID]
	if rec == nil {
		return
	}

	if msg.Health == nil || msg.Combo == nil || msg.Score == nil {
		return
	}

	// The sequence gate runs before any value check: stale, duplicate,
	// and unnumbered updates are dropped outright.
	if msg.Seq <= 0 || msg.Seq <= rec.lastSeq {
		return
	}
	rec.lastSeq = msg.Seq

	health, combo, score := *msg.Health, *msg.Combo, *msg.Score
	if ok, reason := s.policy.check(rec, health, combo, score); !ok {
		// Correct silently; a cheater sees no difference between an
		// accepted and a clamped update.
		logf(s.cfg, "CHEAT: Clamped update from %q in %s: %s", player.Name, room.Code, reason)
		health, combo, score = s.policy.clamp(rec, health, combo, score)
	}

	player.Health = health
	player.Combo = combo
	player.Score = score
	rec.lastHealth = health
	rec.lastCombo = combo
	rec.lastScore = score
	room.touch()

	s.broadcastRoom(room, player.ID, PlayerStateMessage{
		Type:     "player-state",
		PlayerID: player.ID,
		Health:   health,
		Combo:    combo,
		Score:    score,
	})

	if health <= 0 {
		s.eliminate(room, player)
	}
}

func (s *Server) handlePlayerDied(sess *session) {
	room, player := s.roomOf(sess)
	if room == nil || player == nil || room.State != statePlaying || !player.IsAlive {
		return
	}
	s.eliminate(room, player)
}

// eliminate marks a player out, hands them the next placement from
// the bottom up, and re-evaluates the win condition.
func (s *Server) eliminate(room *Room, player *Player) {
	player.IsAlive = false
	player.Health = 0
	room.eliminations++
	player.Placement = room.playerCount() - room.eliminations + 1
	room.touch()

	s.broadcastRoom(room, "", PlayerEliminatedMessage{
		Type:      "player-eliminated",
		PlayerID:  player.ID,
		Placement: player.Placement,
	})

	s.checkGameEnd(room)
}

func (s *Server) handleAttack(sess *session, msg ClientMessage) {
	room, player := s.roomOf(sess)
	if room == nil || player == nil || room.State != statePlaying || !player.IsAlive {
		return
	}
	if msg.Attack == nil || !slices.Contains(attackDirections, msg.Attack.Direction) {
		return
	}
	if player.Combo < s.cfg.attackCost {
		return
	}

	player.Combo -= s.cfg.attackCost
	if rec := room.tracking[player.ID]; rec != nil {
		rec.lastCombo = player.Combo
	}
	room.touch()

	var targets []string
	for _, id := range room.order {
		if id != player.ID && room.players[id].IsAlive {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return
	}

	target := targets[randInt(len(targets))]
	c := s.conns.clientFor(target)
	if c == nil {
		return
	}

	s.sendTo(c, AttackReceivedMessage{
		Type: "attack-received",
		Attack: AttackArrow{
			ID:             uuid.NewString(),
			Direction:      msg.Attack.Direction,
			TimeOffsetMs:   msg.Attack.TimeOffset,
			FromPlayerID:   player.ID,
			FromPlayerName: player.Name,
		},
	})
}

func (s *Server) handleGameFinished(sess *session, msg ClientMessage) {
	room, player := s.roomOf(sess)
	if room == nil || player == nil || room.State != statePlaying {
		return
	}

	rec := room.tracking[player.ID]
	if rec == nil {
		return
	}

	claimed := rec.lastScore
	if msg.Score != nil {
		claimed = *msg.Score
	}

	final := s.policy.finalScore(rec, claimed)
	if final != claimed {
		logf(s.cfg, "CHEAT: Final score %d from %q in %s replaced with tracked %d", claimed, player.Name, room.Code, final)
	}

	player.Score = final
	player.Finished = true
	if player.IsAlive && player.Placement == 0 {
		player.Placement = 1
	}
	delete(room.tracking, player.ID)
	room.touch()

	s.broadcastRoom(room, player.ID, PlayerStateMessage{
		Type:     "player-state",
		PlayerID: player.ID,
		Health:   player.Health,
		Combo:    player.Combo,
		Score:    player.Score,
	})

	s.checkGameEnd(room)
}

func (s *Server) handleHostNavigation(sess *session, msg ClientMessage) {
	room, player := s.roomOf(sess)
	if room == nil || player == nil {
		s.sendError(sess.client, "not in a room")
		return
	}
	if !player.IsHost {
		s.sendError(sess.client, "only the host can navigate")
		return
	}
	if room.State != stateWaiting {
		s.sendError(sess.client, "cannot navigate now")
		return
	}
	if msg.Navigation == nil {
		s.sendError(sess.client, "missing navigation payload")
		return
	}

	room.HostNavigation = msg.Navigation
	room.touch()

	s.broadcastRoom(room, player.ID, HostNavigationMessage{
		Type:       "host-navigation",
		Navigation: *msg.Navigation,
	})
}

// checkGameEnd moves a playing room to results once at most one
// contender is alive, or no member's outcome is still open. The ended
// latch keeps racing triggers (a leave and a finish landing in the
// same window) from broadcasting results twice.
func (s *Server) checkGameEnd(room *Room) {
	if room.State != statePlaying || room.ended {
		return
	}
	if room.aliveCount() > 1 && room.undetermined() > 0 {
		return
	}
	s.endGame(room)
}

func (s *Server) endGame(room *Room) {
	room.ended = true
	room.State = stateResults
	room.touch()

	// Survivors take the top placements by score; the eliminated keep
	// the bottom-up placements assigned when they fell.
	rank := 1
	for _, p := range room.standings() {
		if p.IsAlive {
			p.Placement = rank
			rank++
		}
	}

	final := make([]Placement, 0, room.playerCount())
	for _, id := range room.order {
		p := room.players[id]
		final = append(final, Placement{
			PlayerID:  p.ID,
			Name:      p.Name,
			Placement: p.Placement,
			Score:     p.Score,
			IsAlive:   p.IsAlive,
		})
	}
	slices.SortStableFunc(final, func(a, b Placement) int {
		return a.Placement - b.Placement
	})

	clear(room.tracking)

	s.broadcastRoom(room, "", GameEndedMessage{
		Type:            "game-ended",
		FinalPlacements: final,
	})

	s.scheduleTransition(room.Code, stateResults, s.cfg.resultsDelay)

	logf(s.cfg, "GAME: Ended in %s", room.Code)
}

// resetRoom returns a room to the lobby after results have been
// shown; fired by the results timer under the same state guard as the
// countdown.
func (s *Server) resetRoom(room *Room) {
	room.State = stateWaiting
	room.SongID = ""
	room.Difficulty = ""
	room.GameStartTime = time.Time{}
	room.ended = false
	room.eliminations = 0
	clear(room.tracking)
	for _, p := range room.players {
		p.resetRound()
	}
	room.touch()

	s.broadcastRoom(room, "", RoomUpdatedMessage{Type: "room-updated", Room: room.view()})
}
