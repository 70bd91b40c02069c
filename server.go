/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"log"
	"os"
	"sync"
	"time"
)

const reconnectDelaySeconds = 10

// Everything that mutates game state arrives on a single inbox:
// socket reads, timer fires, heartbeat and sweep ticks, stats probes,
// and the shutdown phases. One message runs to completion before the
// next is dispatched, so rooms and registries need no locks.
type serverMsg interface{ isServerMsg() }

type connectMsg struct{ client *client }

type disconnectMsg struct{ client *client }

type inboundMsg struct {
	client *client
	msg    ClientMessage
}

// malformedMsg is posted by a read pump that received unparseable
// JSON. The connection stays open; only an error reply goes back.
type malformedMsg struct{ client *client }

// timerMsg carries a deferred room transition. expect is the state
// the room was in when the timer was scheduled; if the room has moved
// on (or vanished) by the time the timer fires, the fire is a no-op.
type timerMsg struct {
	code   string
	expect string
}

type statsMsg struct{ reply chan statsView }

// roomCheckMsg asks the loop whether a room code is registered.
type roomCheckMsg struct {
	code  string
	reply chan bool
}

type statsView struct {
	Rooms       int
	Connections int
}

// Shutdown phases, posted in order by Shutdown.
type noticeMsg struct{}

type closeMsg struct{}

type stopMsg struct{}

func (connectMsg) isServerMsg()    {}
func (disconnectMsg) isServerMsg() {}
func (inboundMsg) isServerMsg()    {}
func (malformedMsg) isServerMsg()  {}
func (timerMsg) isServerMsg()      {}
func (statsMsg) isServerMsg()      {}
func (roomCheckMsg) isServerMsg()  {}
func (noticeMsg) isServerMsg()     {}
func (closeMsg) isServerMsg()      {}
func (stopMsg) isServerMsg()       {}

type Server struct {
	cfg     *Config
	policy  cheatPolicy
	limiter *rateLimiter
	conns   *connRegistry
	rooms   *roomRegistry

	inbox chan serverMsg
	done  chan struct{}

	shuttingDown bool
	slow         []*client // clients with full outboxes, evicted after the current message

	stopOnce sync.Once
}

func newServer(cfg *Config) *Server {
	return &Server{
		cfg:     cfg,
		policy:  policyFromConfig(cfg),
		limiter: newRateLimiter(cfg),
		conns:   newConnRegistry(),
		rooms:   newRoomRegistry(),
		inbox:   make(chan serverMsg, 256),
		done:    make(chan struct{}),
	}
}

// post delivers a message to the loop unless the loop has exited.
func (s *Server) post(m serverMsg) {
	select {
	case s.inbox <- m:
	case <-s.done:
	}
}

func (s *Server) run() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("%s | FATAL: server loop panic: %v", time.Now().Format(logDate), r)
			os.Exit(1)
		}
	}()

	heartbeat := time.NewTicker(s.cfg.heartbeatInterval)
	defer heartbeat.Stop()

	sweep := time.NewTicker(s.cfg.sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case m := <-s.inbox:
			if _, stop := m.(stopMsg); stop {
				s.terminate()
				return
			}
			if _, notice := m.(noticeMsg); notice {
				heartbeat.Stop()
				sweep.Stop()
			}
			s.handle(m)
			s.reap()

		case <-heartbeat.C:
			s.checkHeartbeats()
			s.reap()

		case <-sweep.C:
			s.sweepRooms()
			s.reap()
		}
	}
}

func (s *Server) handle(m serverMsg) {
	switch msg := m.(type) {
	case connectMsg:
		s.handleConnect(msg.client)

	case disconnectMsg:
		s.handleDisconnect(msg.client)

	case inboundMsg:
		s.handleInbound(msg.client, msg.msg)

	case malformedMsg:
		if s.conns.get(msg.client) != nil {
			logf(s.cfg, "ERROR: Unparseable message from %s", msg.client.id)
			s.sendTo(msg.client, ErrorMessage{Type: "error", Message: "invalid message"})
		}

	case timerMsg:
		s.handleTimer(msg)

	case statsMsg:
		msg.reply <- statsView{
			Rooms:       s.rooms.count(),
			Connections: s.conns.count(),
		}

	case roomCheckMsg:
		msg.reply <- s.rooms.get(msg.code) != nil

	case noticeMsg:
		s.handleShutdownNotice()

	case closeMsg:
		s.handleShutdownClose()
	}
}

func (s *Server) handleConnect(c *client) {
	if s.shuttingDown {
		s.sendTo(c, ServerShutdownMessage{
			Type:        "server-shutdown",
			Message:     "server is shutting down",
			ReconnectIn: reconnectDelaySeconds,
		})
		c.shutdown()
		return
	}

	s.conns.add(c)
	logf(s.cfg, "CONNECT: %s (%d connected)", c.id, s.conns.count())
}

func (s *Server) handleDisconnect(c *client) {
	sess := s.conns.get(c)
	if sess == nil {
		return
	}

	s.leaveRoom(sess)
	s.limiter.forget(c.id)
	s.conns.remove(c)
	c.shutdown()

	logf(s.cfg, "DISCONNECT: %s (%d connected)", c.id, s.conns.count())
}

// handleInbound is the message router: liveness, rate-limit gates,
// then dispatch. Globally rate-limited messages are always dropped
// silently; per-action rejections only answer with an error for the
// low-frequency lobby actions, so update/attack floods cost nothing.
func (s *Server) handleInbound(c *client, msg ClientMessage) {
	sess := s.conns.get(c)
	if sess == nil {
		return
	}

	sess.alive = true

	if !s.limiter.allowGlobal() {
		return
	}

	if !s.limiter.allow(c.id, msg.Type) {
		switch msg.Type {
		case "create-room", "join-room", "host-navigation", "select-song", "start-game", "toggle-ready", "leave-room":
			s.sendTo(c, ErrorMessage{Type: "error", Message: "too many requests, slow down"})
		}
		return
	}

	switch msg.Type {
	case "ping":
		s.sendTo(c, PongMessage{Type: "pong"})
	case "create-room":
		s.handleCreateRoom(sess, msg)
	case "join-room":
		s.handleJoinRoom(sess, msg)
	case "leave-room":
		s.leaveRoom(sess)
	case "toggle-ready":
		s.handleToggleReady(sess)
	case "select-song":
		s.handleSelectSong(sess, msg)
	case "start-game":
		s.handleStartGame(sess)
	case "player-update":
		s.handlePlayerUpdate(sess, msg)
	case "player-died":
		s.handlePlayerDied(sess)
	case "send-attack":
		s.handleAttack(sess, msg)
	case "game-finished":
		s.handleGameFinished(sess, msg)
	case "host-navigation":
		s.handleHostNavigation(sess, msg)
	default:
		logf(s.cfg, "ERROR: Unknown message type %q from %s", msg.Type, c.id)
		s.sendTo(c, ErrorMessage{Type: "error", Message: "unknown message type"})
	}
}

func (s *Server) handleTimer(m timerMsg) {
	room := s.rooms.get(m.code)
	if room == nil || room.State != m.expect {
		// Scheduled against a state the room has since left; a stale
		// fire must not force the transition or broadcasts double up.
		return
	}

	switch m.expect {
	case stateCountdown:
		s.beginPlay(room)
	case stateResults:
		s.resetRoom(room)
	}
}

// scheduleTransition arms a timer that posts back into the loop, so
// the deferred body runs serialized with everything else.
func (s *Server) scheduleTransition(code, expect string, d time.Duration) {
	time.AfterFunc(d, func() {
		s.post(timerMsg{code: code, expect: expect})
	})
}

// sendTo queues a message on one connection's outbox. A full outbox
// marks the connection for eviction; nothing ever blocks the loop.
func (s *Server) sendTo(c *client, msg any) {
	select {
	case c.send <- msg:
	default:
		s.slow = append(s.slow, c)
	}
}

// broadcastRoom sends to every member of a room except the one named
// by skip (empty means everyone).
func (s *Server) broadcastRoom(room *Room, skip string, msg any) {
	for _, id := range room.order {
		if id == skip {
			continue
		}
		if c := s.conns.clientFor(id); c != nil {
			s.sendTo(c, msg)
		}
	}
}

func (s *Server) broadcastAll(msg any) {
	for c := range s.conns.sessions {
		s.sendTo(c, msg)
	}
}

// reap disconnects clients whose outboxes overflowed during the last
// message. Evicting can broadcast player-left and overflow further
// clients, so it drains until quiet.
func (s *Server) reap() {
	for len(s.slow) > 0 {
		c := s.slow[0]
		s.slow = s.slow[1:]
		logf(s.cfg, "EVICT: %s (outbox full)", c.id)
		s.handleDisconnect(c)
	}
}

// checkHeartbeats evicts every connection that stayed silent for a
// whole interval, then clears the flags and probes the rest.
func (s *Server) checkHeartbeats() {
	var dead []*client
	for c, sess := range s.conns.sessions {
		if !sess.alive {
			dead = append(dead, c)
		}
	}

	for _, c := range dead {
		logf(s.cfg, "EVICT: %s (no heartbeat)", c.id)
		s.handleDisconnect(c)
	}

	probe := PingMessage{Type: "ping"}
	for c, sess := range s.conns.sessions {
		sess.alive = false
		s.sendTo(c, probe)
	}
}

// sweepRooms deletes empty rooms immediately and notifies then
// deletes rooms idle past the configured threshold.
func (s *Server) sweepRooms() {
	for code, room := range s.rooms.rooms {
		switch {
		case room.playerCount() == 0:
			s.rooms.remove(code)
			logf(s.cfg, "ROOMS: Swept empty room %s", code)

		case time.Since(room.lastActivity) > s.cfg.roomTimeout:
			s.broadcastRoom(room, "", RoomExpiredMessage{
				Type:    "room-expired",
				Message: "room closed due to inactivity",
			})
			s.deleteRoom(room)
			logf(s.cfg, "ROOMS: Swept inactive room %s", code)
		}
	}
}

// deleteRoom unlinks every member's session before dropping the room.
func (s *Server) deleteRoom(room *Room) {
	for _, id := range room.order {
		if c := s.conns.clientFor(id); c != nil {
			if sess := s.conns.get(c); sess != nil {
				sess.roomCode = ""
			}
		}
	}
	s.rooms.remove(room.Code)
}

// Shutdown drains the server: notify, grace, graceful close, grace,
// force. Safe to call more than once; later calls wait on the first.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		watchdog := time.AfterFunc(s.cfg.shutdownLimit, func() {
			log.Printf("%s | FATAL: shutdown exceeded %s, exiting", time.Now().Format(logDate), s.cfg.shutdownLimit)
			os.Exit(1)
		})
		defer watchdog.Stop()

		s.post(noticeMsg{})
		time.Sleep(s.cfg.shutdownNotice)

		s.post(closeMsg{})
		time.Sleep(s.cfg.shutdownGrace)

		s.post(stopMsg{})
	})
	<-s.done
}

func (s *Server) handleShutdownNotice() {
	if s.shuttingDown {
		return
	}
	s.shuttingDown = true

	logf(s.cfg, "STOP: Notifying %d connections", s.conns.count())
	s.broadcastAll(ServerShutdownMessage{
		Type:        "server-shutdown",
		Message:     "server is shutting down",
		ReconnectIn: reconnectDelaySeconds,
	})
}

func (s *Server) handleShutdownClose() {
	for c := range s.conns.sessions {
		c.closeGracefully()
	}
}

func (s *Server) terminate() {
	for c := range s.conns.sessions {
		c.shutdown()
		s.conns.remove(c)
	}
	logf(s.cfg, "STOP: Server loop stopped")
	close(s.done)
}

// roomExists answers registry lookups from outside the loop. A timed
// out or stopped loop reads as absent.
func (s *Server) roomExists(code string, timeout time.Duration) bool {
	reply := make(chan bool, 1)
	s.post(roomCheckMsg{code: code, reply: reply})
	select {
	case ok := <-reply:
		return ok
	case <-time.After(timeout):
		return false
	case <-s.done:
		return false
	}
}

// stats answers the healthz probe from outside the loop.
func (s *Server) stats(timeout time.Duration) (statsView, bool) {
	reply := make(chan statsView, 1)
	s.post(statsMsg{reply: reply})
	select {
	case view := <-reply:
		return view, true
	case <-time.After(timeout):
		return statsView{}, false
	case <-s.done:
		return statsView{}, false
	}
}
