/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatEviction(t *testing.T) {
	s := newServer(testConfig())

	quiet := connectTestClient(s)
	active := connectTestClient(s)

	// First interval: everyone answered something since connecting, so
	// both survive, lose their flag, and receive a probe.
	s.checkHeartbeats()
	assert.Equal(t, 2, s.conns.count())

	for _, c := range []*client{quiet, active} {
		msgs := drain(c)
		require.Len(t, msgs, 1)
		_, ok := msgs[0].(PingMessage)
		assert.True(t, ok)
	}

	say(s, active, ClientMessage{Type: "ping"})
	drain(active)

	// Second interval: only the silent connection goes.
	s.checkHeartbeats()
	assert.Equal(t, 1, s.conns.count())
	assert.Nil(t, s.conns.get(quiet))
	assert.NotNil(t, s.conns.get(active))
}

func TestHeartbeatEvictionLeavesRoom(t *testing.T) {
	s := newServer(testConfig())
	host, guest, code := createTestRoom(t, s)

	s.checkHeartbeats()
	drain(host)
	drain(guest)

	say(s, host, ClientMessage{Type: "ping"})
	drain(host)

	s.checkHeartbeats()

	room := s.rooms.get(code)
	require.NotNil(t, room)
	assert.Equal(t, 1, room.playerCount())
	assert.Nil(t, room.player(guest.id))
}

func TestSweepRooms(t *testing.T) {
	t.Run("empty rooms are dropped", func(t *testing.T) {
		s := newServer(testConfig())
		s.rooms.add(newRoom("AAAAA", 4))

		s.sweepRooms()

		assert.Zero(t, s.rooms.count())
	})

	t.Run("idle rooms expire with notice", func(t *testing.T) {
		s := newServer(testConfig())
		host, guest, code := createTestRoom(t, s)

		room := s.rooms.get(code)
		room.lastActivity = time.Now().Add(-2 * s.cfg.roomTimeout)

		s.sweepRooms()

		assert.Nil(t, s.rooms.get(code))

		for _, c := range []*client{host, guest} {
			msgs := drain(c)
			require.Len(t, msgs, 1)
			expired, ok := msgs[0].(RoomExpiredMessage)
			require.True(t, ok)
			assert.Equal(t, "room-expired", expired.Type)

			sess := s.conns.get(c)
			require.NotNil(t, sess)
			assert.Empty(t, sess.roomCode, "members must be free to join elsewhere")
		}
	})

	t.Run("active rooms are untouched", func(t *testing.T) {
		s := newServer(testConfig())
		_, _, code := createTestRoom(t, s)

		s.sweepRooms()

		assert.NotNil(t, s.rooms.get(code))
	})
}

func TestStatsProbe(t *testing.T) {
	s := newServer(testConfig())
	createTestRoom(t, s)

	reply := make(chan statsView, 1)
	s.handle(statsMsg{reply: reply})

	view := <-reply
	assert.Equal(t, 1, view.Rooms)
	assert.Equal(t, 2, view.Connections)
}

func TestShutdownNotice(t *testing.T) {
	s := newServer(testConfig())
	c := connectTestClient(s)

	s.handle(noticeMsg{})
	s.handle(noticeMsg{})

	var notices int
	for _, m := range drain(c) {
		if sd, ok := m.(ServerShutdownMessage); ok {
			notices++
			assert.Equal(t, reconnectDelaySeconds, sd.ReconnectIn)
		}
	}
	assert.Equal(t, 1, notices, "repeated notices must not double up")
}

func TestConnectDuringShutdown(t *testing.T) {
	s := newServer(testConfig())
	s.handle(noticeMsg{})

	late := &client{id: uuid.NewString(), send: make(chan any, 64)}
	s.handle(connectMsg{client: late})

	assert.Zero(t, s.conns.count())

	msgs := drain(late)
	require.Len(t, msgs, 1)
	_, ok := msgs[0].(ServerShutdownMessage)
	assert.True(t, ok)
}

func TestMalformedMessage(t *testing.T) {
	s := newServer(testConfig())
	c := connectTestClient(s)

	s.handle(malformedMsg{client: c})

	msgs := drain(c)
	require.Len(t, msgs, 1)
	errMsg, ok := msgs[0].(ErrorMessage)
	require.True(t, ok)
	assert.Contains(t, errMsg.Message, "invalid")

	assert.NotNil(t, s.conns.get(c), "bad payloads must not cost the connection")
}

func TestUnknownMessageType(t *testing.T) {
	s := newServer(testConfig())
	c := connectTestClient(s)

	say(s, c, ClientMessage{Type: "moonwalk"})

	msgs := drain(c)
	require.Len(t, msgs, 1)
	errMsg, ok := msgs[0].(ErrorMessage)
	require.True(t, ok)
	assert.Contains(t, errMsg.Message, "unknown")
	assert.NotNil(t, s.conns.get(c))
}

func TestPingPong(t *testing.T) {
	s := newServer(testConfig())
	c := connectTestClient(s)

	say(s, c, ClientMessage{Type: "ping"})

	msgs := drain(c)
	require.Len(t, msgs, 1)
	_, ok := msgs[0].(PongMessage)
	assert.True(t, ok)
}

func TestSlowClientEviction(t *testing.T) {
	s := newServer(testConfig())

	c := &client{id: uuid.NewString(), send: make(chan any, 1)}
	s.handle(connectMsg{client: c})

	s.sendTo(c, PingMessage{Type: "ping"})
	s.sendTo(c, PingMessage{Type: "ping"}) // outbox full, marks for eviction
	require.Len(t, s.slow, 1)

	s.reap()

	assert.Empty(t, s.slow)
	assert.Nil(t, s.conns.get(c))
}

func TestTimerIgnoresStaleRoom(t *testing.T) {
	s := newServer(testConfig())

	// Fires against a room that no longer exists.
	s.handle(timerMsg{code: "GONEZ", expect: stateCountdown})

	// Fires against a room that has since moved on.
	_, _, code := createTestRoom(t, s)
	s.handle(timerMsg{code: code, expect: stateResults})
	assert.Equal(t, stateWaiting, s.rooms.get(code).State)
}

func TestDisconnectForgetsRateState(t *testing.T) {
	cfg := testConfig()
	cfg.limitRooms = 1
	s := newServer(cfg)

	c := connectTestClient(s)
	say(s, c, ClientMessage{Type: "create-room", PlayerName: "Ada"})
	drain(c)

	s.handle(disconnectMsg{client: c})

	// A fresh connection reusing the ID starts with clean buckets.
	again := &client{id: c.id, send: make(chan any, 64)}
	s.handle(connectMsg{client: again})
	say(s, again, ClientMessage{Type: "create-room", PlayerName: "Ada"})

	msgs := drain(again)
	require.Len(t, msgs, 1)
	welcome, ok := msgs[0].(RoomWelcomeMessage)
	require.True(t, ok)
	assert.Equal(t, "room-created", welcome.Type)
}

func TestServerShutdownSequence(t *testing.T) {
	s := newServer(testConfig())
	go s.run()

	c := &client{id: uuid.NewString(), send: make(chan any, 64)}
	s.post(connectMsg{client: c})

	s.Shutdown()

	select {
	case <-s.done:
	default:
		t.Fatal("loop should have exited")
	}

	var notified bool
	for _, m := range drain(c) {
		if _, ok := m.(ServerShutdownMessage); ok {
			notified = true
		}
	}
	assert.True(t, notified)

	// Safe to call again; returns immediately.
	s.Shutdown()
}
