/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomCode(t *testing.T) {
	t.Run("codes have the requested length and alphabet", func(t *testing.T) {
		for _, length := range []int{4, 5, 8} {
			for i := 0; i < 100; i++ {
				code := newRoomCode(length)
				assert.Len(t, code, length)
				for _, r := range code {
					assert.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected rune %q in %q", r, code)
				}
			}
		}
	})

	t.Run("codes do not repeat in a small sample", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			code := newRoomCode(8)
			assert.False(t, seen[code], "duplicate code %s", code)
			seen[code] = true
		}
	})

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		rr := newRoomRegistry()
		room := newRoom("BRAVO", 4)
		rr.add(room)

		assert.Same(t, room, rr.get("bravo"))
		assert.Same(t, room, rr.get(" Bravo "))
		assert.Nil(t, rr.get("tango"))
	})
}

func TestRoomMembership(t *testing.T) {
	t.Run("first member becomes host", func(t *testing.T) {
		room := newRoom("AAAAA", 4)

		first := room.addPlayer("p1", "Ada")
		second := room.addPlayer("p2", "Brin")

		assert.True(t, first.IsHost)
		assert.False(t, second.IsHost)
		assert.Equal(t, 2, room.playerCount())
		assert.Equal(t, []string{"p1", "p2"}, room.order)
	})

	t.Run("host transfer to oldest remaining member", func(t *testing.T) {
		room := newRoom("AAAAA", 4)
		room.addPlayer("p1", "Ada")
		room.addPlayer("p2", "Brin")
		room.addPlayer("p3", "Cole")

		removed, newHostID := room.removePlayer("p1")

		require.NotNil(t, removed)
		assert.Equal(t, "p2", newHostID)
		assert.True(t, room.player("p2").IsHost)
		assert.False(t, room.player("p3").IsHost)

		hosts := 0
		for _, p := range room.players {
			if p.IsHost {
				hosts++
			}
		}
		assert.Equal(t, 1, hosts)
	})

	t.Run("removing a non-host transfers nothing", func(t *testing.T) {
		room := newRoom("AAAAA", 4)
		room.addPlayer("p1", "Ada")
		room.addPlayer("p2", "Brin")

		_, newHostID := room.removePlayer("p2")

		assert.Empty(t, newHostID)
		assert.True(t, room.player("p1").IsHost)
	})

	t.Run("removing an absent player is a no-op", func(t *testing.T) {
		room := newRoom("AAAAA", 4)
		room.addPlayer("p1", "Ada")

		removed, newHostID := room.removePlayer("missing")

		assert.Nil(t, removed)
		assert.Empty(t, newHostID)
		assert.Equal(t, 1, room.playerCount())
	})

	t.Run("names collide case-insensitively", func(t *testing.T) {
		room := newRoom("AAAAA", 4)
		room.addPlayer("p1", "Ada")

		assert.True(t, room.hasName("ada"))
		assert.True(t, room.hasName("ADA"))
		assert.False(t, room.hasName("Brin"))
	})
}

func TestRoomStandings(t *testing.T) {
	room := newRoom("AAAAA", 4)
	a := room.addPlayer("p1", "Ada")
	b := room.addPlayer("p2", "Brin")
	c := room.addPlayer("p3", "Cole")

	a.Score = 5000
	a.IsAlive = false
	b.Score = 3000
	c.Score = 9000

	ranked := room.standings()

	require.Len(t, ranked, 3)
	// Survivors first by score, then the fallen.
	assert.Equal(t, "p3", ranked[0].ID)
	assert.Equal(t, "p2", ranked[1].ID)
	assert.Equal(t, "p1", ranked[2].ID)
}

func TestRoomView(t *testing.T) {
	room := newRoom("AAAAA", 4)
	room.addPlayer("p1", "Ada")
	room.addPlayer("p2", "Brin")
	room.SongID = "neon-cadence"
	room.Difficulty = "expert"

	view := room.view()

	assert.Equal(t, "AAAAA", view.Code)
	assert.Equal(t, stateWaiting, view.State)
	assert.Equal(t, "neon-cadence", view.SongID)
	require.Len(t, view.Players, 2)
	assert.Equal(t, "Ada", view.Players[0].Name)
	assert.True(t, view.Players[0].IsHost)
	assert.Equal(t, startingHealth, view.Players[1].Health)
}

func TestRoundReset(t *testing.T) {
	room := newRoom("AAAAA", 4)
	p := room.addPlayer("p1", "Ada")

	p.IsReady = true
	p.Health = 0
	p.Combo = 50
	p.Score = 12345
	p.IsAlive = false
	p.Finished = true
	p.Placement = 2

	p.resetRound()

	assert.False(t, p.IsReady)
	assert.Equal(t, startingHealth, p.Health)
	assert.Zero(t, p.Combo)
	assert.Zero(t, p.Score)
	assert.True(t, p.IsAlive)
	assert.False(t, p.Finished)
	assert.Zero(t, p.Placement)
}
