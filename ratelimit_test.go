/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testLimiter() (*rateLimiter, *time.Time) {
	now := time.Unix(1000, 0)
	rl := &rateLimiter{
		global:   rateRule{max: 100, window: time.Second},
		fallback: rateRule{max: 3, window: time.Second},
		rules: map[string]rateRule{
			"player-update": {max: 5, window: time.Second},
		},
		buckets: make(map[string]map[string]*bucket),
		now:     func() time.Time { return now },
	}
	return rl, &now
}

func TestRateLimiterPerAction(t *testing.T) {
	t.Run("capped action rejects the extra call", func(t *testing.T) {
		rl, _ := testLimiter()

		for i := 0; i < 5; i++ {
			assert.True(t, rl.allow("conn-1", "player-update"), "call %d should pass", i+1)
		}
		assert.False(t, rl.allow("conn-1", "player-update"), "sixth call should be rejected")
	})

	t.Run("counter resets at the window boundary", func(t *testing.T) {
		rl, now := testLimiter()

		for i := 0; i < 5; i++ {
			rl.allow("conn-1", "player-update")
		}
		assert.False(t, rl.allow("conn-1", "player-update"))

		*now = now.Add(time.Second)
		assert.True(t, rl.allow("conn-1", "player-update"), "fresh window should admit again")
	})

	t.Run("connections are counted independently", func(t *testing.T) {
		rl, _ := testLimiter()

		for i := 0; i < 5; i++ {
			rl.allow("conn-1", "player-update")
		}
		assert.False(t, rl.allow("conn-1", "player-update"))
		assert.True(t, rl.allow("conn-2", "player-update"))
	})

	t.Run("actions are counted independently", func(t *testing.T) {
		rl, _ := testLimiter()

		for i := 0; i < 5; i++ {
			rl.allow("conn-1", "player-update")
		}
		assert.False(t, rl.allow("conn-1", "player-update"))
		assert.True(t, rl.allow("conn-1", "send-attack"))
	})

	t.Run("unlisted actions use the fallback rule", func(t *testing.T) {
		rl, _ := testLimiter()

		for i := 0; i < 3; i++ {
			assert.True(t, rl.allow("conn-1", "toggle-ready"))
		}
		assert.False(t, rl.allow("conn-1", "toggle-ready"))
	})
}

func TestRateLimiterGlobal(t *testing.T) {
	rl, now := testLimiter()
	rl.global = rateRule{max: 2, window: time.Second}

	assert.True(t, rl.allowGlobal())
	assert.True(t, rl.allowGlobal())
	assert.False(t, rl.allowGlobal())

	*now = now.Add(time.Second)
	assert.True(t, rl.allowGlobal())
}

func TestRateLimiterForget(t *testing.T) {
	rl, _ := testLimiter()

	for i := 0; i < 5; i++ {
		rl.allow("conn-1", "player-update")
	}
	assert.False(t, rl.allow("conn-1", "player-update"))

	rl.forget("conn-1")
	assert.True(t, rl.allow("conn-1", "player-update"), "state should be fresh after forget")
	assert.Empty(t, rl.buckets["conn-2"])
}

func TestNewRateLimiterTable(t *testing.T) {
	cfg := &Config{
		limitGlobal:       2000,
		limitGlobalWindow: time.Second,
		limitDefault:      20,
		limitWindow:       5 * time.Second,
		limitUpdates:      40,
		limitAttacks:      10,
		limitRooms:        5,
		limitNavigation:   10,
	}

	rl := newRateLimiter(cfg)

	assert.Equal(t, rateRule{max: 40, window: time.Second}, rl.rules["player-update"])
	assert.Equal(t, rateRule{max: 10, window: time.Second}, rl.rules["send-attack"])
	assert.Equal(t, rateRule{max: 5, window: 5 * time.Second}, rl.rules["create-room"])
	assert.Equal(t, rateRule{max: 5, window: 5 * time.Second}, rl.rules["join-room"])
	assert.Equal(t, rateRule{max: 20, window: 5 * time.Second}, rl.fallback)
	assert.Equal(t, rateRule{max: 2000, window: time.Second}, rl.global)
}
