/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"time"
)

// rateRule caps an action at max occurrences per fixed window. The
// counter drops to zero at the window boundary rather than sliding.
type rateRule struct {
	max    int
	window time.Duration
}

type bucket struct {
	count   int
	resetAt time.Time
}

// rateLimiter gates inbound messages twice: a server-wide counter over
// everything, and a per-connection counter per action. Per-connection
// state is keyed by the connection's assigned ID, not the socket, so
// the limiter is testable without a live connection.
type rateLimiter struct {
	global   rateRule
	rules    map[string]rateRule
	fallback rateRule

	globalBucket bucket
	buckets      map[string]map[string]*bucket // connection ID -> action -> window

	now func() time.Time
}

func newRateLimiter(cfg *Config) *rateLimiter {
	return &rateLimiter{
		global: rateRule{max: cfg.limitGlobal, window: cfg.limitGlobalWindow},
		rules: map[string]rateRule{
			"player-update":   {max: cfg.limitUpdates, window: time.Second},
			"send-attack":     {max: cfg.limitAttacks, window: time.Second},
			"create-room":     {max: cfg.limitRooms, window: cfg.limitWindow},
			"join-room":       {max: cfg.limitRooms, window: cfg.limitWindow},
			"host-navigation": {max: cfg.limitNavigation, window: cfg.limitWindow},
		},
		fallback: rateRule{max: cfg.limitDefault, window: cfg.limitWindow},
		buckets:  make(map[string]map[string]*bucket),
		now:      time.Now,
	}
}

// allowGlobal consumes one slot of the server-wide window.
func (rl *rateLimiter) allowGlobal() bool {
	now := rl.now()
	if !rl.globalBucket.resetAt.After(now) {
		rl.globalBucket = bucket{resetAt: now.Add(rl.global.window)}
	}
	if rl.globalBucket.count >= rl.global.max {
		return false
	}
	rl.globalBucket.count++
	return true
}

// allow consumes one slot of the (connection, action) window.
func (rl *rateLimiter) allow(connID, action string) bool {
	rule, ok := rl.rules[action]
	if !ok {
		rule = rl.fallback
	}

	actions, ok := rl.buckets[connID]
	if !ok {
		actions = make(map[string]*bucket)
		rl.buckets[connID] = actions
	}

	now := rl.now()
	b, ok := actions[action]
	if !ok || !b.resetAt.After(now) {
		b = &bucket{resetAt: now.Add(rule.window)}
		actions[action] = b
	}

	if b.count >= rule.max {
		return false
	}
	b.count++
	return true
}

// forget frees all per-connection state; called on disconnect.
func (rl *rateLimiter) forget(connID string) {
	delete(rl.buckets, connID)
}
