/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	cfg := testConfig()
	cfg.port = 8080
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults pass", mutate: func(*Config) {}},
		{name: "port too low", mutate: func(c *Config) { c.port = 0 }, wantErr: "port"},
		{name: "port too high", mutate: func(c *Config) { c.port = 70000 }, wantErr: "port"},
		{name: "cert without key", mutate: func(c *Config) { c.tlsCert = "cert.pem" }, wantErr: "tls"},
		{name: "key without cert", mutate: func(c *Config) { c.tlsKey = "key.pem" }, wantErr: "tls"},
		{name: "cert and key together pass", mutate: func(c *Config) {
			c.tlsCert = "cert.pem"
			c.tlsKey = "key.pem"
		}},
		{name: "code too short", mutate: func(c *Config) { c.codeLength = 3 }, wantErr: "code length"},
		{name: "code too long", mutate: func(c *Config) { c.codeLength = 13 }, wantErr: "code length"},
		{name: "solo rooms rejected", mutate: func(c *Config) { c.maxPlayers = 1 }, wantErr: "player cap"},
		{name: "oversized rooms rejected", mutate: func(c *Config) { c.maxPlayers = 17 }, wantErr: "player cap"},
		{name: "zero room cap", mutate: func(c *Config) { c.maxRooms = 0 }, wantErr: "room cap"},
		{name: "free attacks rejected", mutate: func(c *Config) { c.attackCost = 0 }, wantErr: "attack cost"},
		{name: "tolerance above hundred", mutate: func(c *Config) { c.scoreTolerance = 101 }, wantErr: "tolerance"},
		{name: "zero combo step", mutate: func(c *Config) { c.comboStep = 0 }, wantErr: "deltas"},
		{name: "shutdown limit too tight", mutate: func(c *Config) {
			c.shutdownNotice = 5 * time.Second
			c.shutdownGrace = 6 * time.Second
			c.shutdownLimit = 10 * time.Second
		}, wantErr: "shutdown-limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigScheme(t *testing.T) {
	cfg := validTestConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert = "cert.pem"
	cfg.tlsKey = "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}
