/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const maxMessageBytes = 4096

// client is one live duplex channel. It owns no game semantics: the
// server loop keys everything off the ID assigned here at accept
// time, and talks back through the send mailbox.
type client struct {
	id   string
	conn *websocket.Conn // nil for loop-driven tests
	send chan any
	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan any, 32),
	}
}

// shutdown force-closes the connection and its mailbox. Safe to call
// repeatedly; only the loop calls it, always after deregistration.
func (c *client) shutdown() {
	c.once.Do(func() { close(c.send) })
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// closeGracefully sends a close frame and leaves the teardown to the
// peer; the read pump reports the disconnect when the peer answers.
func (c *client) closeGracefully() {
	if c.conn == nil {
		return
	}
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		deadline,
	)
}

func (c *client) readPump(s *Server) {
	defer func() {
		s.post(disconnectMsg{client: c})
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageBytes)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Unparseable payloads answer with an error but do not
			// cost the client its connection.
			s.post(malformedMsg{client: c})
			continue
		}

		s.post(inboundMsg{client: c, msg: msg})
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}

	// Mailbox closed by the loop: say goodbye properly.
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
}

func originAllowed(cfg *Config, origin string) bool {
	if len(cfg.origins) == 0 {
		return true
	}
	for _, allowed := range cfg.origins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func serveWebsocket(cfg *Config, s *Server) httprouter.Handle {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(cfg, r.Header.Get("Origin"))
		},
	}

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Upgrade from %s failed: %v", realIP(r), err)
			return
		}

		c := newClient(conn)
		s.post(connectMsg{client: c})

		go c.writePump()
		c.readPump(s)
	}
}
