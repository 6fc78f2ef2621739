// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package collector

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"tab_monitor/internal/db"
)

// MsgActivity is the feed message type for an accepted record
const MsgActivity = "activity"

// FeedMessage is one message of the live feed
type FeedMessage struct {
	Type    string      `json:"type"`
	Payload db.Activity `json:"payload"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Broadcaster fans accepted records out to live feed clients
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool
	logger  *log.Logger
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster(logger *log.Logger) *Broadcaster {
	return &Broadcaster{
		clients: make(map[*client]bool),
		logger:  logger,
	}
}

// AddClient registers conn and starts its writer
func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	return c
}

// RemoveClient unregisters c and closes its connection
func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}

// Publish sends a to every client. Clients that cannot keep up are dropped.
func (b *Broadcaster) Publish(a db.Activity) {
	data, err := json.Marshal(FeedMessage{Type: MsgActivity, Payload: a})
	if err != nil {
		b.logger.Printf("Error: failed to marshal feed message: %v", err)
		return
	}

	// Sends happen under the read lock so RemoveClient cannot close a
	// channel mid-send
	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.logger.Printf("Warning: feed client too slow, disconnecting")
		b.RemoveClient(c)
	}
}

// ClientCount returns the number of connected clients
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
}
