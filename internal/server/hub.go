package server

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lights-controller/internal/core"
	"lights-controller/internal/logging"
	"lights-controller/internal/metrics"
)

const writeWait = 5 * time.Second

// client serialises writes to one websocket. The hub and the connection's
// reader both write to it.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(data)
}

// Hub fans AppState snapshots out to every connected websocket client.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	log        zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		log:        logging.Component("hub"),
	}
}

// Run owns the client set until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.conn.Close()
				delete(h.clients, c)
			}
			metrics.SetClients(0)
			return
		case c := <-h.register:
			h.clients[c] = true
			metrics.SetClients(len(h.clients))
			h.log.Info().Str("remote", c.conn.RemoteAddr().String()).Msg("websocket client connected")
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.conn.Close()
				metrics.SetClients(len(h.clients))
				h.log.Info().Str("remote", c.conn.RemoteAddr().String()).Msg("websocket client disconnected")
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				if err := c.write(msg); err != nil {
					h.log.Warn().Err(err).Msg("broadcast failed, dropping client")
					c.conn.Close()
					delete(h.clients, c)
					metrics.SetClients(len(h.clients))
				}
			}
		}
	}
}

// Broadcast sends a pre-encoded message to all clients. It returns false if
// the hub has stopped.
func (h *Hub) Broadcast(msg []byte) bool {
	select {
	case h.broadcast <- msg:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) add(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Follow broadcasts every new AppState published on watch. Consecutive
// identical snapshots, such as those of a static mode, are sent once.
func (h *Hub) Follow(ctx context.Context, watch *core.StateWatch) {
	var version uint64
	var last []byte
	for {
		state, v, err := watch.Wait(ctx, version)
		if err != nil {
			return
		}
		version = v

		data, err := json.Marshal(state)
		if err != nil {
			h.log.Error().Err(err).Msg("encode app state")
			continue
		}
		if bytes.Equal(data, last) {
			continue
		}
		last = data
		if !h.Broadcast(data) {
			return
		}
	}
}
