// Package ws fans tune events out to WebSocket clients such as a voice bridge.
// Every connected client receives each event; stale connections are dropped
// by the ping keepalive.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"atc_trmnl/internal/models"
)

const (
	pingPeriod   = 20 * time.Second
	readDeadline = 60 * time.Second
	writeTimeout = 3 * time.Second
)

// ErrBroadcastFull is returned when the broadcast queue cannot take another message
var ErrBroadcastFull = errors.New("broadcast queue full, message dropped")

// Envelope wraps every message sent to clients
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub owns the client set. Register, unregister and broadcast go through
// channels consumed by Run, so the set is only touched by one goroutine.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	upgrader   websocket.Upgrader
	connected  atomic.Int64
}

// NewHub allocates a hub. Call Run in a goroutine to start the event loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn, 16),
		unregister: make(chan *websocket.Conn, 16),
		broadcast:  make(chan []byte, 256),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

// Run processes registrations, broadcasts and keepalive pings until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.connected.Store(int64(len(h.clients)))
			slog.Info("WebSocket client connected", "remote", c.RemoteAddr().String(), "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					slog.Warn("Dropping WebSocket client after write failure", "remote", c.RemoteAddr().String(), "error", err)
					h.drop(c)
				}
			}

		case <-ping.C:
			for c := range h.clients {
				_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *websocket.Conn) {
	delete(h.clients, c)
	h.connected.Store(int64(len(h.clients)))
	_ = c.Close()
}

// Handler upgrades incoming requests and registers the connection with the hub
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		h.register <- conn

		go func() {
			defer func() { h.unregister <- conn }()
			_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
			conn.SetPongHandler(func(string) error {
				_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
				return nil
			})

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
}

// BroadcastJSON marshals v and queues it for every client without blocking
func (h *Hub) BroadcastJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast: %w", err)
	}
	select {
	case h.broadcast <- b:
		return nil
	default:
		return ErrBroadcastFull
	}
}

// Publish sends a tune event to every client
func (h *Hub) Publish(ev *models.TuneEvent) error {
	return h.BroadcastJSON(Envelope{Type: "tune", Data: ev})
}
