// Package stream pushes bounty and reputation lifecycle events to connected
// dashboard clients over websockets.
package stream

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/quickgig/backend/internal/events"
	"github.com/quickgig/backend/internal/metrics"
)

// Hub manages websocket connections and broadcasts bus events to all of them.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan *events.CloudEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	metrics    *metrics.Metrics
	logger     *log.Logger
}

// NewHub creates a websocket hub
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan *events.CloudEvent, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Dashboard origin filtering happens at the edge
			},
		},
		metrics: m,
		logger:  log.New(log.Writer(), "[STREAM] ", log.LstdFlags),
	}
}

// Run starts the hub loop. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetStreamClients(count)
			h.logger.Printf("📡 Client connected (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetStreamClients(count)
			h.logger.Printf("📡 Client disconnected (total: %d)", count)

		case event := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if err := client.WriteJSON(event); err != nil {
					h.logger.Printf("Write error, dropping client: %v", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.metrics.SetStreamClients(len(h.clients))
			h.mu.Unlock()
		}
	}
}

// Bridge subscribes the hub to every event on the bus and forwards them to
// connected clients. Call in a goroutine.
func (h *Hub) Bridge(bus *events.EventBus) {
	ch := bus.Subscribe()
	for event := range ch {
		select {
		case h.broadcast <- event:
		default:
			// Broadcast queue full, drop rather than block the bus
		}
	}
}

// HandleWebSocket upgrades the request and registers the connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("Upgrade error: %v", err)
		return
	}

	h.register <- conn

	// Drain reads so pings/closes are processed; unregister on error.
	go func() {
		defer func() {
			h.unregister <- conn
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
