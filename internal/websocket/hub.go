package websocket

import (
	"sync"

	"floodguard-be/internal/pkg/logger"
)

// Hub tracks the live chat connections by session id and the turns in
// flight. A session keeps its id across reconnects, so the in-flight turn
// is keyed by session rather than by connection.
type Hub struct {
	// Live connections: SessionID -> Client. A reconnect replaces the entry.
	clients map[string]*Client

	// Sessions with a turn in flight.
	turns map[string]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	mu sync.RWMutex

	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]*Client),
		turns:      make(map[string]struct{}),
		logger:     log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = client
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.SessionID]; ok && current == client {
				delete(h.clients, client.SessionID)
				h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"session_id": client.SessionID})
			}
			h.mu.Unlock()
		}
	}
}

// BeginTurn claims the session's single turn slot. It returns false when a
// turn is already running for the session.
func (h *Hub) BeginTurn(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, busy := h.turns[sessionID]; busy {
		return false
	}
	h.turns[sessionID] = struct{}{}
	return true
}

// EndTurn releases the session's turn slot.
func (h *Hub) EndTurn(sessionID string) {
	h.mu.Lock()
	delete(h.turns, sessionID)
	h.mu.Unlock()
}

// Connected reports whether a live connection is registered for the session.
func (h *Hub) Connected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[sessionID]
	return ok
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
