package handler

import (
	"floodguard-be/internal/pkg/logger"
	internalWS "floodguard-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// ChatHandler serves the streaming chat endpoint. Each connection carries
// one session; every client frame starts one turn.
type ChatHandler struct {
	hub    *internalWS.Hub
	turns  internalWS.TurnHandler
	logger logger.ILogger
}

func NewChatHandler(hub *internalWS.Hub, turns internalWS.TurnHandler, log logger.ILogger) *ChatHandler {
	return &ChatHandler{
		hub:    hub,
		turns:  turns,
		logger: log,
	}
}

func (h *ChatHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/chat", h.ServeWs)
}

// ServeWs upgrades the request and runs the connection until it closes.
// Credentials travel inside each frame, not in the handshake.
func (h *ChatHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("ChatHandler", "Starting chat connection", map[string]interface{}{"remote": conn.RemoteAddr().String()})
		internalWS.ServeWs(h.hub, conn, h.turns)
		h.logger.Info("ChatHandler", "Chat connection ended", map[string]interface{}{"remote": conn.RemoteAddr().String()})
	})(c)
}
