package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs runs one chat connection until it closes.
func ServeWs(hub *Hub, c *websocket.Conn, turns TurnHandler) {
	client := newClient(hub, c, turns)

	// Bind early when the client names its session in the URL.
	if sid := c.Query("session_id"); sid != "" {
		client.bind(sid)
	}

	go client.writePump()
	client.readPump()
}
