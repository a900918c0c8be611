package websocket

import (
	"context"
	"errors"
	"time"

	"floodguard-be/pkg/protocol"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

const (
	msgInvalidFrame = "Invalid message format"
	msgTurnBusy     = "A response is still in progress. Please wait for it to finish."
)

var errConnectionClosed = errors.New("websocket: connection closed")

// TurnHandler answers one client frame, writing events through sink.
type TurnHandler interface {
	HandleTurn(ctx context.Context, frame protocol.ClientFrame, sink protocol.Sink) error
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// SessionID is taken from the first frame, or generated when the client
	// sends none. Reconnects with the same id replace this client in the hub.
	SessionID string

	// Buffered channel of outbound frames. Each entry is one websocket
	// message.
	Send chan []byte

	turns TurnHandler
	done  chan struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, turns TurnHandler) *Client {
	return &Client{
		Hub:   hub,
		Conn:  conn,
		Send:  make(chan []byte, sendBuffer),
		turns: turns,
		done:  make(chan struct{}),
	}
}

// sink queues one event for the write pump. It fails once the connection
// is gone, which ends the turn writing to it.
func (c *Client) sink(ev protocol.Event) error {
	data, err := protocol.EncodeEvent(ev)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errConnectionClosed
	default:
	}
	select {
	case c.Send <- data:
		return nil
	case <-c.done:
		return errConnectionClosed
	}
}

// bind registers the client under sessionID the first time it is seen.
func (c *Client) bind(sessionID string) {
	if c.SessionID == sessionID {
		return
	}
	if c.SessionID != "" {
		c.Hub.unregister <- c
	}
	c.SessionID = sessionID
	c.Hub.register <- c
}

// readPump reads client frames and starts one turn per frame.
func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		close(c.done)
		if c.SessionID != "" {
			c.Hub.unregister <- c
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Hub.logger.Warn("Client", "Unexpected close", map[string]interface{}{"session_id": c.SessionID, "error": err.Error()})
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))

		frame, err := protocol.DecodeClientFrame(data)
		if err != nil {
			c.Hub.logger.Warn("Client", "Malformed client frame", map[string]interface{}{"session_id": c.SessionID, "error": err.Error()})
			_ = c.sink(protocol.ErrorEvent{Content: msgInvalidFrame})
			continue
		}
		if frame.SessionID == "" {
			frame.SessionID = c.SessionID
			if frame.SessionID == "" {
				frame.SessionID = uuid.NewString()
			}
		}
		c.bind(frame.SessionID)

		if !c.Hub.BeginTurn(frame.SessionID) {
			_ = c.sink(protocol.ErrorEvent{Content: msgTurnBusy})
			continue
		}
		go c.runTurn(ctx, frame)
	}
}

func (c *Client) runTurn(ctx context.Context, frame protocol.ClientFrame) {
	defer c.Hub.EndTurn(frame.SessionID)
	start := time.Now()
	if err := c.turns.HandleTurn(ctx, frame, c.sink); err != nil {
		c.Hub.logger.Warn("Client", "Turn aborted", map[string]interface{}{"session_id": frame.SessionID, "error": err.Error()})
		return
	}
	c.Hub.logger.Debug("Client", "Turn finished", map[string]interface{}{"session_id": frame.SessionID, "duration": time.Since(start).String()})
}

// writePump pumps frames to the websocket connection and keeps it alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
