package handler

import (
	"context"
	"net"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"floodguard-be/internal/pkg/logger"
	internalWS "floodguard-be/internal/websocket"
	"floodguard-be/pkg/protocol"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTurns answers every frame with status, two fragments and done.
// While hold is non-nil the turn waits on it before finishing.
type scriptedTurns struct {
	mu     sync.Mutex
	frames []protocol.ClientFrame
	hold   chan struct{}
}

func (s *scriptedTurns) HandleTurn(ctx context.Context, frame protocol.ClientFrame, sink protocol.Sink) error {
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	hold := s.hold
	s.mu.Unlock()

	em := protocol.NewTurnEmitter(sink)
	if err := em.Status("Processing your question..."); err != nil {
		return err
	}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := em.Fragment("Found "); err != nil {
		return err
	}
	if err := em.Fragment("**12** projects."); err != nil {
		return err
	}
	return em.Done("")
}

func (s *scriptedTurns) received() []protocol.ClientFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.ClientFrame(nil), s.frames...)
}

func startChatServer(t *testing.T, turns internalWS.TurnHandler) (string, *internalWS.Hub) {
	t.Helper()
	hub := internalWS.NewHub(logger.NewNop())
	go hub.Run()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	NewChatHandler(hub, turns, logger.NewNop()).RegisterRoutes(app.Group("/api"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "ws://" + ln.Addr().String() + "/api/chat", hub
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) protocol.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := protocol.Decode(data)
	require.NoError(t, err)
	return ev
}

func send(t *testing.T, conn *websocket.Conn, message, sessionID string) {
	t.Helper()
	frame, err := protocol.Encode(message, sessionID, protocol.Credentials{"anthropic_key": "a", "openai_key": "o"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func TestChatHandlerStreamsOneFramePerEvent(t *testing.T) {
	turns := &scriptedTurns{}
	url, hub := startChatServer(t, turns)
	conn := dial(t, url)

	send(t, conn, "Show me 2025 projects in Pangasinan", "s1")

	assert.Equal(t, protocol.StatusEvent{Message: "Processing your question..."}, readEvent(t, conn))
	assert.Equal(t, protocol.MessageEvent{Content: "Found "}, readEvent(t, conn))
	assert.Equal(t, protocol.MessageEvent{Content: "**12** projects."}, readEvent(t, conn))
	assert.Equal(t, protocol.MessageEvent{Done: true}, readEvent(t, conn))

	frames := turns.received()
	require.Len(t, frames, 1)
	assert.Equal(t, "s1", frames[0].SessionID)
	assert.Equal(t, "a", frames[0].Credentials["anthropic_key"])
	assert.Eventually(t, func() bool { return hub.Connected("s1") }, time.Second, 10*time.Millisecond)
}

func TestChatHandlerMalformedFrame(t *testing.T) {
	url, _ := startChatServer(t, &scriptedTurns{})
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, protocol.ErrorEvent{Content: "Invalid message format"}, readEvent(t, conn))

	// The connection survives and serves the next turn.
	send(t, conn, "hello", "s1")
	assert.IsType(t, protocol.StatusEvent{}, readEvent(t, conn))
}

func TestChatHandlerRejectsSecondTurnInFlight(t *testing.T) {
	turns := &scriptedTurns{hold: make(chan struct{})}
	url, _ := startChatServer(t, turns)
	conn := dial(t, url)

	send(t, conn, "first", "s1")
	assert.IsType(t, protocol.StatusEvent{}, readEvent(t, conn))

	send(t, conn, "second", "s1")
	busy := readEvent(t, conn)
	require.IsType(t, protocol.ErrorEvent{}, busy)
	assert.Contains(t, busy.(protocol.ErrorEvent).Content, "still in progress")

	close(turns.hold)
	assert.Equal(t, protocol.MessageEvent{Content: "Found "}, readEvent(t, conn))
	assert.Len(t, turns.received(), 1)
}

func TestChatHandlerRequiresUpgrade(t *testing.T) {
	app := fiber.New()
	NewChatHandler(internalWS.NewHub(logger.NewNop()), &scriptedTurns{}, logger.NewNop()).RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/chat", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
