// Package session is the client side of the chat stream: one websocket per
// session, a stable session id across reconnects, and at most one turn in
// flight.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"

	"floodguard-be/internal/pkg/logger"
	"floodguard-be/pkg/clock"
	"floodguard-be/pkg/protocol"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 10 * time.Second
	logModule   = "SessionTransport"
)

var (
	ErrNotConnected = errors.New("session: not connected")
	ErrTurnInFlight = errors.New("session: a turn is already in flight")
	ErrClosed       = errors.New("session: transport closed")
)

type State string

const (
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// EventHandler receives every decoded event in receipt order. A malformed
// frame arrives as a nil event with a *protocol.ProtocolError.
type EventHandler func(ev protocol.Event, err error)

type StateHandler func(s State)

type Options struct {
	// SessionID is generated when empty.
	SessionID string
	Dialer    *websocket.Dialer
	Header    http.Header
	Retry     RetryPolicy
	Clock     clock.Clock
	Logger    logger.ILogger
}

type Transport struct {
	url       string
	sessionID string
	dialer    *websocket.Dialer
	header    http.Header
	clock     clock.Clock
	log       logger.ILogger

	mu       sync.Mutex
	writeMu  sync.Mutex
	conn     *websocket.Conn
	state    State
	pending  bool
	closed   bool
	retry    *retrier
	timer    clock.Timer
	onEvent  []EventHandler
	onChange []StateHandler
}

func New(url string, opts Options) *Transport {
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: dialTimeout}
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Transport{
		url:       url,
		sessionID: opts.SessionID,
		dialer:    opts.Dialer,
		header:    opts.Header,
		clock:     opts.Clock,
		log:       opts.Logger,
		state:     StateConnecting,
		retry:     newRetrier(opts.Retry),
	}
}

// Dial creates a transport and opens it. On failure the transport is still
// returned, with a reconnect scheduled.
func Dial(ctx context.Context, url string, opts Options) (*Transport, error) {
	t := New(url, opts)
	return t, t.Open(ctx)
}

func (t *Transport) SessionID() string { return t.sessionID }

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Pending reports whether a turn is in flight.
func (t *Transport) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// OnEvent registers a handler. Handlers run on the read goroutine.
func (t *Transport) OnEvent(h EventHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEvent = append(t.onEvent, h)
}

func (t *Transport) OnStateChange(h StateHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, h)
}

// Open dials the server. A failure schedules one reconnect attempt per the
// retry policy and is also returned to the caller.
func (t *Transport) Open(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.conn != nil {
		t.mu.Unlock()
		return nil
	}
	changed := t.setStateLocked(StateConnecting)
	t.mu.Unlock()
	t.notify(changed, StateConnecting)

	return t.connect(ctx)
}

func (t *Transport) connect(ctx context.Context) error {
	conn, _, err := t.dialer.DialContext(ctx, t.url, t.header)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return ErrClosed
	}
	if err != nil {
		next, changed := t.scheduleReconnectLocked()
		t.mu.Unlock()
		t.notify(changed, next)
		t.log.Warn(logModule, "Dial failed", map[string]interface{}{
			"url":        t.url,
			"session_id": t.sessionID,
			"error":      err.Error(),
			"next_state": string(next),
		})
		return fmt.Errorf("dial %s: %w", t.url, err)
	}

	t.conn = conn
	t.retry.reset()
	changed := t.setStateLocked(StateOpen)
	t.mu.Unlock()

	t.log.Info(logModule, "Connected", map[string]interface{}{"url": t.url, "session_id": t.sessionID})
	t.notify(changed, StateOpen)

	go t.readLoop(conn)
	return nil
}

// scheduleReconnectLocked arms exactly one reconnect timer, or closes the
// transport when the policy is exhausted. It returns the resulting state.
func (t *Transport) scheduleReconnectLocked() (State, bool) {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	delay, ok := t.retry.next()
	if !ok {
		t.closed = true
		return StateClosed, t.setStateLocked(StateClosed)
	}
	t.timer = t.clock.AfterFunc(delay, t.reconnect)
	return StateReconnecting, t.setStateLocked(StateReconnecting)
}

func (t *Transport) reconnect() {
	t.mu.Lock()
	t.timer = nil
	if t.closed || t.conn != nil {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	_ = t.connect(ctx)
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.handleDrop(conn, err)
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			t.log.Warn(logModule, "Malformed frame", map[string]interface{}{"error": err.Error()})
			t.dispatch(nil, err)
			continue
		}
		if protocol.IsTerminal(ev) {
			t.mu.Lock()
			t.pending = false
			t.mu.Unlock()
		}
		t.dispatch(ev, nil)
	}
}

func (t *Transport) handleDrop(conn *websocket.Conn, cause error) {
	t.mu.Lock()
	if t.conn != conn {
		// Closed locally or already replaced.
		t.mu.Unlock()
		return
	}
	t.conn = nil
	conn.Close()
	next, changed := t.scheduleReconnectLocked()
	t.mu.Unlock()

	t.log.Warn(logModule, "Connection dropped", map[string]interface{}{
		"session_id": t.sessionID,
		"error":      cause.Error(),
		"next_state": string(next),
	})
	t.notify(changed, next)
}

func (t *Transport) dispatch(ev protocol.Event, err error) {
	t.mu.Lock()
	handlers := append([]EventHandler(nil), t.onEvent...)
	t.mu.Unlock()
	for _, h := range handlers {
		h(ev, err)
	}
}

// Send writes one utterance. It fails fast with ErrNotConnected while the
// connection is down and with ErrTurnInFlight until the previous turn ended.
func (t *Transport) Send(utterance string, creds protocol.Credentials) error {
	t.mu.Lock()
	conn := t.conn
	if conn == nil || t.state != StateOpen {
		t.mu.Unlock()
		return ErrNotConnected
	}
	if t.pending {
		t.mu.Unlock()
		return ErrTurnInFlight
	}
	frame, err := protocol.Encode(utterance, t.sessionID, creds)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	t.pending = true
	t.mu.Unlock()

	t.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteMessage(websocket.TextMessage, frame)
	t.writeMu.Unlock()

	if err != nil {
		t.mu.Lock()
		t.pending = false
		t.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// EndTurn releases the in-flight slot without a terminal event, as the
// client watchdog does on timeout.
func (t *Transport) EndTurn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = false
}

// Close stops reconnecting and closes the connection. The transport cannot
// be reopened.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed && t.conn == nil {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	conn := t.conn
	t.conn = nil
	changed := t.setStateLocked(StateClosed)
	t.mu.Unlock()

	t.notify(changed, StateClosed)
	if conn == nil {
		return nil
	}

	t.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	t.writeMu.Unlock()
	return conn.Close()
}

func (t *Transport) setStateLocked(s State) bool {
	if t.state == s {
		return false
	}
	t.state = s
	return true
}

func (t *Transport) notify(changed bool, s State) {
	if !changed {
		return
	}
	t.mu.Lock()
	handlers := append([]StateHandler(nil), t.onChange...)
	t.mu.Unlock()
	for _, h := range handlers {
		h(s)
	}
}
