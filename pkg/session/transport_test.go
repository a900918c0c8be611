package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodguard-be/pkg/clock"
	"floodguard-be/pkg/protocol"
)

// chatServer answers every frame with status + one terminal message, unless
// dropNext is set, in which case it closes the connection abruptly instead.
type chatServer struct {
	t        *testing.T
	srv      *httptest.Server
	mu       sync.Mutex
	frames   []map[string]string
	conns    int
	dropNext bool
}

func newChatServer(t *testing.T) *chatServer {
	cs := &chatServer{t: t}
	upgrader := websocket.Upgrader{}
	cs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		cs.mu.Lock()
		cs.conns++
		cs.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame map[string]string
			_ = json.Unmarshal(data, &frame)

			cs.mu.Lock()
			cs.frames = append(cs.frames, frame)
			drop := cs.dropNext
			cs.dropNext = false
			cs.mu.Unlock()

			if drop {
				return
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"status","message":"Processing your question..."}`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","content":"ok","done":true}`))
		}
	}))
	t.Cleanup(cs.srv.Close)
	return cs
}

func (cs *chatServer) url() string {
	return "ws" + strings.TrimPrefix(cs.srv.URL, "http")
}

func (cs *chatServer) snapshot() ([]map[string]string, int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]map[string]string(nil), cs.frames...), cs.conns
}

type recorder struct {
	mu     sync.Mutex
	events []protocol.Event
	errs   []error
	states []State
}

func (r *recorder) onEvent(ev protocol.Event, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errs = append(r.errs, err)
		return
	}
	r.events = append(r.events, ev)
}

func (r *recorder) onState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestSendRequiresConnection(t *testing.T) {
	tr := New("ws://127.0.0.1:1/api/chat", Options{Clock: clock.NewFake(time.Now())})
	assert.ErrorIs(t, tr.Send("hi", nil), ErrNotConnected)
	assert.NotEmpty(t, tr.SessionID())
}

func TestTurnRoundTrip(t *testing.T) {
	cs := newChatServer(t)
	rec := &recorder{}

	tr := New(cs.url(), Options{SessionID: "s1", Clock: clock.NewFake(time.Now())})
	tr.OnEvent(rec.onEvent)
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()
	assert.Equal(t, StateOpen, tr.State())

	require.NoError(t, tr.Send("Show me 2025 projects in Pangasinan", protocol.Credentials{"api_key": "k"}))
	assert.ErrorIs(t, tr.Send("again", nil), ErrTurnInFlight)

	require.Eventually(t, func() bool { return rec.eventCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return !tr.Pending() }, time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	assert.Equal(t, protocol.TypeStatus, rec.events[0].Type())
	assert.True(t, protocol.IsTerminal(rec.events[1]))
	require.Len(t, rec.errs, 1)
	assert.True(t, protocol.IsProtocolError(rec.errs[0]))
	rec.mu.Unlock()

	frames, _ := cs.snapshot()
	require.Len(t, frames, 1)
	assert.Equal(t, "s1", frames[0]["session_id"])
	assert.Equal(t, "k", frames[0]["api_key"])

	require.NoError(t, tr.Send("next", nil))
}

func TestReconnectReusesSessionID(t *testing.T) {
	cs := newChatServer(t)
	fake := clock.NewFake(time.Now())
	rec := &recorder{}

	tr := New(cs.url(), Options{Clock: fake})
	tr.OnStateChange(rec.onState)
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	cs.mu.Lock()
	cs.dropNext = true
	cs.mu.Unlock()
	require.NoError(t, tr.Send("first", nil))

	require.Eventually(t, func() bool { return tr.State() == StateReconnecting }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, fake.Pending(), "exactly one reconnect is scheduled")
	assert.ErrorIs(t, tr.Send("while down", nil), ErrNotConnected)

	fake.Advance(DefaultReconnectInterval - time.Millisecond)
	assert.Equal(t, StateReconnecting, tr.State())

	fake.Advance(time.Millisecond)
	assert.Equal(t, StateOpen, tr.State())

	// The dropped turn never ended; the client releases it.
	assert.ErrorIs(t, tr.Send("still pending", nil), ErrTurnInFlight)
	tr.EndTurn()
	require.NoError(t, tr.Send("second", nil))

	require.Eventually(t, func() bool {
		frames, _ := cs.snapshot()
		return len(frames) == 2
	}, 2*time.Second, 10*time.Millisecond)

	frames, conns := cs.snapshot()
	assert.Equal(t, 2, conns)
	assert.Equal(t, tr.SessionID(), frames[0]["session_id"])
	assert.Equal(t, tr.SessionID(), frames[1]["session_id"])

	rec.mu.Lock()
	assert.Equal(t, []State{StateOpen, StateReconnecting, StateOpen}, rec.states)
	rec.mu.Unlock()
}

func TestOpenFailureGivesUpAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	fake := clock.NewFake(time.Now())
	tr := New(url, Options{Clock: fake, Retry: RetryPolicy{MaxAttempts: 1}})

	require.Error(t, tr.Open(context.Background()))
	assert.Equal(t, StateReconnecting, tr.State())
	assert.Equal(t, 1, fake.Pending())

	fake.Advance(DefaultReconnectInterval)
	assert.Equal(t, StateClosed, tr.State())
	assert.Equal(t, 0, fake.Pending())
	assert.ErrorIs(t, tr.Open(context.Background()), ErrClosed)
}

func TestCloseCancelsReconnect(t *testing.T) {
	fake := clock.NewFake(time.Now())
	tr := New("ws://127.0.0.1:1/api/chat", Options{Clock: fake})

	_ = tr.Open(context.Background())
	require.Equal(t, 1, fake.Pending())

	require.NoError(t, tr.Close())
	assert.Equal(t, 0, fake.Pending())
	assert.Equal(t, StateClosed, tr.State())
}
