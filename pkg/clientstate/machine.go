package clientstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"floodguard-be/internal/pkg/logger"
	"floodguard-be/pkg/clock"
	"floodguard-be/pkg/details"
	"floodguard-be/pkg/protocol"
	"floodguard-be/pkg/session"
)

// DefaultWatchdog bounds how long input stays disabled without a terminal
// event.
const DefaultWatchdog = 90 * time.Second

const (
	logModule = "ClientState"

	credentialsNotice  = "API keys are required. Please configure them in Settings."
	notConnectedNotice = "Not connected to the server. Please wait for the connection to be restored and try again."
)

var (
	ErrCredentialsMissing = errors.New("clientstate: credentials missing")
	ErrTurnInFlight       = session.ErrTurnInFlight
	ErrNotConnected       = session.ErrNotConnected
	ErrStopped            = errors.New("clientstate: machine stopped")
)

// Sender is the transport as seen by the machine.
type Sender interface {
	Send(utterance string, creds protocol.Credentials) error
	EndTurn()
}

// NewsFetcher serves marker-driven news lookups.
type NewsFetcher interface {
	FetchNews(ctx context.Context, criteria details.NewsCriteria) ([]protocol.Article, error)
}

type Config struct {
	Watchdog    time.Duration
	Credentials protocol.Credentials
	// RequiredCredentials lists bundle keys that must be non-empty.
	RequiredCredentials []string
	Clock               clock.Clock
	Logger              logger.ILogger
}

type Machine struct {
	sender   Sender
	news     NewsFetcher
	clock    clock.Clock
	log      logger.ILogger
	watchdog time.Duration
	creds    protocol.Credentials
	required []string

	actions chan Action
	done    chan struct{}
	ctx     context.Context

	// submitMu orders a successful Send before its TurnSubmitted action and
	// holds back events that arrive meanwhile.
	submitMu sync.Mutex

	mu        sync.RWMutex
	state     State
	listeners []func(State)
	timer     clock.Timer
}

func NewMachine(sender Sender, news NewsFetcher, cfg Config) *Machine {
	if cfg.Watchdog <= 0 {
		cfg.Watchdog = DefaultWatchdog
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	return &Machine{
		sender:   sender,
		news:     news,
		clock:    cfg.Clock,
		log:      cfg.Logger,
		watchdog: cfg.Watchdog,
		creds:    cfg.Credentials,
		required: cfg.RequiredCredentials,
		actions:  make(chan Action, 256),
		done:     make(chan struct{}),
		ctx:      context.Background(),
		state:    Initial(),
	}
}

// Run applies actions until ctx is done.
func (m *Machine) Run(ctx context.Context) error {
	m.ctx = ctx
	defer close(m.done)
	defer m.stopWatchdog()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-m.actions:
			m.apply(a)
		}
	}
}

func (m *Machine) apply(a Action) {
	m.mu.Lock()
	next, effects := Reduce(m.state, a)
	m.state = next
	listeners := append([]func(State){}, m.listeners...)
	m.mu.Unlock()

	for _, e := range effects {
		m.run(e)
	}
	for _, l := range listeners {
		l(next)
	}
}

func (m *Machine) run(e Effect) {
	switch e := e.(type) {
	case StartWatchdog:
		m.stopWatchdog()
		turn := e.Turn
		t := m.clock.AfterFunc(m.watchdog, func() {
			m.enqueue(WatchdogFired{Turn: turn})
		})
		m.mu.Lock()
		m.timer = t
		m.mu.Unlock()

	case StopWatchdog:
		m.stopWatchdog()

	case EndTurn:
		m.log.Warn(logModule, "Turn timed out", map[string]interface{}{"after": m.watchdog.String()})
		m.sender.EndTurn()

	case FetchNews:
		if m.news == nil {
			m.enqueue(NewsLoaded{Seq: e.Seq, Items: []protocol.Article{}})
			return
		}
		ctx := m.ctx
		go func() {
			items, err := m.news.FetchNews(ctx, e.Criteria)
			if err != nil {
				m.log.Warn(logModule, "News lookup failed", map[string]interface{}{"error": err.Error(), "seq": e.Seq})
			}
			m.enqueue(NewsLoaded{Seq: e.Seq, Items: items, Err: err})
		}()
	}
}

func (m *Machine) stopWatchdog() {
	m.mu.Lock()
	t := m.timer
	m.timer = nil
	m.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

func (m *Machine) enqueue(a Action) {
	select {
	case m.actions <- a:
	case <-m.done:
	}
}

// HandleEvent is the transport's event handler.
func (m *Machine) HandleEvent(ev protocol.Event, err error) {
	m.submitMu.Lock()
	defer m.submitMu.Unlock()
	if err != nil {
		m.log.Warn(logModule, "Protocol error", map[string]interface{}{"error": err.Error()})
		m.enqueue(DecodeFailed{Err: err})
		return
	}
	if te, ok := ev.(protocol.ToolEvent); ok {
		m.log.Debug(logModule, "Tool trace", map[string]interface{}{"tool": te.Tool, "query": te.Query})
	}
	m.enqueue(EventReceived{Event: ev})
}

// HandleStateChange is the transport's connection-state handler.
func (m *Machine) HandleStateChange(s session.State) {
	m.enqueue(ConnectionChanged{State: s})
}

// Dispatch feeds an event as if it came from the transport.
func (m *Machine) Dispatch(ev protocol.Event) {
	m.HandleEvent(ev, nil)
}

// Submit sends one utterance. Missing credentials and a down connection
// are reported in the chat log as well as returned. After Run has returned
// it fails with ErrStopped and sends nothing.
func (m *Machine) Submit(utterance string) error {
	m.submitMu.Lock()
	defer m.submitMu.Unlock()

	select {
	case <-m.done:
		return ErrStopped
	default:
	}
	if m.Snapshot().Busy() {
		return ErrTurnInFlight
	}
	if m.credentialsMissing() {
		m.enqueue(Notice{Text: credentialsNotice})
		return ErrCredentialsMissing
	}

	if err := m.sender.Send(utterance, m.creds); err != nil {
		switch {
		case errors.Is(err, session.ErrNotConnected):
			m.enqueue(Notice{Text: notConnectedNotice})
			return ErrNotConnected
		case errors.Is(err, session.ErrTurnInFlight):
			return ErrTurnInFlight
		default:
			m.enqueue(Notice{Text: err.Error()})
			return err
		}
	}
	m.enqueue(TurnSubmitted{Utterance: utterance})
	return nil
}

func (m *Machine) credentialsMissing() bool {
	if m.creds.Empty() {
		return true
	}
	for _, k := range m.required {
		if m.creds[k] == "" {
			return true
		}
	}
	return false
}

// SelectProject is the marker-activation path. It implements
// mapview.Selector.
func (m *Machine) SelectProject(p protocol.Project) {
	m.enqueue(ProjectSelected{Project: p})
}

// Snapshot returns the current state. Callers must not modify its slices.
func (m *Machine) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// OnChange registers a listener called after every applied action, on the
// Run goroutine.
func (m *Machine) OnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}
