package protocol

import (
	"fmt"
	"sync"
)

// sequence tracks one turn against the emission contract:
//   - status and tool events only before the terminal event
//   - at most one projects, one map_bounds and one news event
//   - message fragments until exactly one terminal (done message or error)
//   - once a fragment is out, only a done message can end the run
//   - news may follow the terminal event; nothing else may
type sequence struct {
	projects   bool
	bounds     bool
	news       bool
	fragments  bool
	terminated bool
	terminal   EventType
}

func (s *sequence) check(ev Event) error {
	t := ev.Type()
	if s.terminated && t != TypeNews {
		return fmt.Errorf("%w: %s after terminal %s", ErrIllegalSequence, t, s.terminal)
	}
	switch t {
	case TypeProjects:
		if s.projects {
			return fmt.Errorf("%w: second projects event", ErrIllegalSequence)
		}
	case TypeMapBounds:
		if s.bounds {
			return fmt.Errorf("%w: second map_bounds event", ErrIllegalSequence)
		}
	case TypeNews:
		if s.news {
			return fmt.Errorf("%w: second news event", ErrIllegalSequence)
		}
	case TypeError:
		if s.fragments {
			return fmt.Errorf("%w: error after message fragments", ErrIllegalSequence)
		}
	case TypeStatus, TypeTool, TypeMessage:
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrIllegalSequence, t)
	}
	return nil
}

func (s *sequence) record(ev Event) {
	switch ev.Type() {
	case TypeProjects:
		s.projects = true
	case TypeMapBounds:
		s.bounds = true
	case TypeNews:
		s.news = true
	case TypeMessage:
		s.fragments = true
	}
	if IsTerminal(ev) {
		s.terminated = true
		s.terminal = ev.Type()
	}
}

// ValidateTurn checks a complete recorded turn, including that it ended
// with a terminal event.
func ValidateTurn(events []Event) error {
	var s sequence
	for i, ev := range events {
		if err := s.check(ev); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		s.record(ev)
	}
	if !s.terminated {
		return fmt.Errorf("%w: turn has no terminal event", ErrIllegalSequence)
	}
	return nil
}

// Sink delivers one encoded event to the client.
type Sink func(Event) error

// TurnEmitter is the only way the orchestrator writes a turn. It refuses
// events that would break the ordering contract.
type TurnEmitter struct {
	mu   sync.Mutex
	sink Sink
	seq  sequence
}

// NewTurnEmitter starts a fresh turn writing to sink.
func NewTurnEmitter(sink Sink) *TurnEmitter {
	return &TurnEmitter{sink: sink}
}

func (e *TurnEmitter) emit(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.seq.check(ev); err != nil {
		return err
	}
	if err := e.sink(ev); err != nil {
		return err
	}
	e.seq.record(ev)
	return nil
}

func (e *TurnEmitter) Status(message string) error {
	return e.emit(StatusEvent{Message: message})
}

func (e *TurnEmitter) Tool(tool, query string, params map[string]any) error {
	return e.emit(ToolEvent{Tool: tool, Query: query, Params: params})
}

func (e *TurnEmitter) Projects(data []Project) error {
	return e.emit(ProjectsEvent{Data: data, Count: len(data)})
}

func (e *TurnEmitter) MapBounds(box BBox) error {
	return e.emit(MapBoundsEvent{BBox: box})
}

// Fragment appends to the assistant reply without ending the turn.
func (e *TurnEmitter) Fragment(content string) error {
	return e.emit(MessageEvent{Content: content})
}

// Done ends the turn. content may be empty.
func (e *TurnEmitter) Done(content string) error {
	return e.emit(MessageEvent{Content: content, Done: true})
}

func (e *TurnEmitter) News(items []Article) error {
	return e.emit(NewsEvent{Data: items})
}

// Fail ends the turn with an error notice.
func (e *TurnEmitter) Fail(content string) error {
	return e.emit(ErrorEvent{Content: content})
}

// Terminated reports whether a terminal event has been written.
func (e *TurnEmitter) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq.terminated
}

// Streaming reports whether message text has been written, after which the
// turn can only end with Done.
func (e *TurnEmitter) Streaming() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq.fragments
}

// EmittedProjects reports whether the turn already carried a result set.
func (e *TurnEmitter) EmittedProjects() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq.projects
}
