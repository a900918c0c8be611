// Package protocol defines the chat stream events exchanged over the
// session connection, their JSON codec, and the legal ordering of events
// within one turn.
package protocol

// EventType is the wire discriminant of a server frame.
type EventType string

const (
	TypeStatus    EventType = "status"
	TypeTool      EventType = "tool"
	TypeProjects  EventType = "projects"
	TypeMapBounds EventType = "map_bounds"
	TypeMessage   EventType = "message"
	TypeNews      EventType = "news"
	TypeError     EventType = "error"
)

// Event is one server frame.
type Event interface {
	Type() EventType
}

// StatusEvent drives the typing indicator only.
type StatusEvent struct {
	Message string
}

// ToolEvent records a retrieval the backend performed.
type ToolEvent struct {
	Tool   string
	Query  string
	Params map[string]any
}

// ProjectsEvent replaces the current result set.
type ProjectsEvent struct {
	Data  []Project
	Count int
}

// MapBoundsEvent is a viewport hint used when no project has coordinates.
type MapBoundsEvent struct {
	BBox BBox
}

// MessageEvent is one fragment of the assistant reply. Done marks the end
// of the turn.
type MessageEvent struct {
	Content string
	Done    bool
}

// NewsEvent replaces the news list.
type NewsEvent struct {
	Data []Article
}

// ErrorEvent ends the turn with a failure notice.
type ErrorEvent struct {
	Content string
}

// UnknownEvent carries a type this build does not understand.
type UnknownEvent struct {
	Name string
}

func (StatusEvent) Type() EventType    { return TypeStatus }
func (ToolEvent) Type() EventType      { return TypeTool }
func (ProjectsEvent) Type() EventType  { return TypeProjects }
func (MapBoundsEvent) Type() EventType { return TypeMapBounds }
func (MessageEvent) Type() EventType   { return TypeMessage }
func (NewsEvent) Type() EventType      { return TypeNews }
func (ErrorEvent) Type() EventType     { return TypeError }
func (e UnknownEvent) Type() EventType { return EventType(e.Name) }

// IsTerminal reports whether ev ends a turn.
func IsTerminal(ev Event) bool {
	switch e := ev.(type) {
	case MessageEvent:
		return e.Done
	case ErrorEvent:
		return true
	default:
		return false
	}
}
