// Package clientstate applies the chat stream to the client's three
// surfaces: the conversation log, the map, and the details/news panel.
//
// All mutation goes through Reduce. Machine owns the single State value,
// feeds actions to Reduce one at a time and runs the returned effects.
package clientstate

import (
	"time"

	"floodguard-be/pkg/details"
	"floodguard-be/pkg/mapview"
	"floodguard-be/pkg/markdown"
	"floodguard-be/pkg/protocol"
	"floodguard-be/pkg/session"
)

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseAwaiting Phase = "awaiting_response"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleWarning   Role = "warning"
)

// WarningPrefix marks turn failures and local notices in the chat log.
const WarningPrefix = "⚠ "

const maxToolLog = 100

type ChatEntry struct {
	Role Role
	Text string
	// Final is false while assistant fragments are still arriving.
	Final bool
}

// HTML renders the entry for display. Only assistant text is formatted;
// everything else is escaped verbatim.
func (e ChatEntry) HTML() string {
	switch e.Role {
	case RoleAssistant:
		return markdown.Render(e.Text)
	case RoleWarning:
		return markdown.Escape(WarningPrefix + e.Text)
	default:
		return markdown.Escape(e.Text)
	}
}

type State struct {
	Phase      Phase
	Turn       int
	StatusText string
	Connection session.State

	Chat []ChatEntry

	Projects       []protocol.Project
	Selected       *protocol.Project
	BoundsHint     *protocol.BBox
	Viewport       protocol.BBox
	ViewportSource mapview.Source

	News        []protocol.Article
	NewsLoading bool
	NewsError   string
	// NewsSeq identifies the latest marker-driven lookup. Results carrying
	// an older seq are dropped.
	NewsSeq int

	Tools          []protocol.ToolEvent
	ProtocolErrors int
}

// Initial is the state before anything was sent or received.
func Initial() State {
	return State{
		Phase:          PhaseIdle,
		Connection:     session.StateConnecting,
		Viewport:       mapview.DefaultRegion,
		ViewportSource: mapview.SourceDefault,
	}
}

// Busy reports whether input is disabled.
func (s State) Busy() bool { return s.Phase == PhaseAwaiting }

// MapView derives markers and bounds for rendering.
func (s State) MapView(cellDeg float64) mapview.View {
	return mapview.Derive(s.Projects, s.BoundsHint, cellDeg)
}

// Card renders the selected project at now, or returns false if nothing is
// selected.
func (s State) Card(now time.Time) (details.Card, bool) {
	if s.Selected == nil {
		return details.Card{}, false
	}
	return details.RenderCard(*s.Selected, now), true
}

func (s State) NewsPanel() details.NewsPanel {
	return details.RenderNews(s.News, s.NewsLoading)
}

// LastAssistant returns the most recent assistant bubble text.
func (s State) LastAssistant() (ChatEntry, bool) {
	for i := len(s.Chat) - 1; i >= 0; i-- {
		if s.Chat[i].Role == RoleAssistant {
			return s.Chat[i], true
		}
	}
	return ChatEntry{}, false
}
