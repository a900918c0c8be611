package clientstate

import (
	"floodguard-be/pkg/details"
	"floodguard-be/pkg/mapview"
	"floodguard-be/pkg/protocol"
)

// TimeoutMessage is shown when no terminal event arrives in time.
const TimeoutMessage = "The response timed out. Please try again."

// Reduce is the only place State changes. It never mutates s; slices are
// copied before they are modified.
func Reduce(s State, a Action) (State, []Effect) {
	switch a := a.(type) {
	case EventReceived:
		return applyEvent(s, a.Event)

	case DecodeFailed:
		// Same weight as a status event: counted, nothing rendered.
		s.ProtocolErrors++
		return s, nil

	case TurnSubmitted:
		if s.Phase == PhaseAwaiting {
			return s, nil
		}
		s.Phase = PhaseAwaiting
		s.Turn++
		s.StatusText = ""
		s.BoundsHint = nil
		s.Chat = appendEntry(s.Chat, ChatEntry{Role: RoleUser, Text: a.Utterance, Final: true})
		return s, []Effect{StartWatchdog{Turn: s.Turn}}

	case ProjectSelected:
		// Direct interaction: the latest selection wins, whether it came from
		// a marker or a projects event.
		p := a.Project
		s.Selected = &p
		s.NewsSeq++
		s.NewsLoading = true
		s.NewsError = ""
		return s, []Effect{FetchNews{Seq: s.NewsSeq, Criteria: details.NewsQuery(p)}}

	case NewsLoaded:
		if !s.NewsLoading || a.Seq != s.NewsSeq {
			return s, nil
		}
		s.NewsLoading = false
		if a.Err != nil {
			s.News = []protocol.Article{}
			s.NewsError = a.Err.Error()
			return s, nil
		}
		s.News = nonNilArticles(a.Items)
		s.NewsError = ""
		return s, nil

	case WatchdogFired:
		if s.Phase != PhaseAwaiting || a.Turn != s.Turn {
			return s, nil
		}
		s = finishTurn(s)
		s.Chat = appendEntry(s.Chat, ChatEntry{Role: RoleWarning, Text: TimeoutMessage, Final: true})
		return s, []Effect{EndTurn{}}

	case Notice:
		s.Chat = appendEntry(s.Chat, ChatEntry{Role: RoleWarning, Text: a.Text, Final: true})
		return s, nil

	case ConnectionChanged:
		s.Connection = a.State
		return s, nil
	}
	return s, nil
}

func applyEvent(s State, ev protocol.Event) (State, []Effect) {
	switch ev := ev.(type) {
	case protocol.StatusEvent:
		if s.Phase == PhaseAwaiting {
			s.StatusText = ev.Message
		}
		return s, nil

	case protocol.ToolEvent:
		tools := make([]protocol.ToolEvent, 0, len(s.Tools)+1)
		if len(s.Tools) >= maxToolLog {
			tools = append(tools, s.Tools[len(s.Tools)-maxToolLog+1:]...)
		} else {
			tools = append(tools, s.Tools...)
		}
		s.Tools = append(tools, ev)
		return s, nil

	case protocol.ProjectsEvent:
		if s.Phase != PhaseAwaiting {
			return s, nil
		}
		s.Projects = append([]protocol.Project(nil), ev.Data...)
		s = refit(s)
		// The first project becomes the selection and its news replaces
		// whatever the panel showed for the previous set. Bumping NewsSeq
		// drops any outstanding marker lookup.
		s.NewsSeq++
		s.NewsError = ""
		if len(s.Projects) == 0 {
			s.Selected = nil
			s.NewsLoading = false
			s.News = []protocol.Article{}
			return s, nil
		}
		first := s.Projects[0]
		s.Selected = &first
		s.NewsLoading = true
		return s, []Effect{FetchNews{Seq: s.NewsSeq, Criteria: details.NewsQuery(first)}}

	case protocol.MapBoundsEvent:
		if s.Phase != PhaseAwaiting {
			return s, nil
		}
		box := ev.BBox
		s.BoundsHint = &box
		return refit(s), nil

	case protocol.MessageEvent:
		if s.Phase != PhaseAwaiting {
			return s, nil
		}
		s.Chat = appendFragment(s.Chat, ev.Content)
		if !ev.Done {
			return s, nil
		}
		return finishTurn(s), []Effect{StopWatchdog{}}

	case protocol.NewsEvent:
		// Legal after the terminal event, so accepted while idle.
		s.News = nonNilArticles(ev.Data)
		s.NewsError = ""
		if s.NewsLoading {
			s.NewsLoading = false
			s.NewsSeq++
		}
		return s, nil

	case protocol.ErrorEvent:
		if s.Phase != PhaseAwaiting {
			return s, nil
		}
		s = finishTurn(s)
		s.Chat = appendEntry(s.Chat, ChatEntry{Role: RoleWarning, Text: ev.Content, Final: true})
		return s, []Effect{StopWatchdog{}}
	}

	// Unknown event types are ignored.
	return s, nil
}

func refit(s State) State {
	s.Viewport, s.ViewportSource = mapview.Fit(s.Projects, s.BoundsHint)
	return s
}

// finishTurn finalizes any open assistant bubble and re-enables input.
func finishTurn(s State) State {
	if n := len(s.Chat); n > 0 && s.Chat[n-1].Role == RoleAssistant && !s.Chat[n-1].Final {
		chat := append([]ChatEntry(nil), s.Chat...)
		chat[n-1].Final = true
		s.Chat = chat
	}
	s.Phase = PhaseIdle
	s.StatusText = ""
	return s
}

// appendFragment concatenates content onto the open assistant bubble, or
// opens one.
func appendFragment(chat []ChatEntry, content string) []ChatEntry {
	n := len(chat)
	if n > 0 && chat[n-1].Role == RoleAssistant && !chat[n-1].Final {
		out := append([]ChatEntry(nil), chat...)
		out[n-1].Text += content
		return out
	}
	return appendEntry(chat, ChatEntry{Role: RoleAssistant, Text: content})
}

func appendEntry(chat []ChatEntry, e ChatEntry) []ChatEntry {
	out := make([]ChatEntry, len(chat), len(chat)+1)
	copy(out, chat)
	return append(out, e)
}

func nonNilArticles(items []protocol.Article) []protocol.Article {
	if len(items) == 0 {
		return []protocol.Article{}
	}
	return append([]protocol.Article(nil), items...)
}
