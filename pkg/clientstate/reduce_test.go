package clientstate

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodguard-be/pkg/details"
	"floodguard-be/pkg/mapview"
	"floodguard-be/pkg/protocol"
)

func reduceAll(s State, actions ...Action) (State, []Effect) {
	var effects []Effect
	for _, a := range actions {
		var e []Effect
		s, e = Reduce(s, a)
		effects = append(effects, e...)
	}
	return s, effects
}

func events(evs ...protocol.Event) []Action {
	out := make([]Action, len(evs))
	for i, ev := range evs {
		out[i] = EventReceived{Event: ev}
	}
	return out
}

func pangasinanProjects() []protocol.Project {
	out := make([]protocol.Project, 12)
	for i := range out {
		out[i] = protocol.Project{
			ID:          fmt.Sprintf("P%02d", i+1),
			Description: "Flood Control Dike",
			Province:    "PANGASINAN",
			InfraYear:   2025,
			Coordinate: &protocol.Coordinate{
				Lat: 15.90 + float64(i)*0.04,
				Lon: 119.80 + float64(i)*0.06,
			},
		}
	}
	return out
}

func awaiting() State {
	s, _ := Reduce(Initial(), TurnSubmitted{Utterance: "Show me 2025 projects in Pangasinan"})
	return s
}

func TestPangasinanTurn(t *testing.T) {
	projects := pangasinanProjects()
	hint := protocol.BBox{{119.5, 15.8}, {120.5, 16.5}}
	articles := []protocol.Article{{Title: "Pangasinan dike", URL: "https://www.inquirer.net/a"}}

	s, effects := Reduce(Initial(), TurnSubmitted{Utterance: "Show me 2025 projects in Pangasinan"})
	assert.True(t, s.Busy())
	assert.Equal(t, []Effect{StartWatchdog{Turn: 1}}, effects)

	s, effects = reduceAll(s, events(
		protocol.StatusEvent{Message: "Processing your question..."},
		protocol.ToolEvent{Tool: "project_search", Query: "pangasinan 2025"},
		protocol.ProjectsEvent{Data: projects, Count: 12},
		protocol.MapBoundsEvent{BBox: hint},
		protocol.MessageEvent{Content: "Found **12** projects "},
		protocol.MessageEvent{Content: "in Pangasinan."},
		protocol.MessageEvent{Done: true},
		protocol.NewsEvent{Data: articles},
	)...)

	assert.Equal(t, []Effect{
		FetchNews{Seq: 1, Criteria: details.NewsQuery(projects[0])},
		StopWatchdog{},
	}, effects)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Len(t, s.Projects, 12)

	// Coordinates exist, so the hint is ignored.
	assert.Equal(t, mapview.SourceProjects, s.ViewportSource)
	assert.Equal(t, mapview.ComputeBounds(projects, nil), s.Viewport)
	assert.NotEqual(t, hint, s.Viewport)

	require.Len(t, s.Chat, 2)
	assert.Equal(t, RoleUser, s.Chat[0].Role)
	bubble := s.Chat[1]
	assert.Equal(t, RoleAssistant, bubble.Role)
	assert.True(t, bubble.Final)
	assert.Equal(t, "Found **12** projects in Pangasinan.", bubble.Text)
	assert.Equal(t, "Found <strong>12</strong> projects in Pangasinan.", bubble.HTML())

	require.NotNil(t, s.Selected)
	assert.Equal(t, "P01", s.Selected.ID)
	assert.Equal(t, articles, s.News)
	assert.False(t, s.NewsLoading)
	assert.Len(t, s.Tools, 1)
}

func TestFragmentsConcatenateInReceiptOrder(t *testing.T) {
	parts := []string{"a", "b", "", "c\n", "*d*"}
	var acts []Action
	for _, p := range parts {
		acts = append(acts, EventReceived{Event: protocol.MessageEvent{Content: p}})
	}
	acts = append(acts, EventReceived{Event: protocol.MessageEvent{Content: "!", Done: true}})

	s, _ := reduceAll(awaiting(), acts...)
	last, ok := s.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, strings.Join(parts, "")+"!", last.Text)
	assert.True(t, last.Final)
}

func TestLaterProjectsWin(t *testing.T) {
	a := []protocol.Project{{ID: "A"}}
	b := []protocol.Project{{ID: "B1"}, {ID: "B2"}}

	s, _ := reduceAll(awaiting(), events(
		protocol.ProjectsEvent{Data: a, Count: 1},
		protocol.ProjectsEvent{Data: b, Count: 2},
	)...)
	assert.Equal(t, b, s.Projects)
	assert.Equal(t, "B1", s.Selected.ID)
}

func TestProjectsIsIdempotent(t *testing.T) {
	ev := EventReceived{Event: protocol.ProjectsEvent{Data: pangasinanProjects(), Count: 12}}

	once, first := Reduce(awaiting(), ev)
	twice, second := Reduce(once, ev)

	// Each application restarts the news lookup for the same project.
	assert.Equal(t, first[0].(FetchNews).Criteria, second[0].(FetchNews).Criteria)
	once.NewsSeq, twice.NewsSeq = 0, 0
	assert.Equal(t, once, twice)
}

func TestProjectsWithoutCoordinatesUseHint(t *testing.T) {
	hint := protocol.BBox{{119.5, 15.8}, {120.5, 16.5}}

	// Order between projects and map_bounds is not guaranteed.
	for _, order := range [][]protocol.Event{
		{protocol.ProjectsEvent{Data: []protocol.Project{{ID: "X"}}}, protocol.MapBoundsEvent{BBox: hint}},
		{protocol.MapBoundsEvent{BBox: hint}, protocol.ProjectsEvent{Data: []protocol.Project{{ID: "X"}}}},
	} {
		s, _ := reduceAll(awaiting(), events(order...)...)
		assert.Equal(t, hint, s.Viewport)
		assert.Equal(t, mapview.SourceHint, s.ViewportSource)
	}
}

func TestHintDoesNotLeakIntoNextTurn(t *testing.T) {
	hint := protocol.BBox{{119.5, 15.8}, {120.5, 16.5}}
	s, _ := reduceAll(awaiting(), events(protocol.MapBoundsEvent{BBox: hint}, protocol.MessageEvent{Done: true})...)
	require.NotNil(t, s.BoundsHint)

	s, _ = Reduce(s, TurnSubmitted{Utterance: "next"})
	assert.Nil(t, s.BoundsHint)
}

func TestEmptyProjectsClearSelection(t *testing.T) {
	s, _ := reduceAll(awaiting(), events(protocol.ProjectsEvent{Data: []protocol.Project{{ID: "A"}}})...)
	require.NotNil(t, s.Selected)

	s, _ = Reduce(s, EventReceived{Event: protocol.ProjectsEvent{Data: []protocol.Project{}}})
	assert.Nil(t, s.Selected)
	assert.Empty(t, s.Projects)
	assert.Equal(t, mapview.SourceDefault, s.ViewportSource)
	assert.False(t, s.NewsLoading)
	assert.NotNil(t, s.News)
	assert.True(t, s.NewsPanel().Empty)
}

func TestProjectsReplaceStaleNews(t *testing.T) {
	alpha := protocol.Project{ID: "A", Description: "Alpha Dike", Contractor: "ALPHA"}
	bravo := protocol.Project{ID: "B", Description: "Bravo Canal", Contractor: "BRAVO"}

	s, _ := reduceAll(awaiting(), events(
		protocol.ProjectsEvent{Data: []protocol.Project{alpha}, Count: 1},
		protocol.MessageEvent{Done: true},
		protocol.NewsEvent{Data: []protocol.Article{{Title: "about ALPHA"}}},
	)...)
	require.Equal(t, "about ALPHA", s.News[0].Title)

	s, _ = Reduce(s, TurnSubmitted{Utterance: "and Bravo?"})
	s, effects := Reduce(s, EventReceived{Event: protocol.ProjectsEvent{Data: []protocol.Project{bravo}, Count: 1}})

	require.Len(t, effects, 1)
	fetch := effects[0].(FetchNews)
	assert.Equal(t, details.NewsQuery(bravo), fetch.Criteria)
	assert.Equal(t, "B", s.Selected.ID)
	assert.True(t, s.NewsPanel().Loading)

	s, _ = Reduce(s, NewsLoaded{Seq: fetch.Seq, Items: []protocol.Article{{Title: "about BRAVO"}}})
	assert.False(t, s.NewsLoading)
	assert.Equal(t, "about BRAVO", s.News[0].Title)
}

func TestErrorEndsTurnWithWarning(t *testing.T) {
	s, effects := reduceAll(awaiting(), events(
		protocol.MessageEvent{Content: "partial"},
		protocol.ErrorEvent{Content: "Search backend unavailable"},
	)...)

	assert.Equal(t, []Effect{StopWatchdog{}}, effects)
	assert.Equal(t, PhaseIdle, s.Phase)
	require.Len(t, s.Chat, 3)
	assert.True(t, s.Chat[1].Final)
	assert.Equal(t, RoleWarning, s.Chat[2].Role)
	assert.Equal(t, "⚠ Search backend unavailable", s.Chat[2].HTML())
}

func TestWatchdog(t *testing.T) {
	s := awaiting()

	stale, effects := Reduce(s, WatchdogFired{Turn: s.Turn - 1})
	assert.Equal(t, s, stale)
	assert.Empty(t, effects)

	s, _ = Reduce(s, EventReceived{Event: protocol.MessageEvent{Content: "half a repl"}})
	s, effects = Reduce(s, WatchdogFired{Turn: s.Turn})
	assert.Equal(t, []Effect{EndTurn{}}, effects)
	assert.Equal(t, PhaseIdle, s.Phase)
	last := s.Chat[len(s.Chat)-1]
	assert.Equal(t, RoleWarning, last.Role)
	assert.Equal(t, TimeoutMessage, last.Text)

	// A late terminal for the timed-out turn changes nothing.
	after, _ := Reduce(s, EventReceived{Event: protocol.MessageEvent{Content: "y", Done: true}})
	assert.Equal(t, s, after)
}

func TestNewsAfterTerminalIsApplied(t *testing.T) {
	s, _ := reduceAll(awaiting(), events(protocol.MessageEvent{Done: true})...)
	require.Equal(t, PhaseIdle, s.Phase)

	s, _ = Reduce(s, EventReceived{Event: protocol.NewsEvent{Data: nil}})
	assert.NotNil(t, s.News)
	assert.True(t, s.NewsPanel().Empty)
}

func TestMarkerSelection(t *testing.T) {
	a := protocol.Project{ID: "A", Description: "Dike", Contractor: "GED CONSTRUCTION"}
	b := protocol.Project{ID: "B", Description: "Canal"}

	s, effects := Reduce(Initial(), ProjectSelected{Project: a})
	require.Len(t, effects, 1)
	fa := effects[0].(FetchNews)
	assert.Equal(t, "GED CONSTRUCTION", fa.Criteria.Contractor)
	assert.True(t, s.NewsPanel().Loading)

	s, effects = Reduce(s, ProjectSelected{Project: b})
	fb := effects[0].(FetchNews)
	assert.Equal(t, "B", s.Selected.ID)

	// A's answer arrives after B was picked: dropped.
	s, _ = Reduce(s, NewsLoaded{Seq: fa.Seq, Items: []protocol.Article{{Title: "A news"}}})
	assert.True(t, s.NewsLoading)

	s, _ = Reduce(s, NewsLoaded{Seq: fb.Seq, Items: []protocol.Article{{Title: "B news"}}})
	assert.False(t, s.NewsLoading)
	assert.Equal(t, "B news", s.News[0].Title)
}

func TestNewsEventSupersedesMarkerLookup(t *testing.T) {
	s, effects := Reduce(awaiting(), ProjectSelected{Project: protocol.Project{ID: "A"}})
	seq := effects[0].(FetchNews).Seq

	s, _ = Reduce(s, EventReceived{Event: protocol.NewsEvent{Data: []protocol.Article{{Title: "turn news"}}}})
	s, _ = Reduce(s, NewsLoaded{Seq: seq, Items: []protocol.Article{{Title: "marker news"}}})
	assert.Equal(t, "turn news", s.News[0].Title)
}

func TestNewsLookupFailureShowsEmptyState(t *testing.T) {
	s, effects := Reduce(Initial(), ProjectSelected{Project: protocol.Project{ID: "A"}})
	s, _ = Reduce(s, NewsLoaded{Seq: effects[0].(FetchNews).Seq, Err: errors.New("timeout")})
	assert.True(t, s.NewsPanel().Empty)
	assert.Equal(t, "timeout", s.NewsError)
}

func TestNonRenderingInputs(t *testing.T) {
	s := awaiting()

	after, effects := Reduce(s, DecodeFailed{Err: errors.New("bad frame")})
	assert.Empty(t, effects)
	assert.Equal(t, s.Chat, after.Chat)
	assert.Equal(t, s.Phase, after.Phase)
	assert.Equal(t, 1, after.ProtocolErrors)

	unknown, _ := Reduce(s, EventReceived{Event: protocol.UnknownEvent{Name: "heartbeat"}})
	assert.Equal(t, s, unknown)

	status, _ := Reduce(s, EventReceived{Event: protocol.StatusEvent{Message: "Searching..."}})
	assert.Equal(t, "Searching...", status.StatusText)
	assert.Equal(t, s.Chat, status.Chat)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	s, _ := reduceAll(awaiting(), events(protocol.MessageEvent{Content: "a"})...)
	before := s.Chat[1].Text

	_, _ = Reduce(s, EventReceived{Event: protocol.MessageEvent{Content: "b"}})
	assert.Equal(t, before, s.Chat[1].Text)
}

func TestToolLogIsBounded(t *testing.T) {
	s := Initial()
	for i := 0; i < maxToolLog+10; i++ {
		s, _ = Reduce(s, EventReceived{Event: protocol.ToolEvent{Tool: fmt.Sprint(i)}})
	}
	assert.Len(t, s.Tools, maxToolLog)
	assert.Equal(t, fmt.Sprint(maxToolLog+9), s.Tools[maxToolLog-1].Tool)
}
