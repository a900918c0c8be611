package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodguard-be/pkg/clientstate"
	"floodguard-be/pkg/events"
	"floodguard-be/pkg/mapview"
	"floodguard-be/pkg/protocol"
	"floodguard-be/pkg/session"
)

func init() {
	color.NoColor = true
}

func coord(lat, lon float64) *protocol.Coordinate {
	return &protocol.Coordinate{Lat: lat, Lon: lon}
}

func sampleProjects() []protocol.Project {
	return []protocol.Project{
		{ID: "P-1", Description: "Construction of Dike, Dagupan", Municipality: "DAGUPAN CITY", Province: "PANGASINAN", Coordinate: coord(16.04, 120.33), ContractCost: 1500000},
		{ID: "P-2", Description: "Flood Mitigation Structure", Coordinate: coord(16.05, 120.34)},
		{ID: "P-3", Description: "Drainage Improvement, Manila", Coordinate: coord(14.6, 121.0)},
		{ID: "P-4", Description: "Unlocated Revetment"},
	}
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "floodguard.yaml")
	yml := `server_url: ws://explorer.example:9000/api/chat
watchdog: 45s
reconnect:
  interval: 1s
  exponential: true
  max_interval: 20s
  max_attempts: 5
cluster_cell_deg: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := ReadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "ws://explorer.example:9000/api/chat", cfg.ServerURL)
	assert.Equal(t, 45*time.Second, cfg.Watchdog)
	assert.Equal(t, session.RetryPolicy{Interval: time.Second, Exponential: true, MaxInterval: 20 * time.Second, MaxAttempts: 5}, cfg.Reconnect)
	assert.Equal(t, 0.5, cfg.CellDeg)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultConfig().APIURL, cfg.APIURL)
	assert.Equal(t, 20, cfg.MaxListed)
}

func TestReadConfigMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	cfg, err := ReadConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = ReadConfig(path, true)
	assert.ErrorContains(t, err, "reading config")
}

func TestReadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watchdog: [1, 2"), 0o600))

	_, err := ReadConfig(path, true)
	assert.ErrorContains(t, err, "parsing config")
}

func TestTerminalText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Found <strong>12</strong> projects.", "Found 12 projects."},
		{"<strong>Total: <em>₱1.5M</em></strong>", "Total: ₱1.5M"},
		{"line one<br>line two", "line one\nline two"},
		{"a &lt; b &amp;&amp; c", "a < b && c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, terminalText(tt.in))
	}
}

func newTestRenderer(out *bytes.Buffer) *Renderer {
	cfg := DefaultConfig()
	cfg.MaxListed = 2
	r := NewRenderer(out, cfg)
	r.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	r.clear = false
	return r
}

func TestFrame(t *testing.T) {
	projects := sampleProjects()
	s := clientstate.Initial()
	s.Phase = clientstate.PhaseAwaiting
	s.StatusText = "Searching projects..."
	s.Connection = session.StateOpen
	s.Chat = []clientstate.ChatEntry{
		{Role: clientstate.RoleUser, Text: "Show me dikes <in> Pangasinan", Final: true},
		{Role: clientstate.RoleAssistant, Text: "Found **12** projects", Final: false},
		{Role: clientstate.RoleWarning, Text: "Request timed out", Final: true},
	}
	s.Projects = projects
	s.Selected = &projects[0]

	frame := newTestRenderer(&bytes.Buffer{}).Frame(s)

	assert.Contains(t, frame, "You: Show me dikes <in> Pangasinan")
	assert.Contains(t, frame, "FloodGuard: Found 12 projects ...")
	assert.Contains(t, frame, clientstate.WarningPrefix+"Request timed out")
	assert.Contains(t, frame, "4 projects, 2 markers, 1 clusters, 1 without coordinates")
	assert.Contains(t, frame, "1. P-3")
	assert.Contains(t, frame, "*  2. P-1")
	assert.Contains(t, frame, "... and 1 more")
	assert.Contains(t, frame, "Construction of Dike, Dagupan")
	assert.Contains(t, frame, "DAGUPAN CITY, PANGASINAN")
	assert.Contains(t, frame, "₱1,500,000.00")
	assert.Contains(t, frame, "[busy] Searching projects...")
	assert.Contains(t, frame, "(open)")
}

func TestFrameEmptyStates(t *testing.T) {
	frame := newTestRenderer(&bytes.Buffer{}).Frame(clientstate.Initial())

	assert.Contains(t, frame, "Select a project with /select <n>.")
	assert.Contains(t, frame, "No related news articles found.")
	assert.Contains(t, frame, "0 projects, 0 markers, 0 clusters")
	assert.Contains(t, frame, "(default)")
	assert.Contains(t, frame, "[ready]")

	s := clientstate.Initial()
	s.NewsLoading = true
	assert.Contains(t, newTestRenderer(&bytes.Buffer{}).Frame(s), "Loading related news...")
}

func TestDrawSkipsUnchangedFrames(t *testing.T) {
	var out bytes.Buffer
	r := newTestRenderer(&out)

	r.Draw(clientstate.Initial())
	first := out.Len()
	r.Draw(clientstate.Initial())
	assert.Equal(t, first, out.Len())

	s := clientstate.Initial()
	s.StatusText = "Processing your question..."
	s.Phase = clientstate.PhaseAwaiting
	r.Draw(s)
	assert.Greater(t, out.Len(), first)
}

type fakeController struct {
	state     clientstate.State
	submitted []string
	selected  []protocol.Project
	err       error
}

func (f *fakeController) Submit(u string) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, u)
	return nil
}

func (f *fakeController) SelectProject(p protocol.Project) { f.selected = append(f.selected, p) }
func (f *fakeController) Snapshot() clientstate.State     { return f.state }

func newTestRepl(ctrl *fakeController, out *bytes.Buffer) *repl {
	return &repl{ctrl: ctrl, renderer: newTestRenderer(out), out: out, cellDeg: mapview.DefaultCellDeg}
}

func TestReplSelectActivatesMarker(t *testing.T) {
	ctrl := &fakeController{state: clientstate.Initial()}
	ctrl.state.Projects = sampleProjects()
	r := newTestRepl(ctrl, &bytes.Buffer{})

	require.NoError(t, r.handle("/select 2"))
	require.Len(t, ctrl.selected, 1)
	assert.Equal(t, "P-1", ctrl.selected[0].ID)

	require.NoError(t, r.handle("/select 3"))
	assert.Equal(t, "P-2", ctrl.selected[1].ID)

	assert.ErrorContains(t, r.handle("/select 4"), "no project 4")
	assert.ErrorContains(t, r.handle("/select x"), "usage")
	assert.Len(t, ctrl.selected, 2)
}

func TestReplCommands(t *testing.T) {
	var out bytes.Buffer
	ctrl := &fakeController{state: clientstate.Initial()}
	r := newTestRepl(ctrl, &out)

	require.NoError(t, r.handle("  Show me 2025 projects in Pangasinan  "))
	assert.Equal(t, []string{"Show me 2025 projects in Pangasinan"}, ctrl.submitted)

	require.NoError(t, r.handle(""))
	assert.Len(t, ctrl.submitted, 1)

	require.NoError(t, r.handle("/news"))
	assert.Contains(t, out.String(), "No related news articles found.")

	assert.ErrorIs(t, r.handle("/quit"), errQuit)
	assert.ErrorContains(t, r.handle("/map"), "unknown command")

	ctrl.err = clientstate.ErrTurnInFlight
	assert.ErrorContains(t, r.handle("again"), "still in progress")

	ctrl.err = clientstate.ErrCredentialsMissing
	assert.NoError(t, r.handle("again"))
}

func TestReplRunStopsOnQuit(t *testing.T) {
	ctrl := &fakeController{state: clientstate.Initial()}
	r := newTestRepl(ctrl, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	in := strings.NewReader("first question\n/quit\nnever sent\n")
	require.NoError(t, r.run(ctx, in))
	assert.Equal(t, []string{"first question"}, ctrl.submitted)
}

func TestPrintTrace(t *testing.T) {
	var out bytes.Buffer
	ev := events.ToolTrace{
		SessionID: "s1",
		Tool:      "search_projects",
		Query:     "dikes in Pangasinan",
		Results:   12,
		Duration:  42 * time.Millisecond,
		At:        time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC),
	}.Event()

	printTrace(&out, ev)
	line := out.String()
	assert.Contains(t, line, "[s1]")
	assert.Contains(t, line, "search_projects")
	assert.Contains(t, line, "results=12")
	assert.Contains(t, line, "42ms")
	assert.Contains(t, line, `query="dikes in Pangasinan"`)
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-a")
	t.Setenv("OPENAI_API_KEY", "")
	anthropicKey, openaiKey = "", "flag-o"
	t.Cleanup(func() { anthropicKey, openaiKey = "", "" })

	assert.Equal(t, protocol.Credentials{"anthropic_key": "env-a", "openai_key": "flag-o"}, credentials())

	openaiKey = ""
	assert.Equal(t, protocol.Credentials{"anthropic_key": "env-a"}, credentials())
}
