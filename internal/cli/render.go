package cli

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"floodguard-be/pkg/clientstate"
	"floodguard-be/pkg/details"
	"floodguard-be/pkg/protocol"
)

const clearScreen = "\033[H\033[2J"

var (
	strongTag = regexp.MustCompile(`<strong>(.*?)</strong>`)
	emTag     = regexp.MustCompile(`<em>(.*?)</em>`)

	heading   = color.New(color.FgCyan, color.Bold)
	bold      = color.New(color.Bold)
	italic    = color.New(color.Italic)
	userLabel = color.New(color.FgGreen, color.Bold)
	botLabel  = color.New(color.FgBlue, color.Bold)
	warnText  = color.New(color.FgYellow)
	dim       = color.New(color.Faint)
	errText   = color.New(color.FgRed)
)

// terminalText turns the chat HTML subset into ANSI styled plain text.
func terminalText(h string) string {
	h = emTag.ReplaceAllStringFunc(h, func(m string) string {
		return italic.Sprint(emTag.FindStringSubmatch(m)[1])
	})
	h = strongTag.ReplaceAllStringFunc(h, func(m string) string {
		return bold.Sprint(strongTag.FindStringSubmatch(m)[1])
	})
	h = strings.ReplaceAll(h, "<br>", "\n")
	return html.UnescapeString(h)
}

// Renderer redraws the whole screen whenever the visible frame changes.
type Renderer struct {
	out       io.Writer
	cellDeg   float64
	maxListed int
	now       func() time.Time
	clear     bool

	mu   sync.Mutex
	last string
}

func NewRenderer(out io.Writer, cfg *Config) *Renderer {
	return &Renderer{
		out:       out,
		cellDeg:   cfg.CellDeg,
		maxListed: cfg.MaxListed,
		now:       time.Now,
		clear:     true,
	}
}

// Draw writes the frame for s unless it equals the previous one.
func (r *Renderer) Draw(s clientstate.State) {
	frame := r.Frame(s)

	r.mu.Lock()
	defer r.mu.Unlock()
	if frame == r.last {
		return
	}
	r.last = frame
	if r.clear {
		fmt.Fprint(r.out, clearScreen)
	}
	fmt.Fprint(r.out, frame)
}

// Frame renders all four panels: chat, map, details and status.
func (r *Renderer) Frame(s clientstate.State) string {
	var b strings.Builder
	r.chat(&b, s)
	r.mapSummary(&b, s)
	r.card(&b, s)
	r.news(&b, s)
	r.status(&b, s)
	return b.String()
}

func section(b *strings.Builder, title string) {
	b.WriteString(heading.Sprintf("== %s ==", title))
	b.WriteString("\n")
}

func (r *Renderer) chat(b *strings.Builder, s clientstate.State) {
	section(b, "Chat")
	if len(s.Chat) == 0 {
		b.WriteString(dim.Sprint("Ask about flood control projects, e.g. \"Show me 2025 projects in Pangasinan\"."))
		b.WriteString("\n")
	}
	for _, e := range s.Chat {
		text := terminalText(e.HTML())
		switch e.Role {
		case clientstate.RoleUser:
			b.WriteString(userLabel.Sprint("You: ") + text)
		case clientstate.RoleAssistant:
			b.WriteString(botLabel.Sprint("FloodGuard: ") + text)
			if !e.Final {
				b.WriteString(dim.Sprint(" ..."))
			}
		default:
			b.WriteString(warnText.Sprint(text))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func formatBBox(box protocol.BBox) string {
	return fmt.Sprintf("[%.4f, %.4f] - [%.4f, %.4f]", box.MinLon(), box.MinLat(), box.MaxLon(), box.MaxLat())
}

func (r *Renderer) mapSummary(b *strings.Builder, s clientstate.State) {
	section(b, "Map")
	view := s.MapView(r.cellDeg)
	fmt.Fprintf(b, "Viewport %s (%s)\n", formatBBox(s.Viewport), s.ViewportSource)

	clusters := 0
	for _, m := range view.Markers {
		if m.Size() > 1 {
			clusters++
		}
	}
	fmt.Fprintf(b, "%d projects, %d markers, %d clusters", len(s.Projects), len(view.Markers), clusters)
	if view.Unplaced > 0 {
		fmt.Fprintf(b, ", %d without coordinates", view.Unplaced)
	}
	b.WriteString("\n")

	flat := view.Flatten()
	for i, p := range flat {
		if i == r.maxListed {
			b.WriteString(dim.Sprintf("  ... and %d more\n", len(flat)-i))
			break
		}
		marker := " "
		if s.Selected != nil && s.Selected.ID == p.ID {
			marker = "*"
		}
		fmt.Fprintf(b, " %s%3d. %s  %s\n", marker, i+1, p.ID, truncate(p.Description, 60))
	}
	b.WriteString("\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func (r *Renderer) card(b *strings.Builder, s clientstate.State) {
	section(b, "Details")
	c, ok := s.Card(r.now())
	if !ok {
		b.WriteString(dim.Sprint("Select a project with /select <n>."))
		b.WriteString("\n\n")
		return
	}
	b.WriteString(bold.Sprint(c.Title))
	b.WriteString("\n")
	rows := [][2]string{
		{"Project ID", c.ID},
		{"Contractor", c.Contractor},
		{"Contract Cost", c.ContractCost},
		{"ABC", c.ABC},
		{"Location", c.Location},
		{"Type of Work", c.TypeOfWork},
		{"Year", c.Year},
		{"Start Date", c.StartDate},
		{"Completion", c.Completion},
		{"Status", string(c.Status)},
		{"Coordinates", c.Coordinate},
	}
	for _, row := range rows {
		fmt.Fprintf(b, "  %-14s %s\n", row[0]+":", row[1])
	}
	b.WriteString("\n")
}

func (r *Renderer) news(b *strings.Builder, s clientstate.State) {
	section(b, "Related News")
	writeNews(b, s.NewsPanel())
	if s.NewsError != "" {
		b.WriteString(errText.Sprint(s.NewsError))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeNews(b *strings.Builder, panel details.NewsPanel) {
	if panel.Loading || panel.Empty {
		b.WriteString(dim.Sprint(panel.Notice))
		b.WriteString("\n")
		return
	}
	for i, item := range panel.Items {
		fmt.Fprintf(b, "%d. %s\n", i+1, bold.Sprint(item.Title))
		meta := item.Source
		if item.Date != "" {
			meta += " | " + item.Date
		}
		fmt.Fprintf(b, "   %s\n", dim.Sprint(meta))
		if item.Snippet != "" {
			fmt.Fprintf(b, "   %s\n", item.Snippet)
		}
		if item.URL != "" {
			fmt.Fprintf(b, "   %s\n", item.URL)
		}
	}
}

func (r *Renderer) status(b *strings.Builder, s clientstate.State) {
	conn := string(s.Connection)
	if s.Busy() {
		status := s.StatusText
		if status == "" {
			status = "Waiting for response..."
		}
		fmt.Fprintf(b, "%s %s  %s\n", warnText.Sprint("[busy]"), status, dim.Sprintf("(%s)", conn))
		return
	}
	fmt.Fprintf(b, "%s  %s\n", userLabel.Sprint("[ready]"), dim.Sprintf("(%s) /select <n>  /news  /quit", conn))
}

// NewsPanel renders only the news panel, for /news.
func (r *Renderer) NewsPanel(s clientstate.State) string {
	var b strings.Builder
	r.news(&b, s)
	return b.String()
}
