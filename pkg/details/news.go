package details

import (
	"net/url"
	"regexp"
	"strings"

	"floodguard-be/pkg/protocol"
)

// NewsTopic prefixes every web news search.
const NewsTopic = "Philippines flood control"

// NewsCriteria keys a news lookup for one project.
type NewsCriteria struct {
	Query      string `query:"query"`
	Contractor string `query:"contractor"`
	Location   string `query:"location"`
	ProjectID  string `query:"project_id"`
}

// NewsQuery derives the lookup criteria from the project's description,
// contractor and location.
func NewsQuery(p protocol.Project) NewsCriteria {
	loc := p.Municipality
	if p.Province != "" {
		loc = strings.TrimSpace(loc + " " + p.Province)
	}
	return NewsCriteria{
		Query:      p.Description,
		Contractor: p.Contractor,
		Location:   loc,
		ProjectID:  p.ID,
	}
}

// Values encodes the criteria as query parameters for GET /api/news.
func (c NewsCriteria) Values() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s = strings.TrimSpace(s); s != "" {
			v.Set(k, s)
		}
	}
	set("query", c.Query)
	set("contractor", c.Contractor)
	set("location", c.Location)
	set("project_id", c.ProjectID)
	return v
}

// Empty reports whether the criteria carry nothing to search on.
func (c NewsCriteria) Empty() bool {
	return strings.TrimSpace(c.Query+c.Contractor+c.Location+c.ProjectID) == ""
}

var (
	wordPattern = regexp.MustCompile(`\w+`)
	stopWords   = map[string]struct{}{
		"construction": {}, "of": {}, "the": {}, "a": {}, "an": {}, "in": {},
		"at": {}, "to": {}, "for": {}, "and": {}, "or": {},
	}
)

const maxKeywords = 6

// Keywords keeps the first few meaningful words of a project description.
func Keywords(description string) string {
	var out []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(description), -1) {
		if len(w) <= 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out = append(out, w)
		if len(out) == maxKeywords {
			break
		}
	}
	return strings.Join(out, " ")
}

// SearchText builds the web search phrase for the criteria.
func (c NewsCriteria) SearchText() string {
	terms := []string{NewsTopic}
	if kw := Keywords(c.Query); kw != "" {
		terms = append(terms, kw)
	}
	if c.Contractor != "" && c.Contractor != notAvailable {
		terms = append(terms, c.Contractor)
	}
	if c.Location != "" {
		terms = append(terms, c.Location)
	}
	return strings.Join(terms, " ")
}

// NewsPanel is the rendered news list. Empty and loading are explicit
// states, never a blank list.
type NewsPanel struct {
	Loading bool
	Empty   bool
	Notice  string
	Items   []NewsItem
}

type NewsItem struct {
	Title   string
	Snippet string
	Source  string
	Date    string
	URL     string
}

const (
	LoadingNotice = "Loading related news..."
	EmptyNotice   = "No related news articles found."
)

// RenderNews formats the news list.
func RenderNews(items []protocol.Article, loading bool) NewsPanel {
	if loading {
		return NewsPanel{Loading: true, Notice: LoadingNotice}
	}
	if len(items) == 0 {
		return NewsPanel{Empty: true, Notice: EmptyNotice}
	}
	panel := NewsPanel{Items: make([]NewsItem, 0, len(items))}
	for _, a := range items {
		panel.Items = append(panel.Items, NewsItem{
			Title:   orNA(a.Title),
			Snippet: a.Snippet,
			Source:  orNA(a.Source),
			Date:    a.PublishedDate,
			URL:     a.URL,
		})
	}
	return panel
}
