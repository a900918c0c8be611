package store

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	QueryTypeProjects = "projects"
	QueryTypeGeneral  = "general"
)

// Message is one conversation entry in LLM chat format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SearchContext remembers what the previous turn looked up, for follow-ups
// like "what about the largest?".
type SearchContext struct {
	QueryType   string    `json:"query_type"`
	ResultCount int       `json:"result_count"`
	Province    string    `json:"province,omitempty"`
	Year        int       `json:"year,omitempty"`
	Contractor  string    `json:"contractor,omitempty"`
	At          time.Time `json:"timestamp"`
}

// Session is the in-memory conversation state of one chat session id.
type Session struct {
	ID          string         `json:"id"`
	Messages    []Message      `json:"messages"`
	LastContext *SearchContext `json:"last_context"`
}
