package memory

import (
	"sync"
	"time"

	"floodguard-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

const (
	DefaultMaxMessages = 12
	DefaultIdleExpiry  = time.Hour
)

// SessionRepository keeps a sliding window of conversation per session id.
// Sessions idle for longer than the expiry are forgotten.
type SessionRepository struct {
	cache       *cache.Cache
	maxMessages int
	mu          sync.Mutex
}

func NewSessionRepository(maxMessages int, idle time.Duration) *SessionRepository {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if idle <= 0 {
		idle = DefaultIdleExpiry
	}
	return &SessionRepository{
		cache:       cache.New(idle, 10*time.Minute),
		maxMessages: maxMessages,
	}
}

// Get returns a copy of the session, or false if none is stored.
func (r *SessionRepository) Get(sessionID string) (store.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.load(sessionID)
	if !ok {
		return store.Session{}, false
	}
	out := *s
	out.Messages = append([]store.Message(nil), s.Messages...)
	if s.LastContext != nil {
		lc := *s.LastContext
		out.LastContext = &lc
	}
	return out, true
}

// Recent returns at most n of the newest messages, oldest first.
func (r *SessionRepository) Recent(sessionID string, n int) []store.Message {
	s, ok := r.Get(sessionID)
	if !ok || n <= 0 {
		return nil
	}
	if len(s.Messages) > n {
		return s.Messages[len(s.Messages)-n:]
	}
	return s.Messages
}

// AppendExchange records one user/assistant pair, trims to the window and
// refreshes the idle expiry. A nil context keeps the previous one.
func (r *SessionRepository) AppendExchange(sessionID, human, assistant string, ctx *store.SearchContext) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.load(sessionID)
	if !ok {
		s = &store.Session{ID: sessionID}
	}
	msgs := append(s.Messages,
		store.Message{Role: store.RoleUser, Content: human},
		store.Message{Role: store.RoleAssistant, Content: assistant},
	)
	if len(msgs) > r.maxMessages {
		msgs = append([]store.Message(nil), msgs[len(msgs)-r.maxMessages:]...)
	}
	s.Messages = msgs
	if ctx != nil {
		c := *ctx
		s.LastContext = &c
	}
	r.cache.Set(sessionID, s, cache.DefaultExpiration)
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}

func (r *SessionRepository) load(sessionID string) (*store.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.Session), true
	}
	return nil, false
}
