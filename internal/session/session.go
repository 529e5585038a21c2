package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/inboxquery/internal/sqlstore"
)

// DefaultID identifies the session used when a request carries no MCP
// client session, as with the stdio transport.
const DefaultID = "default"

// Result is one stored query result.
type Result struct {
	ID        string              `json:"id"`
	SQL       string              `json:"sql"`
	Set       *sqlstore.ResultSet `json:"result"`
	CreatedAt time.Time           `json:"created_at"`
}

// Session holds the query state of one client: the uploaded table and the
// last result.
type Session struct {
	ID string

	mu         sync.RWMutex
	table      string
	result     *Result
	lastAccess time.Time
}

func newSession(id string) *Session {
	return &Session{ID: id, lastAccess: time.Now()}
}

// Table returns the uploaded table name, or "".
func (s *Session) Table() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// SetTable records the uploaded table.
func (s *Session) SetTable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = name
}

// LastResult returns the most recent result.
func (s *Session) LastResult() (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// StoreResult replaces the last result and returns it with a fresh id.
func (s *Session) StoreResult(sql string, rs *sqlstore.ResultSet) Result {
	r := Result{
		ID:        uuid.NewString(),
		SQL:       sql,
		Set:       rs,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.result = &r
	s.mu.Unlock()
	return r
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}
