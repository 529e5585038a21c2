package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxquery/internal/logging"
	"github.com/teemow/inboxquery/internal/sqlstore"
)

// DefaultTimeout is how long an idle session is kept.
const DefaultTimeout = 24 * time.Hour

const cleanupInterval = 10 * time.Minute

// Manager keeps one Session per MCP client session and publishes stored
// results on its Hub.
type Manager struct {
	sessions map[string]*Session
	latest   string
	mu       sync.RWMutex

	hub            *Hub
	cleanupTicker  *time.Ticker
	cleanupDone    chan struct{}
	stopOnce       sync.Once
	sessionTimeout time.Duration
	logger         *slog.Logger
}

// NewManager creates a manager and starts its idle-session cleanup loop.
func NewManager(hub *Hub, timeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if hub == nil {
		hub = NewHub(nil)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	m := &Manager{
		sessions:       make(map[string]*Session),
		hub:            hub,
		cleanupTicker:  time.NewTicker(cleanupInterval),
		cleanupDone:    make(chan struct{}),
		sessionTimeout: timeout,
		logger:         logger,
	}
	go m.cleanupLoop()
	return m
}

// IDFromContext returns the MCP client session id carried by ctx, or
// DefaultID.
func IDFromContext(ctx context.Context) string {
	if cs := mcpserver.ClientSessionFromContext(ctx); cs != nil && cs.SessionID() != "" {
		return cs.SessionID()
	}
	return DefaultID
}

// Hub returns the result event hub.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Get returns the session for id, creating it on first use. An empty id
// selects DefaultID.
func (m *Manager) Get(id string) *Session {
	if id == "" {
		id = DefaultID
	}
	now := time.Now()

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch(now)
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.touch(now)
		return s
	}
	s = newSession(id)
	m.sessions[id] = s
	m.logger.Debug("session created", slog.String(logging.KeySession, id))
	return s
}

// FromContext returns the session for the client that issued the request.
func (m *Manager) FromContext(ctx context.Context) *Session {
	return m.Get(IDFromContext(ctx))
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Latest returns the session that stored the most recent result.
func (m *Manager) Latest() (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == "" {
		return nil, false
	}
	s, ok := m.sessions[m.latest]
	return s, ok
}

// Record stores rs as the latest result of s and notifies subscribers.
func (m *Manager) Record(s *Session, sql string, rs *sqlstore.ResultSet) Result {
	r := s.StoreResult(sql, rs)

	m.mu.Lock()
	m.latest = s.ID
	m.mu.Unlock()

	rows := 0
	if rs != nil {
		rows = len(rs.Rows)
	}
	n := m.hub.Broadcast(Event{Session: s.ID, ResultID: r.ID, Rows: rows})
	m.logger.Debug("result published",
		slog.String(logging.KeySession, s.ID),
		logging.Rows(rows),
		slog.Int("subscribers", n))
	return r
}

// Remove drops a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	if m.latest == id {
		m.latest = ""
	}
}

// List returns the ids of all sessions, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RegisterHooks removes a session when its MCP client disconnects.
func (m *Manager) RegisterHooks(hooks *mcpserver.Hooks) {
	hooks.AddOnUnregisterSession(func(_ context.Context, cs mcpserver.ClientSession) {
		m.Remove(cs.SessionID())
	})
}

// Expire removes sessions idle for longer than the timeout and returns how
// many were removed.
func (m *Manager) Expire(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	expired := 0
	for id, s := range m.sessions {
		if id == DefaultID {
			continue
		}
		if now.Sub(s.idleSince()) > m.sessionTimeout {
			delete(m.sessions, id)
			if m.latest == id {
				m.latest = ""
			}
			expired++
		}
	}
	return expired
}

func (m *Manager) cleanupLoop() {
	for {
		select {
		case now := <-m.cleanupTicker.C:
			if n := m.Expire(now); n > 0 {
				m.logger.Info("Cleaned up expired sessions", "count", n)
			}
		case <-m.cleanupDone:
			return
		}
	}
}

// Stop stops the cleanup loop.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.cleanupTicker.Stop()
		close(m.cleanupDone)
	})
}
