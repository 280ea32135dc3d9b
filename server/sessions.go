package server

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is a workspace whose definitions prefix every evaluation made in
// it. Definitions only grow; there is no way to retract one.
type Session struct {
	ID      string
	Name    string
	Created time.Time

	defining    sync.Mutex // held while a definition is checked and added
	mu          sync.Mutex
	definitions []string
	bindings    []string
	lastUsed    time.Time
}

// Prelude returns the accumulated definitions joined by newlines, with a
// trailing newline when not empty.
func (s *Session) Prelude() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.definitions) == 0 {
		return ""
	}
	return strings.Join(s.definitions, "\n") + "\n"
}

// Bindings returns the top-level names defined so far, oldest first.
func (s *Session) Bindings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bindings...)
}

func (s *Session) define(source string, names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions = append(s.definitions, source)
	s.bindings = append(s.bindings, names...)
}

// SessionStore manages workspace sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create creates a new session with an optional name.
func (s *SessionStore) Create(name string) *Session {
	now := s.now()
	session := &Session{
		ID:       uuid.NewString(),
		Name:     name,
		Created:  now,
		lastUsed: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	serverLog.Debugf("session %s created", session.ID)
	return session
}

// Get retrieves a session by ID and marks it as used.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	session.mu.Lock()
	session.lastUsed = s.now()
	session.mu.Unlock()
	return session, true
}

// Destroy removes a session. It reports whether the session existed.
func (s *SessionStore) Destroy(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions that haven't been used within the TTL.
func (s *SessionStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	removed := 0
	for id, session := range s.sessions {
		session.mu.Lock()
		idle := session.lastUsed.Before(cutoff)
		session.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		serverLog.Infof("expired %d idle sessions", removed)
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *SessionStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
