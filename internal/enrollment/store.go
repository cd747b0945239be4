package enrollment

import (
	"log/slog"
	"sync"
)

// Store holds at most one open Session.
type Store struct {
	mu      sync.RWMutex
	current *Session
}

func NewStore() *Store {
	return &Store{}
}

// Open starts a fresh session, discarding any previous one.
func (st *Store) Open(user User, devices []string) *Session {
	s := newSession(user, devices)

	st.mu.Lock()
	prev := st.current
	st.current = s
	st.mu.Unlock()

	if prev != nil {
		slog.Info("Discarded previous enrollment session", "session_id", prev.ID, "username", prev.User.Username)
	}
	slog.Info("Enrollment session opened", "session_id", s.ID, "username", user.Username)
	return s
}

func (st *Store) Current() (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current, st.current != nil
}

// Close discards the current session. Closing with no session is a no-op.
func (st *Store) Close() {
	st.mu.Lock()
	prev := st.current
	st.current = nil
	st.mu.Unlock()

	if prev != nil {
		slog.Info("Enrollment session closed", "session_id", prev.ID, "username", prev.User.Username)
	}
}

// Reset replaces the current session with a fresh one for the same user.
func (st *Store) Reset() (*Session, bool) {
	st.mu.RLock()
	prev := st.current
	st.mu.RUnlock()

	if prev == nil {
		return nil, false
	}
	return st.Open(prev.User, prev.devices), true
}

func (st *Store) isCurrent(s *Session) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current != nil && st.current == s
}
