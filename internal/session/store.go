package session

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Store holds live sessions in memory. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      *zap.Logger
}

// NewStore creates an empty session store.
func NewStore(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		sessions: make(map[string]*Session),
		log:      log,
	}
}

// GetOrCreate returns the session for id, creating it if absent. An
// empty id always creates a session under a fresh identifier. The
// second return reports whether a new session was created.
func (s *Store) GetOrCreate(id string) (*Session, bool) {
	if id == "" {
		id = NewID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, false
	}
	sess := newSession(id)
	s.sessions[id] = sess
	s.log.Debug("session created", zap.String("session_id", id))
	return sess, true
}

// Get returns the session for id, or nil if it does not exist.
func (s *Store) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Reset discards the session for id and returns a fresh one under a new
// identifier. The old id becomes invalid.
func (s *Store) Reset(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	fresh := newSession(NewID())
	s.sessions[fresh.ID()] = fresh
	s.log.Debug("session reset", zap.String("old_id", id), zap.String("new_id", fresh.ID()))
	return fresh
}

// Delete removes the session for id. Reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// List returns all session IDs in sorted order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
