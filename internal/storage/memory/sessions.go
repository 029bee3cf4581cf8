package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/OktayBayram/nyx-game/internal/models"
	"github.com/OktayBayram/nyx-game/internal/storage"
)

// SessionStore keeps the most recent finished sessions in memory.
type SessionStore struct {
	mu    sync.RWMutex
	size  int
	order []string // newest last
	byID  map[string]models.Session
}

func NewSessionStore(size int) *SessionStore {
	if size < 1 {
		size = 1
	}
	return &SessionStore{
		size: size,
		byID: make(map[string]models.Session, size),
	}
}

// Save records s, assigning an id when it has none, and evicts the oldest
// session once the store is full.
func (s *SessionStore) Save(_ context.Context, session models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.Path = append([]string(nil), session.Path...)
	session.Players = append([]string(nil), session.Players...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[session.ID]; !ok {
		s.order = append(s.order, session.ID)
	}
	s.byID[session.ID] = session
	for len(s.order) > s.size {
		delete(s.byID, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// Recent returns up to n sessions, newest first.
func (s *SessionStore) Recent(_ context.Context, n int) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.order) {
		n = len(s.order)
	}
	out := make([]models.Session, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.byID[s.order[i]])
	}
	return out, nil
}

// Get returns a session by id.
func (s *SessionStore) Get(_ context.Context, id string) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byID[id]
	if !ok {
		return models.Session{}, storage.ErrNotFound
	}
	return session, nil
}

func (s *SessionStore) Close() error { return nil }
