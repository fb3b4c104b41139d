package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"idwallet/internal/auth/models"
	"idwallet/pkg/platform/sentinel"
)

// In-memory stores cover the documented single-process scope and keep tests
// hermetic. They intentionally favor clarity over performance.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]models.User
	byLogin map[string]uuid.UUID
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[uuid.UUID]models.User),
		byLogin: make(map[string]uuid.UUID),
	}
}

func (s *InMemoryUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, login := range loginKeys(user) {
		if _, taken := s.byLogin[login]; taken {
			return sentinel.ErrConflict
		}
	}
	s.users[user.ID] = user
	for _, login := range loginKeys(user) {
		s.byLogin[login] = user.ID
	}
	return nil
}

func (s *InMemoryUserStore) FindByLogin(_ context.Context, login string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byLogin[login]; ok {
		return s.users[id], nil
	}
	return models.User{}, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) FindByID(_ context.Context, id uuid.UUID) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return models.User{}, sentinel.ErrNotFound
}

func loginKeys(user models.User) []string {
	keys := make([]string, 0, 3)
	for _, k := range []string{user.Username, user.Email, user.Phone} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]models.Session
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[uuid.UUID]models.Session)}
}

func (s *InMemorySessionStore) Save(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, id uuid.UUID) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[id]; ok {
		return session, nil
	}
	return models.Session{}, sentinel.ErrNotFound
}

func (s *InMemorySessionStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *InMemorySessionStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

func (s *InMemorySessionStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	swept := 0
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			swept++
		}
	}
	return swept, nil
}
