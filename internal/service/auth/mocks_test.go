package auth

import (
	"context"
	"sync"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/store"
	"github.com/google/uuid"
)

type memoryUserStore struct {
	mu    sync.Mutex
	users map[int64]*domain.User
}

func newMemoryUserStore(users ...*domain.User) *memoryUserStore {
	s := &memoryUserStore{users: make(map[int64]*domain.User)}
	for i, u := range users {
		u.ID = int64(i + 1)
		s.users[u.ID] = u
	}
	return s
}

func (s *memoryUserStore) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = int64(len(s.users) + 1)
	s.users[user.ID] = user
	return nil
}

func (s *memoryUserStore) Update(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *memoryUserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (s *memoryUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *memoryUserStore) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	u.LastLogin = &at
	return nil
}

func (s *memoryUserStore) WithTx(tx store.DBTX) store.UserStore { return s }

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.Session
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[uuid.UUID]*domain.Session)}
}

func (s *memorySessionStore) Create(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *session
	s.sessions[session.ID] = &c
	return nil
}

func (s *memorySessionStore) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	c := *session
	return &c, nil
}

func (s *memorySessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return store.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *memorySessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *memorySessionStore) WithTx(tx store.DBTX) store.SessionStore { return s }

func (s *memorySessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
