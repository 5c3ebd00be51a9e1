package memory

import (
	"context"
	"sync"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// UserStore is an in-memory implementation of app.UserStore.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.UserDetail
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.UserDetail)}
}

func (s *UserStore) Upsert(_ context.Context, user domain.UserDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.UserID] = user
	return nil
}

func (s *UserStore) Get(_ context.Context, userID string) (domain.UserDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.UserDetail{}, domain.ErrUserNotFound
	}
	return user, nil
}
