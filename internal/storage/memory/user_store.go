package memory

import (
	"context"
	"sync"

	"katlog/internal/domain"
	"katlog/internal/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
type UserStore struct {
	mu   sync.RWMutex
	byID map[string]*domain.User
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{byID: make(map[string]*domain.User)}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

// Put stores or replaces a user. Not part of the storage.UserStore contract.
func (s *UserStore) Put(u *domain.User) error {
	if u == nil || u.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userCopy := *u
	s.byID[u.ID] = &userCopy
	return nil
}

// GetUserByID retrieves a user. Returns ErrNotFound if the user does not exist.
func (s *UserStore) GetUserByID(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.byID[userID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	userCopy := *u
	return &userCopy, nil
}
