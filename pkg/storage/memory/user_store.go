package memory

import (
	"context"
	"sync"
	"time"

	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

var _ storage.UserStore = (*UserStore)(nil)

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]models.User)}
}

func (s *UserStore) Insert(_ context.Context, user *models.User) error {
	if user == nil || user.ID == "" || user.Pubkey == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return storage.ErrDuplicateKey
	}
	stored := *user
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = stored
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return &user, nil
}
