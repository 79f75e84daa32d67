package postgres

import (
	"context"
	"fmt"

	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/storage"
)

// UserStore implements storage.UserStore on Postgres.
type UserStore struct {
	pool *Pool
}

var _ storage.UserStore = (*UserStore)(nil)

// NewUserStore creates a new Postgres user store.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) Insert(ctx context.Context, user *models.User) error {
	if user == nil || user.ID == "" || user.Pubkey == "" {
		return storage.ErrInvalidInput
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, pubkey, ciphertext, iv, salt)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, user.ID, user.Pubkey, user.Ciphertext, user.IV, user.Salt).Scan(&user.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, pubkey, ciphertext, iv, salt, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Pubkey, &u.Ciphertext, &u.IV, &u.Salt, &u.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
