package postgres

import (
	"context"
	"fmt"

	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/storage"
)

// ActivityStore implements storage.ActivityStore on Postgres.
type ActivityStore struct {
	pool *Pool
}

var _ storage.ActivityStore = (*ActivityStore)(nil)

// NewActivityStore creates a new Postgres activity store.
func NewActivityStore(pool *Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

func (s *ActivityStore) Insert(ctx context.Context, a *models.Activity) error {
	if a == nil || a.UserID == "" || a.Type == "" {
		return storage.ErrInvalidInput
	}
	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO activities (user_id, type, token, amount, signature, metadata)
		VALUES ($1, $2, $3, $4::text::numeric, NULLIF($5, ''), $6)
		RETURNING id, created_at
	`, a.UserID, a.Type, a.Token, a.Amount, a.Signature, metadata).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *ActivityStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, type, token, amount::text, COALESCE(signature, ''), metadata, created_at
		FROM activities
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []models.Activity
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Token, &a.Amount, &a.Signature, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
