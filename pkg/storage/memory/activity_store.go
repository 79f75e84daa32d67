package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/storage"
)

// ActivityStore is an in-memory implementation of storage.ActivityStore.
type ActivityStore struct {
	mu     sync.RWMutex
	nextID int64
	byUser map[string][]models.Activity
}

var _ storage.ActivityStore = (*ActivityStore)(nil)

// NewActivityStore creates a new in-memory activity store.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{byUser: make(map[string][]models.Activity)}
}

func (s *ActivityStore) Insert(_ context.Context, activity *models.Activity) error {
	if activity == nil || activity.UserID == "" || activity.Type == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	activity.ID = s.nextID
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	s.byUser[activity.UserID] = append(s.byUser[activity.UserID], *activity)
	return nil
}

func (s *ActivityStore) ListByUser(_ context.Context, userID string, limit int) ([]models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := append([]models.Activity(nil), s.byUser[userID]...)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
