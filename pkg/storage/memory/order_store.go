package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/storage"
)

// OrderStore is an in-memory implementation of storage.OrderStore.
type OrderStore struct {
	mu       sync.RWMutex
	orders   map[string]models.Order
	payments map[string]string // payment signature -> order id
}

var _ storage.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates a new in-memory order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:   make(map[string]models.Order),
		payments: make(map[string]string),
	}
}

func (s *OrderStore) Insert(_ context.Context, order *models.Order) error {
	if order == nil || order.ID == "" || order.Kind == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return storage.ErrDuplicateKey
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	s.orders[order.ID] = *order
	return nil
}

func (s *OrderStore) GetByID(_ context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.orders[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return &order, nil
}

func (s *OrderStore) List(_ context.Context, limit int) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Order, 0, len(s.orders))
	for _, order := range s.orders {
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *OrderStore) ClaimPayment(_ context.Context, id, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.orders[id]
	if !exists {
		return storage.ErrNotFound
	}
	if _, used := s.payments[signature]; used {
		return storage.ErrDuplicateKey
	}
	if order.Status != models.OrderPending {
		return storage.ErrConflict
	}

	order.Status = models.OrderPaid
	order.PaymentSignature = signature
	order.UpdatedAt = time.Now().UTC()
	s.orders[id] = order
	s.payments[signature] = id
	return nil
}

func (s *OrderStore) Finish(_ context.Context, id, status, fulfillerSignature, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.orders[id]
	if !exists {
		return storage.ErrNotFound
	}
	if order.Status != models.OrderPaid {
		return storage.ErrConflict
	}

	order.Status = status
	order.FulfillerSignature = fulfillerSignature
	order.Error = errMsg
	order.UpdatedAt = time.Now().UTC()
	s.orders[id] = order
	return nil
}
