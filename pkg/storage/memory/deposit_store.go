package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/storage"
)

// DepositStore is an in-memory implementation of storage.DepositStore.
type DepositStore struct {
	mu       sync.RWMutex
	deposits map[string]models.Deposit
}

var _ storage.DepositStore = (*DepositStore)(nil)

// NewDepositStore creates a new in-memory deposit store.
func NewDepositStore() *DepositStore {
	return &DepositStore{deposits: make(map[string]models.Deposit)}
}

func (s *DepositStore) Insert(_ context.Context, deposit *models.Deposit) error {
	if deposit == nil || deposit.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deposits[deposit.Signature]; exists {
		return storage.ErrDuplicateKey
	}
	if deposit.CreatedAt.IsZero() {
		deposit.CreatedAt = time.Now().UTC()
	}
	s.deposits[deposit.Signature] = *deposit
	return nil
}

func (s *DepositStore) Has(_ context.Context, signature string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.deposits[signature]
	return exists, nil
}

func (s *DepositStore) ListByWallet(_ context.Context, wallet string, limit int) ([]models.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Deposit
	for _, d := range s.deposits {
		if d.Wallet == wallet {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
