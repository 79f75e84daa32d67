package postgres

import (
	"context"
	"fmt"

	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/storage"
)

// DepositStore implements storage.DepositStore on Postgres.
type DepositStore struct {
	pool *Pool
}

var _ storage.DepositStore = (*DepositStore)(nil)

// NewDepositStore creates a new Postgres deposit store.
func NewDepositStore(pool *Pool) *DepositStore {
	return &DepositStore{pool: pool}
}

func (s *DepositStore) Insert(ctx context.Context, d *models.Deposit) error {
	if d == nil || d.Signature == "" {
		return storage.ErrInvalidInput
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO deposits (signature, wallet, amount_lamports, block_time)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, d.Signature, d.Wallet, int64(d.AmountLamports), d.BlockTime).Scan(&d.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert deposit: %w", err)
	}
	return nil
}

func (s *DepositStore) Has(ctx context.Context, signature string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deposits WHERE signature = $1)`, signature).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check deposit: %w", err)
	}
	return exists, nil
}

func (s *DepositStore) ListByWallet(ctx context.Context, wallet string, limit int) ([]models.Deposit, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT signature, wallet, amount_lamports, block_time, created_at
		FROM deposits
		WHERE wallet = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	defer rows.Close()

	var out []models.Deposit
	for rows.Next() {
		var d models.Deposit
		var lamports int64
		if err := rows.Scan(&d.Signature, &d.Wallet, &lamports, &d.BlockTime, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		d.AmountLamports = uint64(lamports)
		out = append(out, d)
	}
	return out, rows.Err()
}
