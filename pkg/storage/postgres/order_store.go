package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/storage"
)

// OrderStore implements storage.OrderStore on Postgres.
type OrderStore struct {
	pool *Pool
}

var _ storage.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates a new Postgres order store.
func NewOrderStore(pool *Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `id, kind, status, wallet, pay_with, amount, token_mint, token_amount,
	COALESCE(payment_signature, ''), COALESCE(fulfiller_signature, ''), error, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.Kind, &o.Status, &o.Wallet, &o.PayWith, &o.Amount, &o.TokenMint,
		&o.TokenAmount, &o.PaymentSignature, &o.FulfillerSignature, &o.Error, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OrderStore) Insert(ctx context.Context, o *models.Order) error {
	if o == nil || o.ID == "" || o.Kind == "" {
		return storage.ErrInvalidInput
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO orders (id, kind, status, wallet, pay_with, amount, token_mint, token_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, o.ID, o.Kind, o.Status, o.Wallet, o.PayWith, o.Amount, o.TokenMint, o.TokenAmount).
		Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *OrderStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *OrderStore) List(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *OrderStore) ClaimPayment(ctx context.Context, id, signature string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $3, payment_signature = $2, updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, signature, models.OrderPaid, models.OrderPending)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("claim payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrConflict(ctx, id)
	}
	return nil
}

func (s *OrderStore) Finish(ctx context.Context, id, status, fulfillerSignature, errMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2, fulfiller_signature = NULLIF($3, ''), error = $4, updated_at = now()
		WHERE id = $1 AND status = $5
	`, id, status, fulfillerSignature, errMsg, models.OrderPaid)
	if err != nil {
		return fmt.Errorf("finish order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrConflict(ctx, id)
	}
	return nil
}

func (s *OrderStore) missingOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrConflict
}
