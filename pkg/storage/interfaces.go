package storage

import (
	"context"

	"veilfi-wallet/pkg/models"
)

// UserStore persists custodial users.
type UserStore interface {
	// Insert returns ErrDuplicateKey when the id exists.
	Insert(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// ActivityStore is an append-only per-user history.
type ActivityStore interface {
	Insert(ctx context.Context, activity *models.Activity) error
	// ListByUser returns newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Activity, error)
}

// OrderStore tracks merchant and treasury orders.
type OrderStore interface {
	Insert(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// List returns newest first.
	List(ctx context.Context, limit int) ([]models.Order, error)
	// ClaimPayment moves a pending order to paid and records the payment
	// signature. ErrConflict if the order is not pending, ErrDuplicateKey if
	// the signature already paid another order.
	ClaimPayment(ctx context.Context, id, signature string) error
	// Finish sets a terminal status on a paid order.
	Finish(ctx context.Context, id, status, fulfillerSignature, errMsg string) error
}

// DepositStore remembers deposits already processed.
type DepositStore interface {
	// Insert returns ErrDuplicateKey for a signature seen before.
	Insert(ctx context.Context, deposit *models.Deposit) error
	Has(ctx context.Context, signature string) (bool, error)
	ListByWallet(ctx context.Context, wallet string, limit int) ([]models.Deposit, error)
}

// Stores bundles every store the server needs.
type Stores struct {
	Users      UserStore
	Activities ActivityStore
	Orders     OrderStore
	Deposits   DepositStore
}
