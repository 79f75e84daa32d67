package swap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/storage"
)

// ModeParamFallback tells the client to build the payment itself from the
// returned parameters.
const ModeParamFallback = "param_fallback"

const listOrdersLimit = 100

// PreparedOrder is the response to a merchant buy or sell request.
type PreparedOrder struct {
	OK      bool        `json:"ok"`
	Mode    string      `json:"mode"`
	OrderID string      `json:"orderId"`
	Params  OrderParams `json:"params"`
}

// OrderParams tells the client where to send what.
type OrderParams struct {
	Recipient string `json:"recipient"`
	BuyWith   string `json:"buyWith,omitempty"`
	SellWith  string `json:"sellWith,omitempty"`
	Token     string `json:"token"`
}

// Merchant records buy and sell intents against the merchant wallet.
type Merchant struct {
	orders    storage.OrderStore
	recipient string
	tokenName string
	tokenMint string
	logger    logrus.FieldLogger
}

// NewMerchant creates the merchant order service. recipient may be empty,
// in which case every request fails with ErrNotConfigured.
func NewMerchant(orders storage.OrderStore, recipient, tokenName, tokenMint string, logger logrus.FieldLogger) *Merchant {
	return &Merchant{
		orders:    orders,
		recipient: recipient,
		tokenName: tokenName,
		tokenMint: tokenMint,
		logger:    logger,
	}
}

// PrepareBuy records that payer intends to buy amount worth of the token
// paying with buyWith.
func (m *Merchant) PrepareBuy(ctx context.Context, payer, buyWith, amount string) (*PreparedOrder, error) {
	order, err := m.prepare(ctx, models.OrderBuy, payer, buyWith, amount)
	if err != nil {
		return nil, err
	}
	return &PreparedOrder{
		OK:      true,
		Mode:    ModeParamFallback,
		OrderID: order.ID,
		Params:  OrderParams{Recipient: m.recipient, BuyWith: buyWith, Token: m.tokenName},
	}, nil
}

// PrepareSell records that seller intends to sell amountTokens for sellWith.
func (m *Merchant) PrepareSell(ctx context.Context, seller, sellWith, amountTokens string) (*PreparedOrder, error) {
	order, err := m.prepare(ctx, models.OrderSell, seller, sellWith, amountTokens)
	if err != nil {
		return nil, err
	}
	return &PreparedOrder{
		OK:      true,
		Mode:    ModeParamFallback,
		OrderID: order.ID,
		Params:  OrderParams{Recipient: m.recipient, SellWith: sellWith, Token: m.tokenName},
	}, nil
}

func (m *Merchant) prepare(ctx context.Context, kind, wallet, payWith, amount string) (*models.Order, error) {
	wallet, payWith, amount = strings.TrimSpace(wallet), strings.TrimSpace(payWith), strings.TrimSpace(amount)
	if wallet == "" || payWith == "" || amount == "" {
		return nil, ErrMissingParams
	}
	if m.recipient == "" {
		return nil, fmt.Errorf("%w: merchant wallet", ErrNotConfigured)
	}
	if _, err := solana.PublicKeyFromBase58(wallet); err != nil {
		return nil, fmt.Errorf("%w: wallet: %v", ErrInvalidRequest, err)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil || !d.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be a positive number", ErrInvalidRequest)
	}

	order := &models.Order{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    models.OrderPending,
		Wallet:    wallet,
		PayWith:   payWith,
		Amount:    d.String(),
		TokenMint: m.tokenMint,
	}
	if err := m.orders.Insert(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	m.logger.WithFields(logrus.Fields{"order": order.ID, "kind": kind, "wallet": wallet}).
		Infof("Prepared %s order for %s %s", kind, order.Amount, payWith)
	return order, nil
}

// ListOrders returns the most recent orders, newest first.
func (m *Merchant) ListOrders(ctx context.Context) ([]models.Order, error) {
	return m.orders.List(ctx, listOrdersLimit)
}

// GetOrder returns storage.ErrNotFound for an unknown id.
func (m *Merchant) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := m.orders.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("order %s: %w", id, storage.ErrNotFound)
	}
	return order, err
}
