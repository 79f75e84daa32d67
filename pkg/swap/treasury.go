package swap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/observability"
	sln "veilfi-wallet/pkg/solana"
	"veilfi-wallet/pkg/storage"
)

// BuyInit tells the buyer which order to pay and where.
type BuyInit struct {
	OK          bool   `json:"ok"`
	OrderID     string `json:"orderId"`
	WalletToPay string `json:"walletToPay"`
}

// BuyReceipt is a fulfilled treasury purchase.
type BuyReceipt struct {
	OK          bool   `json:"ok"`
	OrderID     string `json:"orderId"`
	SolPaid     string `json:"solPaid"`
	TokensSent  string `json:"tokensSent"`
	BaseUnits   uint64 `json:"baseUnits"`
	Signature   string `json:"signature"`
	Explorer    string `json:"explorer"`
	PaymentTxID string `json:"paymentSignature"`
}

// TreasuryConfig holds the token sale parameters.
type TreasuryConfig struct {
	Wallet   solana.PrivateKey
	Mint     solana.PublicKey
	Decimals uint8
	PriceSol decimal.Decimal // SOL per whole token
}

// Treasury sells tokens at a fixed SOL price: the buyer pays the treasury in
// SOL and the treasury sends tokens once the payment is confirmed.
type Treasury struct {
	cfg       TreasuryConfig
	orders    storage.OrderStore
	node      sln.RPC
	transfers *sln.Transfers
	metrics   *observability.Metrics
	logger    logrus.FieldLogger
}

// NewTreasury creates the treasury sale service.
func NewTreasury(cfg TreasuryConfig, orders storage.OrderStore, transfers *sln.Transfers, node sln.RPC, metrics *observability.Metrics, logger logrus.FieldLogger) (*Treasury, error) {
	if len(cfg.Wallet) == 0 || cfg.Mint.IsZero() {
		return nil, fmt.Errorf("%w: treasury wallet and token mint are required", ErrNotConfigured)
	}
	if !cfg.PriceSol.IsPositive() {
		return nil, fmt.Errorf("%w: token price must be positive", ErrInvalidRequest)
	}
	return &Treasury{
		cfg:       cfg,
		orders:    orders,
		node:      node,
		transfers: transfers,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// WalletToPay is the treasury address buyers send SOL to.
func (t *Treasury) WalletToPay() solana.PublicKey {
	return t.cfg.Wallet.PublicKey()
}

// InitBuy opens a pending treasury order for buyer.
func (t *Treasury) InitBuy(ctx context.Context, buyer string) (*BuyInit, error) {
	buyer = strings.TrimSpace(buyer)
	if buyer == "" {
		return nil, ErrMissingParams
	}
	if _, err := solana.PublicKeyFromBase58(buyer); err != nil {
		return nil, fmt.Errorf("%w: buyer: %v", ErrInvalidRequest, err)
	}

	order := &models.Order{
		ID:        uuid.NewString(),
		Kind:      models.OrderTreasuryBuy,
		Status:    models.OrderPending,
		Wallet:    buyer,
		PayWith:   "SOL",
		TokenMint: t.cfg.Mint.String(),
	}
	if err := t.orders.Insert(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	return &BuyInit{OK: true, OrderID: order.ID, WalletToPay: t.WalletToPay().String()}, nil
}

// TokensFor converts a SOL payment to token base units at the fixed price,
// rounding down.
func (t *Treasury) TokensFor(lamports uint64) uint64 {
	tokens := decimal.NewFromUint64(lamports).
		Shift(-9).
		DivRound(t.cfg.PriceSol, 18).
		Shift(int32(t.cfg.Decimals)).
		Floor()
	if !tokens.IsPositive() {
		return 0
	}
	return tokens.BigInt().Uint64()
}

// ConfirmBuy verifies paymentSignature paid the treasury for orderID and
// sends the purchased tokens to the buyer. A payment signature can settle
// only one order.
func (t *Treasury) ConfirmBuy(ctx context.Context, orderID, paymentSignature, buyer string) (*BuyReceipt, error) {
	orderID, paymentSignature, buyer = strings.TrimSpace(orderID), strings.TrimSpace(paymentSignature), strings.TrimSpace(buyer)
	if orderID == "" || paymentSignature == "" || buyer == "" {
		return nil, ErrMissingParams
	}
	sig, err := solana.SignatureFromBase58(paymentSignature)
	if err != nil {
		return nil, fmt.Errorf("%w: payment signature: %v", ErrInvalidRequest, err)
	}

	order, err := t.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", orderID, err)
	}
	if order.Kind != models.OrderTreasuryBuy {
		return nil, fmt.Errorf("%w: order %s is not a treasury buy", ErrInvalidRequest, orderID)
	}
	if order.Wallet != buyer {
		return nil, ErrBuyerMismatch
	}
	if order.Status != models.OrderPending {
		return nil, fmt.Errorf("%w: status %s", ErrOrderNotPending, order.Status)
	}

	treasury := t.WalletToPay()
	payment, err := sln.InspectTransaction(ctx, t.node, sig, &treasury)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentSignature)
		}
		return nil, err
	}
	if !payment.Success {
		return nil, fmt.Errorf("%w: transaction failed on chain", ErrPaymentInvalid)
	}
	if payment.Signer != buyer {
		return nil, fmt.Errorf("%w: payment signed by %s", ErrBuyerMismatch, payment.Signer)
	}
	if payment.LamportsDelta <= 0 {
		return nil, fmt.Errorf("%w: treasury balance did not increase", ErrPaymentInvalid)
	}

	lamports := uint64(payment.LamportsDelta)
	tokens := t.TokensFor(lamports)
	if tokens == 0 {
		return nil, ErrAmountTooSmall
	}

	if err := t.orders.ClaimPayment(ctx, orderID, paymentSignature); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			return nil, ErrPaymentUsed
		case errors.Is(err, storage.ErrConflict):
			return nil, ErrOrderNotPending
		}
		return nil, fmt.Errorf("failed to claim payment: %w", err)
	}

	logger := t.logger.WithFields(logrus.Fields{"order": orderID, "buyer": buyer, "payment": paymentSignature})
	logger.Infof("Payment of %s SOL confirmed, sending %s tokens", sln.LamportsToSOL(lamports), sln.BaseUnitsToUI(tokens, t.cfg.Decimals))

	to := solana.MustPublicKeyFromBase58(buyer)
	sent, err := t.transfers.TransferSPL(ctx, t.cfg.Wallet, sln.SPLTransfer{To: to, Mint: t.cfg.Mint, Amount: tokens})
	t.metrics.RecordTransfer("treasury", err)
	if err != nil {
		logger.WithError(err).Error("treasury token transfer failed")
		var fulfiller string
		if !sent.IsZero() {
			fulfiller = sent.String()
		}
		if ferr := t.orders.Finish(ctx, orderID, models.OrderFailed, fulfiller, err.Error()); ferr != nil {
			logger.WithError(ferr).Error("failed to mark order failed")
		}
		return nil, fmt.Errorf("failed to send tokens: %w", err)
	}

	if err := t.orders.Finish(ctx, orderID, models.OrderFulfilled, sent.String(), ""); err != nil {
		logger.WithError(err).Error("failed to mark order fulfilled")
	}

	return &BuyReceipt{
		OK:          true,
		OrderID:     orderID,
		SolPaid:     sln.LamportsToSOL(lamports),
		TokensSent:  sln.BaseUnitsToUI(tokens, t.cfg.Decimals),
		BaseUnits:   tokens,
		Signature:   sent.String(),
		Explorer:    sln.ExplorerURL(sent.String()),
		PaymentTxID: paymentSignature,
	}, nil
}
