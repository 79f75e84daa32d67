package swap

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilfi-wallet/pkg/logging"
	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/storage"
	"veilfi-wallet/pkg/storage/memory"
)

func TestPrepareBuyAndSell(t *testing.T) {
	ctx := context.Background()
	merchantKey := solana.NewWallet().PublicKey().String()
	merchant := NewMerchant(memory.NewOrderStore(), merchantKey, "VEIL", "", logging.Discard())
	payer := solana.NewWallet().PublicKey().String()

	buy, err := merchant.PrepareBuy(ctx, payer, "SOL", "0.5")
	require.NoError(t, err)
	assert.True(t, buy.OK)
	assert.Equal(t, ModeParamFallback, buy.Mode)
	assert.Equal(t, OrderParams{Recipient: merchantKey, BuyWith: "SOL", Token: "VEIL"}, buy.Params)

	sell, err := merchant.PrepareSell(ctx, payer, "USDC", "1000")
	require.NoError(t, err)
	assert.Equal(t, OrderParams{Recipient: merchantKey, SellWith: "USDC", Token: "VEIL"}, sell.Params)
	assert.NotEqual(t, buy.OrderID, sell.OrderID)

	order, err := merchant.GetOrder(ctx, buy.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderBuy, order.Kind)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, payer, order.Wallet)
	assert.Equal(t, "0.5", order.Amount)

	orders, err := merchant.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestPrepareValidation(t *testing.T) {
	ctx := context.Background()
	payer := solana.NewWallet().PublicKey().String()
	merchant := NewMerchant(memory.NewOrderStore(), solana.NewWallet().PublicKey().String(), "VEIL", "", logging.Discard())

	_, err := merchant.PrepareBuy(ctx, payer, "", "1")
	assert.ErrorIs(t, err, ErrMissingParams)

	_, err = merchant.PrepareBuy(ctx, "not-a-key", "SOL", "1")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = merchant.PrepareSell(ctx, payer, "SOL", "-3")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	unconfigured := NewMerchant(memory.NewOrderStore(), "", "VEIL", "", logging.Discard())
	_, err = unconfigured.PrepareBuy(ctx, payer, "SOL", "1")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = merchant.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
