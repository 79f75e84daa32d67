package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/storage"
)

func TestPostgresStores(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stores := NewStores(pool)
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		user := &models.User{ID: "alice", Pubkey: "pk", Ciphertext: "ct", IV: "iv", Salt: "salt"}
		require.NoError(t, stores.Users.Insert(ctx, user))
		assert.False(t, user.CreatedAt.IsZero())

		err := stores.Users.Insert(ctx, &models.User{ID: "alice", Pubkey: "other"})
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)

		got, err := stores.Users.GetByID(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "ct", got.Ciphertext)

		_, err = stores.Users.GetByID(ctx, "nobody")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("activities", func(t *testing.T) {
		first := &models.Activity{UserID: "alice", Type: models.ActivityWithdraw, Token: "SOL", Amount: "5000", Signature: "sig1",
			Metadata: map[string]interface{}{"to": "dest"}}
		require.NoError(t, stores.Activities.Insert(ctx, first))
		time.Sleep(10 * time.Millisecond)
		second := &models.Activity{UserID: "alice", Type: models.ActivitySwap, Token: "mint", Amount: "18446744073709551615"}
		require.NoError(t, stores.Activities.Insert(ctx, second))

		items, err := stores.Activities.ListByUser(ctx, "alice", 200)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, second.ID, items[0].ID)
		assert.Equal(t, "18446744073709551615", items[0].Amount)
		assert.Empty(t, items[0].Signature)
		assert.Equal(t, "dest", items[1].Metadata["to"])
	})

	t.Run("orders", func(t *testing.T) {
		for _, id := range []string{"o1", "o2"} {
			require.NoError(t, stores.Orders.Insert(ctx, &models.Order{
				ID: id, Kind: models.OrderTreasuryBuy, Status: models.OrderPending, Wallet: "buyer", TokenMint: "mint",
			}))
		}

		require.NoError(t, stores.Orders.ClaimPayment(ctx, "o1", "pay1"))
		assert.ErrorIs(t, stores.Orders.ClaimPayment(ctx, "o1", "pay2"), storage.ErrConflict)
		assert.ErrorIs(t, stores.Orders.ClaimPayment(ctx, "o2", "pay1"), storage.ErrDuplicateKey)
		assert.ErrorIs(t, stores.Orders.ClaimPayment(ctx, "zz", "pay3"), storage.ErrNotFound)

		require.NoError(t, stores.Orders.Finish(ctx, "o1", models.OrderFulfilled, "out1", ""))

		got, err := stores.Orders.GetByID(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, models.OrderFulfilled, got.Status)
		assert.Equal(t, "pay1", got.PaymentSignature)
		assert.Equal(t, "out1", got.FulfillerSignature)

		list, err := stores.Orders.List(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("deposits", func(t *testing.T) {
		bt := time.Unix(1700000000, 0).UTC()
		d := &models.Deposit{Signature: "dsig", Wallet: "w", AmountLamports: 1_500_000_000, BlockTime: &bt}
		require.NoError(t, stores.Deposits.Insert(ctx, d))
		assert.ErrorIs(t, stores.Deposits.Insert(ctx, d), storage.ErrDuplicateKey)

		seen, err := stores.Deposits.Has(ctx, "dsig")
		require.NoError(t, err)
		assert.True(t, seen)

		list, err := stores.Deposits.ListByWallet(ctx, "w", 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, uint64(1_500_000_000), list[0].AmountLamports)
		require.NotNil(t, list[0].BlockTime)
		assert.True(t, bt.Equal(*list[0].BlockTime))
	})
}
