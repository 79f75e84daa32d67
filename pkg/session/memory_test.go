package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemoryStore(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewMemoryStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	sess := &Session{ID: "abc", WalletPubkey: "pk", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "pk", got.WalletPubkey)

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewMemoryStore(5 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Session{ID: "old", ExpiresAt: time.Now().Add(-time.Second)}))
	require.NoError(t, store.Save(ctx, &Session{ID: "live", ExpiresAt: time.Now().Add(time.Hour)}))

	_, err := store.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound, "expired sessions are hidden before the sweep")

	assert.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
