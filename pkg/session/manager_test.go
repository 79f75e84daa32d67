package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilfi-wallet/pkg/keys"
	"veilfi-wallet/pkg/observability"
	"veilfi-wallet/pkg/vault"
)

func newManager(t *testing.T, secure bool) (*Manager, *MemoryStore, *observability.Metrics) {
	t.Helper()
	box, err := vault.NewBox("session-secret")
	require.NoError(t, err)
	store := NewMemoryStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	metrics := observability.NewMetrics("test")
	return NewManager(store, box, 2*time.Hour, secure, metrics), store, metrics
}

func requestWith(cookies []*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func TestCreateLoadKeypair(t *testing.T) {
	m, store, metrics := newManager(t, false)
	ctx := context.Background()
	kp := &keys.Keypair{PrivateKey: solana.NewWallet().PrivateKey, Format: keys.FormatBase58}

	rec := httptest.NewRecorder()
	sess, err := m.Create(ctx, rec, kp, "main")
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey().String(), sess.WalletPubkey)
	assert.Equal(t, "base58", sess.Format)
	assert.NotContains(t, sess.SealedSecret, kp.PrivateKey.String())

	raw, err := base58.Decode(sess.ID)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, sess.ID, c.Value)
	assert.True(t, c.HttpOnly)
	assert.False(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 7200, c.MaxAge)
	assert.Equal(t, "/", c.Path)

	loaded, err := m.Load(ctx, requestWith(cookies))
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)

	priv, err := m.Keypair(loaded)
	require.NoError(t, err)
	assert.Equal(t, kp.PrivateKey, priv)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionsCreated))
}

func TestSecureCookie(t *testing.T) {
	m, _, _ := newManager(t, true)
	rec := httptest.NewRecorder()
	_, err := m.Create(context.Background(), rec, &keys.Keypair{PrivateKey: solana.NewWallet().PrivateKey}, "")
	require.NoError(t, err)

	c := rec.Result().Cookies()[0]
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
}

func TestLoadWithoutSession(t *testing.T) {
	m, _, _ := newManager(t, false)
	ctx := context.Background()

	_, err := m.Load(ctx, requestWith(nil))
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = m.Load(ctx, requestWith([]*http.Cookie{{Name: CookieName, Value: "unknown"}}))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeypairRejectsTampering(t *testing.T) {
	m, _, _ := newManager(t, false)
	kp := &keys.Keypair{PrivateKey: solana.NewWallet().PrivateKey}
	sess, err := m.Create(context.Background(), httptest.NewRecorder(), kp, "")
	require.NoError(t, err)

	swapped := *sess
	swapped.WalletPubkey = solana.NewWallet().PublicKey().String()
	_, err = m.Keypair(&swapped)
	assert.ErrorIs(t, err, keys.ErrKeyMismatch)

	other, _, _ := newManager(t, false)
	_, err = other.Keypair(sess)
	assert.NoError(t, err, "same secret opens the same box")

	box, err := vault.NewBox("another-secret")
	require.NoError(t, err)
	foreign := NewManager(NewMemoryStore(time.Hour), box, time.Hour, false, nil)
	defer foreign.store.(*MemoryStore).Close()
	_, err = foreign.Keypair(sess)
	assert.ErrorIs(t, err, vault.ErrDecrypt)
}

func TestDestroy(t *testing.T) {
	m, store, _ := newManager(t, false)
	ctx := context.Background()
	rec := httptest.NewRecorder()
	_, err := m.Create(ctx, rec, &keys.Keypair{PrivateKey: solana.NewWallet().PrivateKey}, "")
	require.NoError(t, err)

	out := httptest.NewRecorder()
	require.NoError(t, m.Destroy(ctx, out, requestWith(rec.Result().Cookies())))
	assert.Equal(t, 0, store.Len())

	cleared := out.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, "", cleared[0].Value)
	assert.Equal(t, -1, cleared[0].MaxAge)

	// Without a cookie Destroy still clears the browser side.
	require.NoError(t, m.Destroy(ctx, httptest.NewRecorder(), requestWith(nil)))
}
