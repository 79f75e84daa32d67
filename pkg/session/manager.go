package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"veilfi-wallet/pkg/keys"
	"veilfi-wallet/pkg/observability"
	"veilfi-wallet/pkg/vault"
)

const (
	CookieName = "sid"
	idBytes    = 32
)

// Manager ties sessions to HTTP cookies.
type Manager struct {
	store   Store
	box     *vault.Box
	ttl     time.Duration
	secure  bool
	metrics *observability.Metrics
}

// NewManager creates a session manager. secure selects SameSite=None with
// the Secure flag, as needed when the frontend lives on another origin.
func NewManager(store Store, box *vault.Box, ttl time.Duration, secure bool, metrics *observability.Metrics) *Manager {
	return &Manager{store: store, box: box, ttl: ttl, secure: secure, metrics: metrics}
}

// Create stores kp under a new session and sets the cookie on w.
func (m *Manager) Create(ctx context.Context, w http.ResponseWriter, kp *keys.Keypair, name string) (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	sealed, err := m.box.Seal(kp.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to seal session secret: %w", err)
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:           id,
		WalletPubkey: kp.PublicKey().String(),
		SealedSecret: sealed,
		Format:       string(kp.Format),
		Name:         name,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	http.SetCookie(w, m.cookie(id, int(m.ttl.Seconds())))
	m.metrics.RecordSessionCreated()
	return sess, nil
}

// Load returns the session named by the request cookie.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrNoSession
	}
	return m.store.Get(ctx, c.Value)
}

// Keypair unseals the session's signing key.
func (m *Manager) Keypair(s *Session) (solana.PrivateKey, error) {
	raw, err := m.box.Open(s.SealedSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to open session secret: %w", err)
	}
	priv := solana.PrivateKey(raw)
	if len(priv) != 64 || priv.PublicKey().String() != s.WalletPubkey {
		return nil, keys.ErrKeyMismatch
	}
	return priv, nil
}

// Destroy deletes the request's session, if any, and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var err error
	if c, cerr := r.Cookie(CookieName); cerr == nil && c.Value != "" {
		if derr := m.store.Delete(ctx, c.Value); derr != nil && !errors.Is(derr, ErrNotFound) {
			err = derr
		}
	}
	http.SetCookie(w, m.cookie("", -1))
	return err
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if m.secure {
		c.SameSite = http.SameSiteNoneMode
		c.Secure = true
	}
	return c
}

func newID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return base58.Encode(b), nil
}
