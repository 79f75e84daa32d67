// Package session keeps imported wallets server side, keyed by an opaque
// cookie id. Secrets are stored sealed with the server's session secret.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for unknown or expired sessions.
	ErrNotFound = errors.New("session not found")
	// ErrNoSession is returned when the request carries no session cookie.
	ErrNoSession = errors.New("no session")
)

// Session is one imported wallet.
type Session struct {
	ID           string    `json:"id"`
	WalletPubkey string    `json:"walletPubkey"`
	SealedSecret string    `json:"sealedSecret"`
	Format       string    `json:"format,omitempty"`
	Name         string    `json:"name,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists sessions. Get returns ErrNotFound for missing and expired
// sessions alike.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
