// Package wallet implements custodial operations for session wallets and for
// users whose keys are sealed in the database.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"veilfi-wallet/pkg/keys"
	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/observability"
	sln "veilfi-wallet/pkg/solana"
	"veilfi-wallet/pkg/storage"
	"veilfi-wallet/pkg/vault"
)

const (
	activityLimit = 200
	maxUserIDLen  = 128
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidUserID  = errors.New("invalid user id")
)

// Notifier is told about outgoing transfers.
type Notifier interface {
	SendWithdrawNotification(ctx context.Context, from, to, amount, token, signature string)
}

// Transfer is the outcome of a send or withdrawal.
type Transfer struct {
	Signature string `json:"signature"`
	Explorer  string `json:"explorer"`
	From      string `json:"from"`
	To        string `json:"to"`
	Token     string `json:"token"` // "SOL" or the mint
	Amount    string `json:"amount"`
}

// Deps wires a Service. Notifier and Metrics may be nil.
type Deps struct {
	Users      storage.UserStore
	Activities storage.ActivityStore
	Transfers  *sln.Transfers
	Balances   *sln.Balances
	MasterKey  string
	Notifier   Notifier
	Metrics    *observability.Metrics
	Logger     logrus.FieldLogger
}

// Service performs wallet operations.
type Service struct {
	users      storage.UserStore
	activities storage.ActivityStore
	transfers  *sln.Transfers
	balances   *sln.Balances
	masterKey  string
	notifier   Notifier
	metrics    *observability.Metrics
	logger     logrus.FieldLogger
}

// NewService creates a wallet service.
func NewService(deps Deps) *Service {
	return &Service{
		users:      deps.Users,
		activities: deps.Activities,
		transfers:  deps.Transfers,
		balances:   deps.Balances,
		masterKey:  deps.MasterKey,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// SendSOL sends amountSOL (a decimal string) from a session wallet.
func (s *Service) SendSOL(ctx context.Context, from solana.PrivateKey, to, amountSOL string) (*Transfer, error) {
	dest, err := parseAddress(to)
	if err != nil {
		return nil, err
	}
	lamports, err := sln.SOLToLamports(amountSOL)
	if err != nil {
		return nil, err
	}

	sig, err := s.transfers.TransferSOL(ctx, from, dest, lamports)
	s.metrics.RecordTransfer("sol", err)
	if err != nil {
		return nil, err
	}
	return s.sent(ctx, from.PublicKey(), dest, "SOL", sln.LamportsToSOL(lamports), sig), nil
}

// SendSPL sends amountUI whole tokens of mint from a session wallet.
func (s *Service) SendSPL(ctx context.Context, from solana.PrivateKey, to, mint, amountUI string) (*Transfer, error) {
	dest, err := parseAddress(to)
	if err != nil {
		return nil, err
	}
	mintKey, err := parseAddress(mint)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(amountUI) == "" {
		return nil, fmt.Errorf("%w: amount is required", sln.ErrInvalidAmount)
	}

	sig, err := s.transfers.TransferSPL(ctx, from, sln.SPLTransfer{To: dest, Mint: mintKey, UIAmount: amountUI})
	s.metrics.RecordTransfer("spl", err)
	if err != nil {
		return nil, err
	}
	return s.sent(ctx, from.PublicKey(), dest, mintKey.String(), strings.TrimSpace(amountUI), sig), nil
}

// CreateUser generates and stores a keypair for userID. For an existing
// user the stored record is returned and created is false.
func (s *Service) CreateUser(ctx context.Context, userID, passphrase string) (user *models.User, created bool, err error) {
	if err := validateUserID(userID); err != nil {
		return nil, false, err
	}
	if existing, err := s.users.GetByID(ctx, userID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate keypair: %w", err)
	}
	user, err = s.store(ctx, userID, &keys.Keypair{PrivateKey: priv}, passphrase)
	if errors.Is(err, storage.ErrDuplicateKey) {
		existing, gerr := s.users.GetByID(ctx, userID)
		return existing, false, gerr
	}
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// ImportUser stores an existing key, in any format keys.Parse accepts, for
// userID. storage.ErrDuplicateKey if the user exists.
func (s *Service) ImportUser(ctx context.Context, userID, secret, passphrase string, opts keys.Options) (*models.User, keys.Format, error) {
	if err := validateUserID(userID); err != nil {
		return nil, "", err
	}
	kp, err := keys.Parse(secret, opts)
	if err != nil {
		return nil, "", err
	}
	user, err := s.store(ctx, userID, kp, passphrase)
	if err != nil {
		return nil, "", err
	}
	return user, kp.Format, nil
}

func (s *Service) store(ctx context.Context, userID string, kp *keys.Keypair, passphrase string) (*models.User, error) {
	passphrase, err := s.passphrase(userID, passphrase)
	if err != nil {
		return nil, err
	}
	sealed, err := vault.Seal(kp.PrivateKey, passphrase)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:         userID,
		Pubkey:     kp.PublicKey().String(),
		Ciphertext: sealed.Ciphertext,
		IV:         sealed.IV,
		Salt:       sealed.Salt,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"user": userID, "pubkey": user.Pubkey}).Info("Stored custodial wallet")
	return user, nil
}

// UserBalance returns the SOL and token balances of userID's wallet.
func (s *Service) UserBalance(ctx context.Context, userID string) (*models.WalletInfo, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	owner, err := solana.PublicKeyFromBase58(user.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("stored pubkey for %s: %w", userID, err)
	}
	return s.balances.WalletInfo(ctx, owner, false)
}

// WithdrawSOL sends lamports from userID's wallet to to.
func (s *Service) WithdrawSOL(ctx context.Context, userID, to string, lamports uint64, passphrase string) (*Transfer, error) {
	dest, err := parseAddress(to)
	if err != nil {
		return nil, err
	}
	if lamports == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", sln.ErrInvalidAmount)
	}
	priv, err := s.Signer(ctx, userID, passphrase)
	if err != nil {
		return nil, err
	}

	sig, err := s.transfers.TransferSOL(ctx, priv, dest, lamports)
	s.metrics.RecordTransfer("withdraw_sol", err)
	if err != nil {
		return nil, err
	}

	s.recordWithdraw(ctx, userID, "SOL", lamports, sig, dest)
	return s.sent(ctx, priv.PublicKey(), dest, "SOL", sln.LamportsToSOL(lamports), sig), nil
}

// WithdrawSPL sends amount base units of mint from userID's wallet to to.
func (s *Service) WithdrawSPL(ctx context.Context, userID, to, mint string, amount uint64, passphrase string) (*Transfer, error) {
	dest, err := parseAddress(to)
	if err != nil {
		return nil, err
	}
	mintKey, err := parseAddress(mint)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", sln.ErrInvalidAmount)
	}
	priv, err := s.Signer(ctx, userID, passphrase)
	if err != nil {
		return nil, err
	}

	sig, err := s.transfers.TransferSPL(ctx, priv, sln.SPLTransfer{To: dest, Mint: mintKey, Amount: amount})
	s.metrics.RecordTransfer("withdraw_spl", err)
	if err != nil {
		return nil, err
	}

	s.recordWithdraw(ctx, userID, mintKey.String(), amount, sig, dest)
	return s.sent(ctx, priv.PublicKey(), dest, mintKey.String(), fmt.Sprintf("%d", amount), sig), nil
}

// Activities returns userID's history, newest first.
func (s *Service) Activities(ctx context.Context, userID string) ([]models.Activity, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.activities.ListByUser(ctx, userID, activityLimit)
}

// Signer opens userID's sealed key with passphrase, or with the
// master-derived passphrase when none is given.
func (s *Service) Signer(ctx context.Context, userID, passphrase string) (solana.PrivateKey, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	passphrase, err = s.passphrase(userID, passphrase)
	if err != nil {
		return nil, err
	}

	raw, err := vault.Open(&vault.Sealed{Ciphertext: user.Ciphertext, IV: user.IV, Salt: user.Salt}, passphrase)
	if err != nil {
		return nil, err
	}
	kp, err := keys.ParseBytes(raw)
	if err != nil {
		return nil, err
	}
	if kp.PublicKey().String() != user.Pubkey {
		return nil, keys.ErrKeyMismatch
	}
	return kp.PrivateKey, nil
}

func (s *Service) passphrase(userID, given string) (string, error) {
	if given != "" {
		return given, nil
	}
	return vault.DerivePassphrase(s.masterKey, userID)
}

func (s *Service) recordWithdraw(ctx context.Context, userID, token string, amount uint64, sig solana.Signature, to solana.PublicKey) {
	if s.activities == nil {
		return
	}
	err := s.activities.Insert(ctx, &models.Activity{
		UserID:    userID,
		Type:      models.ActivityWithdraw,
		Token:     token,
		Amount:    fmt.Sprintf("%d", amount),
		Signature: sig.String(),
		Metadata:  map[string]interface{}{"to": to.String()},
	})
	if err != nil {
		s.logger.WithError(err).WithField("user", userID).Error("failed to record withdraw activity")
	}
}

func (s *Service) sent(ctx context.Context, from, to solana.PublicKey, token, amount string, sig solana.Signature) *Transfer {
	out := &Transfer{
		Signature: sig.String(),
		Explorer:  sln.ExplorerURL(sig.String()),
		From:      from.String(),
		To:        to.String(),
		Token:     token,
		Amount:    amount,
	}
	if s.notifier != nil {
		s.notifier.SendWithdrawNotification(ctx, out.From, out.To, amount, token, out.Signature)
	}
	return out
}

func parseAddress(s string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w %q: %v", ErrInvalidAddress, s, err)
	}
	return key, nil
}

func validateUserID(id string) error {
	if strings.TrimSpace(id) == "" || len(id) > maxUserIDLen {
		return ErrInvalidUserID
	}
	return nil
}
