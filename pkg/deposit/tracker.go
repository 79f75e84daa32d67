// Package deposit watches a wallet for incoming SOL transfers.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/observability"
	sln "veilfi-wallet/pkg/solana"
	"veilfi-wallet/pkg/storage"
)

const (
	DefaultScanLimit = 20
	// maxIgnored bounds the set of signatures already inspected and found
	// not to be deposits.
	maxIgnored = 2048
)

// Notifier is told about every new deposit.
type Notifier interface {
	SendDepositNotification(ctx context.Context, wallet, amountSol, signature string, blockTime *time.Time)
}

// Tracker finds new deposits among the latest signatures of a wallet.
type Tracker struct {
	node     sln.RPC
	wallet   solana.PublicKey
	deposits storage.DepositStore
	notifier Notifier
	metrics  *observability.Metrics
	logger   logrus.FieldLogger

	// ScanLimit is how many recent signatures each Check looks at.
	ScanLimit int

	mu      sync.Mutex
	ignored map[solana.Signature]struct{}
}

// NewTracker creates a deposit tracker. notifier and metrics may be nil.
func NewTracker(node sln.RPC, wallet solana.PublicKey, deposits storage.DepositStore, notifier Notifier, metrics *observability.Metrics, logger logrus.FieldLogger) *Tracker {
	return &Tracker{
		node:      node,
		wallet:    wallet,
		deposits:  deposits,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger.WithField("wallet", wallet.String()),
		ScanLimit: DefaultScanLimit,
		ignored:   make(map[solana.Signature]struct{}),
	}
}

// Wallet is the watched address.
func (t *Tracker) Wallet() solana.PublicKey {
	return t.wallet
}

// Check inspects the wallet's recent transactions and returns the deposits
// not seen by a previous Check, oldest first.
func (t *Tracker) Check(ctx context.Context) (found []models.Deposit, err error) {
	defer func() { t.metrics.RecordDepositScan(err) }()

	limit := t.ScanLimit
	sigs, err := t.node.GetSignaturesForAddressWithOpts(ctx, t.wallet, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signatures: %w", err)
	}

	// Signatures come newest first.
	for i := len(sigs) - 1; i >= 0; i-- {
		entry := sigs[i]
		if entry == nil || entry.Err != nil || t.isIgnored(entry.Signature) {
			continue
		}

		seen, err := t.deposits.Has(ctx, entry.Signature.String())
		if err != nil {
			return found, fmt.Errorf("failed to check deposit %s: %w", entry.Signature, err)
		}
		if seen {
			continue
		}

		deposit, err := t.inspect(ctx, entry.Signature)
		if err != nil {
			t.logger.WithField("sig", entry.Signature.String()).Warnf("could not inspect transaction: %v", err)
			continue
		}
		if deposit == nil {
			t.ignore(entry.Signature)
			continue
		}

		if err := t.deposits.Insert(ctx, deposit); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			return found, fmt.Errorf("failed to save deposit %s: %w", deposit.Signature, err)
		}

		t.logger.WithField("sig", deposit.Signature).Infof(">>> Deposit of %s SOL received", deposit.AmountSol)
		t.metrics.RecordDeposit(deposit.AmountLamports)
		if t.notifier != nil {
			t.notifier.SendDepositNotification(ctx, t.wallet.String(), deposit.AmountSol, deposit.Signature, deposit.BlockTime)
		}
		found = append(found, *deposit)
	}

	if len(found) == 0 {
		t.logger.Debug("No new deposits found.")
	}
	return found, nil
}

// inspect returns nil when the transaction did not increase the wallet's
// SOL balance.
func (t *Tracker) inspect(ctx context.Context, sig solana.Signature) (*models.Deposit, error) {
	res, err := sln.InspectTransaction(ctx, t.node, sig, &t.wallet)
	if err != nil {
		return nil, err
	}
	if !res.Success || res.LamportsDelta <= 0 {
		return nil, nil
	}

	lamports := uint64(res.LamportsDelta)
	return &models.Deposit{
		Signature:      res.Signature,
		Wallet:         t.wallet.String(),
		AmountLamports: lamports,
		AmountSol:      sln.LamportsToSOL(lamports),
		BlockTime:      res.BlockTime,
		Explorer:       res.Explorer,
	}, nil
}

func (t *Tracker) isIgnored(sig solana.Signature) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.ignored[sig]
	return ok
}

func (t *Tracker) ignore(sig solana.Signature) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.ignored) >= maxIgnored {
		t.ignored = make(map[solana.Signature]struct{})
	}
	t.ignored[sig] = struct{}{}
}

// Recent lists stored deposits for the watched wallet, newest first.
func (t *Tracker) Recent(ctx context.Context, limit int) ([]models.Deposit, error) {
	return t.deposits.ListByWallet(ctx, t.wallet.String(), limit)
}
