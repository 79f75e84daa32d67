package solana

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

// Sender builds, signs and submits transactions and waits for them to land.
type Sender struct {
	node      RPC
	blockhash *BlockhashCache
	logger    logrus.FieldLogger

	// PriorityFee is the compute unit price in micro-lamports; zero disables it.
	PriorityFee    uint64
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
	Commitment     rpc.CommitmentType
}

// NewSender creates a sender with a 20s blockhash cache.
func NewSender(node RPC, priorityFee uint64, logger logrus.FieldLogger) *Sender {
	return &Sender{
		node:           node,
		blockhash:      NewBlockhashCache(node, 20*time.Second),
		logger:         logger,
		PriorityFee:    priorityFee,
		PollInterval:   500 * time.Millisecond,
		ConfirmTimeout: 60 * time.Second,
		Commitment:     rpc.CommitmentConfirmed,
	}
}

// Node exposes the underlying RPC.
func (s *Sender) Node() RPC {
	return s.node
}

// LatestBlockhash returns a recent blockhash from the cache.
func (s *Sender) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return s.blockhash.Get(ctx)
}

// PriorityFeeLamports is the priority fee paid for a compute unit limit.
func (s *Sender) PriorityFeeLamports(units uint32) uint64 {
	return s.PriorityFee * uint64(units) / 1_000_000
}

// BuildAndSend prepends compute budget instructions, signs with payer and
// extra signers, sends and waits for confirmation.
func (s *Sender) BuildAndSend(ctx context.Context, payer solana.PrivateKey, units uint32, instrs []solana.Instruction, extra ...solana.PrivateKey) (solana.Signature, error) {
	var all []solana.Instruction
	if units > 0 {
		all = append(all, computebudget.NewSetComputeUnitLimitInstruction(units).Build())
	}
	if s.PriorityFee > 0 {
		all = append(all, computebudget.NewSetComputeUnitPriceInstruction(s.PriorityFee).Build())
	}
	all = append(all, instrs...)

	blockhash, err := s.blockhash.Get(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(all, blockhash, solana.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create transaction: %w", err)
	}

	signers := append([]solana.PrivateKey{payer}, extra...)
	return s.SignAndSend(ctx, tx, false, signers...)
}

// SignAndSend replaces any signatures on tx with fresh ones from signers,
// submits it and waits for the configured commitment.
func (s *Sender) SignAndSend(ctx context.Context, tx *solana.Transaction, skipPreflight bool, signers ...solana.PrivateKey) (solana.Signature, error) {
	if err := Sign(tx, signers...); err != nil {
		return solana.Signature{}, err
	}

	sig, err := s.node.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       skipPreflight,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		s.blockhash.Invalidate()
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	s.logger.WithField("sig", sig.String()).Debug("transaction sent")

	if err := s.WaitForConfirmation(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// Sign clears existing signatures and signs tx with the matching keys.
// Aggregator transactions arrive with zeroed signature slots.
func Sign(tx *solana.Transaction, signers ...solana.PrivateKey) error {
	tx.Signatures = nil
	if _, err := tx.Sign(
		func(key solana.PublicKey) *solana.PrivateKey {
			for _, signer := range signers {
				if signer.PublicKey().Equals(key) {
					signer := signer
					return &signer
				}
			}
			return nil
		},
	); err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// WaitForConfirmation polls the signature status until it reaches the
// sender's commitment, fails on chain, or ConfirmTimeout elapses.
func (s *Sender) WaitForConfirmation(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, s.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		statuses, err := s.node.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			s.logger.WithError(err).Warn("signature status lookup failed")
		} else if len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: %s: %v", ErrTransactionFailed, sig, status.Err)
			}
			if reached(status.ConfirmationStatus, s.Commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrConfirmTimeout, sig)
		case <-ticker.C:
		}
	}
}

func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	rank := map[string]int{"processed": 1, "confirmed": 2, "finalized": 3}
	return rank[string(status)] >= rank[string(want)] && rank[string(status)] > 0
}
