package jupiter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"veilfi-wallet/pkg/models"
	sln "veilfi-wallet/pkg/solana"
)

// SwapService quotes, builds and executes Jupiter swaps.
type SwapService struct {
	client      *Client
	sender      *sln.Sender
	balances    *sln.Balances
	priorityFee uint64
	logger      logrus.FieldLogger
}

// NewSwapService creates a new swap service
func NewSwapService(client *Client, sender *sln.Sender, balances *sln.Balances, logger logrus.FieldLogger) *SwapService {
	return &SwapService{
		client:      client,
		sender:      sender,
		balances:    balances,
		priorityFee: sender.PriorityFee,
		logger:      logger,
	}
}

// Client returns the underlying API client.
func (s *SwapService) Client() *Client {
	return s.client
}

// Quote returns the best route for params.
func (s *SwapService) Quote(ctx context.Context, params QuoteParams) (*QuoteResponse, error) {
	quote, err := s.client.GetQuote(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get swap quote: %w", err)
	}
	return quote, nil
}

// BuildSwap quotes and returns the unsigned transaction for user to sign.
func (s *SwapService) BuildSwap(ctx context.Context, params QuoteParams, user solana.PublicKey) (*BuiltSwap, error) {
	quote, err := s.Quote(ctx, params)
	if err != nil {
		return nil, err
	}

	swapResp, err := s.client.GetSwapTransaction(ctx, quote, user, SwapOptions{
		UseSharedAccounts:        true,
		PriorityFeeMicroLamports: s.priorityFee,
	})
	if err != nil && strings.Contains(err.Error(), sharedAccountsUnsupported) {
		swapResp, err = s.client.GetSwapTransaction(ctx, quote, user, SwapOptions{PriorityFeeMicroLamports: s.priorityFee})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get swap transaction: %w", err)
	}

	return &BuiltSwap{
		Quote:                quote,
		Transaction:          swapResp.SwapTransaction,
		LastValidBlockHeight: swapResp.LastValidBlockHeight,
	}, nil
}

// ExecuteSwap swaps with a retry mechanism: each attempt takes a fresh
// quote, and a shared-accounts rejection switches them off for later
// attempts. A transaction that was sent but not confirmed in time is not
// retried.
func (s *SwapService) ExecuteSwap(ctx context.Context, wallet solana.PrivateKey, params QuoteParams, maxRetries int, retryDelay time.Duration) (solana.Signature, *QuoteResponse, error) {
	var (
		lastErr           error
		useSharedAccounts = true // Start with shared accounts
	)
	if maxRetries < 1 {
		maxRetries = 1
	}

	pubKey := wallet.PublicKey()
	log := s.logger.WithField("wallet", pubKey.String())

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return solana.Signature{}, nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		log.Printf("Getting swap quote for %d units of %s -> %s (attempt %d/%d)...",
			params.Amount, params.InputMint, params.OutputMint, attempt, maxRetries)
		quote, err := s.client.GetQuote(ctx, params)
		if err != nil {
			lastErr = fmt.Errorf("failed to get swap quote: %w", err)
			log.Printf("Retry %d/%d: %v", attempt, maxRetries, lastErr)
			if errors.Is(err, ErrNoRoute) {
				break
			}
			continue
		}

		swapResp, err := s.client.GetSwapTransaction(ctx, quote, pubKey, SwapOptions{
			UseSharedAccounts:        useSharedAccounts,
			PriorityFeeMicroLamports: s.priorityFee,
		})
		if err != nil {
			if strings.Contains(err.Error(), sharedAccountsUnsupported) {
				useSharedAccounts = false
				log.Printf("Detected Simple AMM error, will retry without shared accounts")
			}
			lastErr = fmt.Errorf("failed to get swap transaction: %w", err)
			log.Printf("Retry %d/%d: %v", attempt, maxRetries, lastErr)
			continue
		}

		tx, err := solana.TransactionFromBase64(swapResp.SwapTransaction)
		if err != nil {
			lastErr = fmt.Errorf("failed to decode transaction: %w", err)
			log.Printf("Retry %d/%d: %v", attempt, maxRetries, lastErr)
			continue
		}

		blockhash, err := s.sender.LatestBlockhash(ctx)
		if err != nil {
			lastErr = fmt.Errorf("failed to get latest blockhash: %w", err)
			log.Printf("Retry %d/%d: %v", attempt, maxRetries, lastErr)
			continue
		}
		tx.Message.RecentBlockhash = blockhash

		sig, err := s.sender.SignAndSend(ctx, tx, true, wallet)
		if err != nil {
			if errors.Is(err, sln.ErrConfirmTimeout) {
				return sig, quote, err
			}
			lastErr = err
			log.Printf("Retry %d/%d: %v", attempt, maxRetries, lastErr)
			continue
		}

		outAmountRaw, _ := strconv.ParseUint(quote.OutAmount, 10, 64)
		log.WithField("sig", sig.String()).Printf("Swap confirmed on attempt %d/%d, out amount %d", attempt, maxRetries, outAmountRaw)
		return sig, quote, nil
	}

	return solana.Signature{}, nil, fmt.Errorf("all %d attempts failed to swap token: %w", maxRetries, lastErr)
}

// GetTokenBalances returns the wallet's token holdings with USD prices.
// Pricing is best effort.
func (s *SwapService) GetTokenBalances(ctx context.Context, owner solana.PublicKey) ([]models.TokenBalance, error) {
	balances, err := s.balances.Tokens(ctx, owner, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get token balances: %w", err)
	}
	s.PriceBalances(ctx, balances)
	return balances, nil
}

// PriceBalances fills UsdPrice and UsdValue in place.
func (s *SwapService) PriceBalances(ctx context.Context, balances []models.TokenBalance) {
	if len(balances) == 0 {
		return
	}
	mints := make([]string, 0, len(balances))
	for _, b := range balances {
		mints = append(mints, b.Mint)
	}

	prices, err := s.client.GetPrices(ctx, mints)
	if err != nil {
		s.logger.Printf("Warning: failed to get token prices: %v", err)
		return
	}

	for i := range balances {
		price, ok := prices[balances[i].Mint]
		if !ok {
			continue
		}
		uiAmount, _ := strconv.ParseFloat(balances[i].UiAmountString, 64)
		balances[i].UsdPrice = price
		balances[i].UsdValue = math.Round(uiAmount*price*100) / 100
	}
}
